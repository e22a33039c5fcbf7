package tui

import (
	"context"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jyoon-dev/ssak3/internal/tui/client"
	"github.com/jyoon-dev/ssak3/internal/tui/keys"
	"github.com/jyoon-dev/ssak3/internal/tui/model"
	"github.com/jyoon-dev/ssak3/internal/tui/ui"
	"github.com/jyoon-dev/ssak3/internal/tui/views"
)

const refreshEvery = 3 * time.Second

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	daemon    *client.Client
	registry  *keys.Registry
	theme     *ui.Theme
	statusBar *views.StatusBar
	roomList  *views.RoomList
	msgView   *views.MessageView
	composer  *views.Composer
	authView  *views.AuthView
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	vm := model.NewViewModel(c)
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        vm,
		daemon:    c,
		registry:  keys.NewRegistry(),
		theme:     theme,
		statusBar: views.NewStatusBar(),
		roomList:  views.NewRoomList(),
		msgView:   views.NewMessageView(),
		composer:  views.NewComposer(),
		authView:  views.NewAuthView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:종료", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView("rooms", "logout", &keys.Action{
		Rune: 'L', Key: tcell.KeyRune,
		Description: "L:로그아웃", Visible: true,
		Handler: func() { a.logout() },
	})
	a.registry.AddView("rooms", "refresh", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:새로고침", Visible: true,
		Handler: func() {
			go func() {
				a.vm.Focus(a.ctx)
				_ = a.vm.LoadRooms(a.ctx)
				a.redrawRooms()
			}()
		},
	})
}

func (a *App) setupCallbacks() {
	a.roomList.SetSelectedFunc(func(row, col int) {
		if id := a.roomList.SelectedRoom(); id != 0 {
			a.openRoom(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		roomID := a.vm.GetActiveRoomID()
		if roomID == 0 {
			return
		}
		if strings.HasPrefix(text, "/") {
			a.runCommand(roomID, ParseCommand(text[1:]))
			return
		}
		go func() {
			if err := a.vm.SendText(a.ctx, roomID, text); err != nil {
				a.vm.Flash.Set("전송 실패: "+err.Error(), 5*time.Second)
			}
			_ = a.vm.LoadThread(a.ctx, roomID)
			a.app.QueueUpdateDraw(func() {
				a.msgView.Update(a.vm.GetThread())
				a.statusBar.SetFlash(a.vm.Flash.Get())
			})
		}()
	})

	a.authView.SetOnSubmit(func(code string) {
		go func() {
			a.app.QueueUpdateDraw(func() {
				a.authView.ShowMessage("로그인 중...")
			})
			if err := a.vm.Login(a.ctx, code); err != nil {
				a.vm.Flash.Set("로그인 실패: "+err.Error(), 5*time.Second)
				a.app.QueueUpdateDraw(func() {
					a.authView.ShowMessage("로그인 실패: " + err.Error())
					a.statusBar.SetFlash(a.vm.Flash.Get())
				})
				return
			}
			_ = a.vm.LoadRooms(a.ctx)
			a.app.QueueUpdateDraw(func() {
				a.roomList.Update(a.vm.GetRooms())
				a.pages.SwitchToPage("rooms")
				a.app.SetFocus(a.roomList)
			})
		}()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("rooms", a.roomList, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("auth", a.authView, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			if currentPage == "chat" {
				a.closeRoom()
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

// runCommand handles composer slash commands.
func (a *App) runCommand(roomID int64, cmd Command) {
	switch cmd.Name {
	case "img", "사진":
		a.attach(roomID, cmd.Args, "image")
	case "vid", "동영상":
		a.attach(roomID, cmd.Args, "video")
	default:
		a.vm.Flash.Set("알 수 없는 명령: /"+cmd.Name, 3*time.Second)
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetFlash(a.vm.Flash.Get())
		})
	}
}

func (a *App) attach(roomID int64, path, kind string) {
	if path == "" {
		a.vm.Flash.Set("파일 경로가 필요합니다", 3*time.Second)
		return
	}
	go func() {
		if err := a.vm.SendMedia(a.ctx, roomID, path, kind); err != nil {
			a.vm.Flash.Set("첨부 실패: "+err.Error(), 5*time.Second)
		}
		_ = a.vm.LoadThread(a.ctx, roomID)
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.vm.GetThread())
			a.statusBar.SetFlash(a.vm.Flash.Get())
		})
	}()
}

func (a *App) openRoom(roomID int64) {
	go func() {
		if err := a.vm.LoadThread(a.ctx, roomID); err != nil {
			a.vm.Flash.Set("불러오기 실패: "+err.Error(), 5*time.Second)
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.vm.Flash.Get())
			})
			return
		}
		a.vm.MarkRead(a.ctx, roomID)
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.vm.GetThread())
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.msgView)
		})
	}()
}

func (a *App) closeRoom() {
	go a.vm.CloseThread(a.ctx)
	a.pages.SwitchToPage("rooms")
	a.app.SetFocus(a.roomList)
}

func (a *App) logout() {
	go func() {
		if err := a.vm.Logout(a.ctx); err != nil {
			a.vm.Flash.Set("로그아웃 실패: "+err.Error(), 5*time.Second)
			return
		}
		a.showAuth()
	}()
}

// showAuth fetches the authorize URL and switches to the login page.
func (a *App) showAuth() {
	url, err := a.vm.AuthURL(a.ctx)
	a.app.QueueUpdateDraw(func() {
		if err != nil {
			a.authView.ShowMessage("로그인 URL 조회 실패: " + err.Error())
		} else {
			a.authView.ShowLoginURL(url)
		}
		a.pages.SwitchToPage("auth")
		a.app.SetFocus(a.authView.Input())
	})
}

func (a *App) redrawRooms() {
	a.app.QueueUpdateDraw(func() {
		currentPage, _ := a.pages.GetFrontPage()
		if currentPage == "rooms" {
			a.roomList.Update(a.vm.GetRooms())
		}
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadStatus(a.ctx)
		_ = a.vm.LoadRooms(a.ctx)

		a.app.QueueUpdateDraw(func() {
			a.roomList.Update(a.vm.GetRooms())

			st := a.vm.GetStatus()
			if st != nil {
				a.statusBar.SetState(st.State)
				a.statusBar.SetUnread(st.UnreadTotal)
				if !st.LoggedIn {
					go a.showAuth()
				}
			}
		})

		a.startRefreshLoop()
	}()

	return a.app.Run()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(refreshEvery)
	go func() {
		for {
			select {
			case <-ticker.C:
				_ = a.vm.LoadStatus(a.ctx)
				_ = a.vm.LoadRooms(a.ctx)
				if roomID := a.vm.GetActiveRoomID(); roomID != 0 {
					_ = a.vm.LoadThread(a.ctx, roomID)
				}
				a.app.QueueUpdateDraw(func() {
					currentPage, _ := a.pages.GetFrontPage()
					switch currentPage {
					case "rooms":
						a.roomList.Update(a.vm.GetRooms())
					case "chat":
						a.msgView.Update(a.vm.GetThread())
					}

					st := a.vm.GetStatus()
					if st != nil {
						a.statusBar.SetState(st.State)
						a.statusBar.SetUnread(st.UnreadTotal)
						if currentPage == "auth" && st.LoggedIn {
							a.roomList.Update(a.vm.GetRooms())
							a.pages.SwitchToPage("rooms")
							a.app.SetFocus(a.roomList)
						}
						if currentPage != "auth" && !st.LoggedIn {
							// Session died mid-flight; everything resets.
							go a.showAuth()
						}
					}
					a.statusBar.SetFlash(a.vm.Flash.Get())
				})
			case <-a.ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
