package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/rivo/tview"

	"github.com/jyoon-dev/ssak3/internal/tui/ui"
)

// AuthView displays the Kakao login QR code and collects the OAuth code
// pasted back from the browser redirect.
type AuthView struct {
	*tview.Flex
	text     *tview.TextView
	input    *tview.InputField
	onSubmit func(code string)
}

// NewAuthView creates a new auth view.
func NewAuthView(theme *ui.Theme) *AuthView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)

	input := tview.NewInputField().
		SetLabel(" 인증 코드: ").
		SetFieldWidth(0)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tv, 0, 1, false).
		AddItem(input, 1, 0, true)
	flex.SetBorder(true)
	flex.SetBorderColor(theme.BorderColor)
	flex.SetTitle(" 로그인 ")
	flex.SetTitleColor(theme.TitleColor)

	av := &AuthView{Flex: flex, text: tv, input: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && av.onSubmit != nil {
			code := strings.TrimSpace(input.GetText())
			if code != "" {
				av.onSubmit(code)
				input.SetText("")
			}
		}
	})

	return av
}

// SetOnSubmit sets the callback for a pasted OAuth code.
func (av *AuthView) SetOnSubmit(fn func(code string)) {
	av.onSubmit = fn
}

// Input returns the code entry field for focus handling.
func (av *AuthView) Input() *tview.InputField {
	return av.input
}

// ShowLoginURL renders the authorize URL as a scannable QR code.
func (av *AuthView) ShowLoginURL(url string) {
	av.text.Clear()

	ascii := renderQR(url)
	_, _ = fmt.Fprintf(av.text, "\n  휴대폰으로 QR을 스캔해 카카오 로그인 후,\n  주소창의 code 값을 아래에 붙여넣으세요:\n\n%s\n  [::d]%s", ascii, url)
}

// ShowMessage displays a status message.
func (av *AuthView) ShowMessage(msg string) {
	av.text.Clear()
	_, _ = fmt.Fprintf(av.text, "\n\n%s", msg)
}

// renderQR converts a string to a compact ASCII QR code using Unicode
// half-block characters.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder

	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := false
			if y+1 < rows {
				bot = bitmap[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█') // █
			case top && !bot:
				sb.WriteRune('▀') // ▀
			case !top && bot:
				sb.WriteRune('▄') // ▄
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}

	return sb.String()
}
