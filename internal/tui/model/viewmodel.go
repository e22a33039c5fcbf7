package model

import (
	"context"
	"sync"
	"time"

	"github.com/jyoon-dev/ssak3/internal/api"
	"github.com/jyoon-dev/ssak3/internal/tui/client"
)

// ViewModel caches daemon state between polls and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client       *client.Client
	Status       *api.StatusResponse
	Rooms        []api.RoomResponse
	Thread       *api.MessagesResponse
	ActiveRoomID int64
	Flash        Flash

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadStatus fetches the daemon status snapshot.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadRooms fetches the room directory.
func (vm *ViewModel) LoadRooms(ctx context.Context) error {
	rooms, err := vm.client.Rooms(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Rooms = rooms
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadThread fetches the merged history for the active room.
func (vm *ViewModel) LoadThread(ctx context.Context, roomID int64) error {
	thread, err := vm.client.Messages(ctx, roomID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.ActiveRoomID = roomID
	vm.Thread = thread
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// CloseThread drops the active room and stops its feed on the daemon.
func (vm *ViewModel) CloseThread(ctx context.Context) {
	vm.mu.Lock()
	roomID := vm.ActiveRoomID
	vm.ActiveRoomID = 0
	vm.Thread = nil
	vm.mu.Unlock()
	if roomID != 0 {
		_ = vm.client.CloseRoom(ctx, roomID)
	}
}

// SendText queues a text message in the active room.
func (vm *ViewModel) SendText(ctx context.Context, roomID int64, text string) error {
	if _, err := vm.client.SendText(ctx, roomID, text); err != nil {
		return err
	}
	vm.signalRefresh()
	return nil
}

// SendMedia queues a local file in the active room.
func (vm *ViewModel) SendMedia(ctx context.Context, roomID int64, path, kind string) error {
	if _, err := vm.client.SendMedia(ctx, roomID, path, kind); err != nil {
		return err
	}
	vm.Flash.Set("첨부 전송 대기 중", 3*time.Second)
	vm.signalRefresh()
	return nil
}

// MarkRead reports the room as viewed.
func (vm *ViewModel) MarkRead(ctx context.Context, roomID int64) {
	_ = vm.client.MarkRead(ctx, roomID)
}

// Login exchanges an OAuth code for a session.
func (vm *ViewModel) Login(ctx context.Context, code string) error {
	resp, err := vm.client.Login(ctx, code)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Logout tears the session down.
func (vm *ViewModel) Logout(ctx context.Context) error {
	if err := vm.client.Logout(ctx); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Rooms = nil
	vm.Thread = nil
	vm.ActiveRoomID = 0
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// AuthURL fetches the provider authorize URL.
func (vm *ViewModel) AuthURL(ctx context.Context) (string, error) {
	return vm.client.AuthURL(ctx)
}

// Focus reports the UI regaining attention.
func (vm *ViewModel) Focus(ctx context.Context) {
	_ = vm.client.Focus(ctx)
}

// GetStatus returns a snapshot of the daemon status.
func (vm *ViewModel) GetStatus() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Status
}

// GetRooms returns a snapshot of the current room list.
func (vm *ViewModel) GetRooms() []api.RoomResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Rooms
}

// GetThread returns a snapshot of the active room's history.
func (vm *ViewModel) GetThread() *api.MessagesResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Thread
}

// GetActiveRoomID returns the currently open room, 0 if none.
func (vm *ViewModel) GetActiveRoomID() int64 {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ActiveRoomID
}
