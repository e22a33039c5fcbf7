package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/jyoon-dev/ssak3/internal/api"
)

// RoomList is the main room directory view.
type RoomList struct {
	*tview.Table
	rooms      []api.RoomResponse
	selectedFn func() (int, int)
}

// NewRoomList creates a new room list table.
func NewRoomList() *RoomList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" 채팅 ")

	rl := &RoomList{Table: table}
	rl.selectedFn = table.GetSelection
	return rl
}

// Update refreshes the room list with new data.
func (rl *RoomList) Update(rooms []api.RoomResponse) {
	rl.rooms = rooms
	rl.Clear()

	// Header row.
	rl.SetCell(0, 0, tview.NewTableCell(" 상대").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	rl.SetCell(0, 1, tview.NewTableCell(" 상품").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	rl.SetCell(0, 2, tview.NewTableCell(" 마지막 메시지").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	rl.SetCell(0, 3, tview.NewTableCell(" 시각").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, room := range rooms {
		row := i + 1
		name := room.PeerName
		if name == "" {
			name = "상대방"
		}
		if room.MySide == "seller" {
			name += " [판매]"
		} else if room.MySide == "buyer" {
			name += " [구매]"
		}
		if room.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, room.UnreadCount)
		}

		product := room.ProductTitle
		if room.ProductPrice > 0 {
			product = fmt.Sprintf("%s %s원", product, formatPrice(room.ProductPrice))
		}

		rl.SetCell(row, 0, tview.NewTableCell(" "+sanitizeForTerminal(name)).SetMaxWidth(26).SetExpansion(1))
		rl.SetCell(row, 1, tview.NewTableCell(" "+sanitizeForTerminal(product)).SetMaxWidth(28).SetExpansion(1))
		rl.SetCell(row, 2, tview.NewTableCell(" "+sanitizeForTerminal(room.LastMessage)).SetMaxWidth(40).SetExpansion(2))
		rl.SetCell(row, 3, tview.NewTableCell(" "+formatTimestamp(room.LastActivity)).SetMaxWidth(12))
	}
}

// SelectedRoom returns the id of the currently selected room, 0 if none.
func (rl *RoomList) SelectedRoom() int64 {
	row, _ := rl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(rl.rooms) {
		return rl.rooms[idx].ID
	}
	return 0
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// formatPrice inserts thousands separators the Korean way.
func formatPrice(won int64) string {
	s := fmt.Sprintf("%d", won)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
