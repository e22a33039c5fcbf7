package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/jyoon-dev/ssak3/internal/api"
	"github.com/jyoon-dev/ssak3/internal/market"
	"github.com/jyoon-dev/ssak3/internal/sync"
)

// MessageView displays the merged history of a single room.
type MessageView struct {
	*tview.TextView
	peerName string
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" 메시지 ")

	return &MessageView{TextView: tv}
}

// SetHeader updates the title with the peer and product names.
func (mv *MessageView) SetHeader(peer, product string) {
	mv.peerName = peer
	title := fmt.Sprintf(" %s ", peer)
	if product != "" {
		title = fmt.Sprintf(" %s · %s ", peer, product)
	}
	mv.SetTitle(title)
}

// Update refreshes the message view with a fresh thread snapshot.
func (mv *MessageView) Update(thread *api.MessagesResponse) {
	mv.Clear()
	if thread == nil {
		return
	}

	mv.SetHeader(thread.PeerName, thread.ProductName)

	for _, item := range sync.WithDividers(threadEntries(thread), time.Local) {
		if item.Divider {
			_, _ = fmt.Fprintf(mv, "[::d]── %s ──[-:-:-]\n\n", item.Label)
			continue
		}

		e := item.Entry
		sender := mv.peerName
		if e.Mine {
			sender = "나"
		}

		body := sanitizeForTerminal(e.Message.Content)
		switch e.Message.Kind {
		case "image":
			body = "[사진] " + body
		case "video":
			body = "[동영상] " + body
		}

		ts := formatTimestamp(timestampMillis(e.Message.CreatedAt))
		marker := ""
		if e.Pending && e.Status == "sending" {
			marker = " [::d](전송 중)[-:-:-]"
		}

		_, _ = fmt.Fprintf(mv, "[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n", sender, ts, marker, body)
	}

	if thread.Placeholder {
		_, _ = fmt.Fprint(mv, "[::d]방 정보를 불러오지 못해 일부 표시가 제한됩니다.[-:-:-]\n")
	}

	mv.ScrollToEnd()
}

// threadEntries converts the wire rows back into feed entries, oldest
// first, keeping in-flight sends at the bottom.
func threadEntries(thread *api.MessagesResponse) []sync.Entry {
	var confirmed, pending []sync.Entry
	for _, r := range thread.Entries {
		e := sync.Entry{
			Key: r.Key,
			Message: market.Message{
				Kind:     r.Kind,
				Content:  r.Content,
				MediaURL: r.MediaURL,
			},
			Mine:    r.Mine,
			Status:  r.Status,
			Pending: r.Pending,
		}
		if r.SentAt != 0 {
			e.Message.CreatedAt = time.UnixMilli(r.SentAt)
		}
		if r.Pending {
			pending = append(pending, e)
		} else {
			confirmed = append(confirmed, e)
		}
	}

	// Confirmed rows arrive newest first; display oldest first.
	for i, j := 0, len(confirmed)-1; i < j; i, j = i+1, j-1 {
		confirmed[i], confirmed[j] = confirmed[j], confirmed[i]
	}
	return append(confirmed, pending...)
}

func timestampMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
