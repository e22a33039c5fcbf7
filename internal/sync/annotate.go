package sync

import "time"

// Item is a renderable row: either a date divider or a message entry.
type Item struct {
	Divider bool
	Label   string
	Entry   Entry
}

// WithDividers inserts a date divider before the first message of each
// calendar day. Pure transform of its input. Entries without a timestamp
// (in-flight optimistic sends) inherit the preceding day and never open a
// new divider.
func WithDividers(entries []Entry, loc *time.Location) []Item {
	if loc == nil {
		loc = time.Local
	}
	items := make([]Item, 0, len(entries)+4)
	var lastDay string
	for _, e := range entries {
		ts := e.Message.CreatedAt
		if !ts.IsZero() {
			day := ts.In(loc).Format("2006년 1월 2일")
			if day != lastDay {
				items = append(items, Item{Divider: true, Label: day})
				lastDay = day
			}
		}
		items = append(items, Item{Entry: e})
	}
	return items
}
