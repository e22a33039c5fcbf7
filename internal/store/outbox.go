package store

import (
	"database/sql"
	"time"
)

// QueueOutbox adds a message to the send outbox.
func (db *DB) QueueOutbox(e *OutboxEntry) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (temp_id, room_id, kind, content, media_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'queued', ?, ?)`,
		e.TempID, e.RoomID, e.Kind, e.Content, e.MediaPath, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (db *DB) MarkOutboxSending(tempID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE temp_id = ?`, now, tempID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server
// message id, which may be 0 when the server acknowledged with an empty
// body.
func (db *DB) MarkOutboxSent(tempID string, serverMsgID int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', server_msg_id = ?, updated_at = ? WHERE temp_id = ?`, serverMsgID, now, tempID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(tempID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE temp_id = ?`, errMsg, now, tempID)
	return err
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, temp_id, room_id, kind, content, media_path, status, error_message, server_msg_id
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	return scanOutbox(rows)
}

// UnresolvedOutbox returns entries still overlaying the rendered list:
// queued, in flight, or sent but not yet observed in a canonical poll.
func (db *DB) UnresolvedOutbox(roomID int64) ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, temp_id, room_id, kind, content, media_path, status, error_message, server_msg_id
		FROM outbox WHERE room_id = ? AND status IN ('queued', 'sending', 'sent')
		ORDER BY created_at ASC`, roomID)
	if err != nil {
		return nil, err
	}
	return scanOutbox(rows)
}

// ResolveOutbox removes an entry once the canonical list contains its
// message, or once a failed entry has been surfaced.
func (db *DB) ResolveOutbox(tempID string) error {
	_, err := db.Exec(`DELETE FROM outbox WHERE temp_id = ?`, tempID)
	return err
}

// GetOutbox returns a single entry by temp id, or nil.
func (db *DB) GetOutbox(tempID string) (*OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, temp_id, room_id, kind, content, media_path, status, error_message, server_msg_id
		FROM outbox WHERE temp_id = ?`, tempID)
	if err != nil {
		return nil, err
	}
	entries, err := scanOutbox(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func scanOutbox(rows *sql.Rows) ([]OutboxEntry, error) {
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.TempID, &e.RoomID, &e.Kind, &e.Content, &e.MediaPath, &e.Status, &e.ErrorMessage, &e.ServerMsgID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
