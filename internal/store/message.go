package store

import "time"

// UpsertMessage inserts or updates a message, idempotent on
// (room_id, server_id) for confirmed messages and on temp_id for local
// ones. A confirmed record that matches an existing temp_id promotes that
// row in place instead of inserting a duplicate.
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	if m.ServerID != 0 && m.TempID != "" {
		// reconciliation: the optimistic row learns its server id
		res, err := db.Exec(`
			UPDATE messages SET server_id = ?, status = ?, sent_at = ?
			WHERE temp_id = ?`,
			m.ServerID, m.Status, m.SentAt, m.TempID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
	}
	if m.ServerID != 0 {
		_, err := db.Exec(`
			INSERT INTO messages (room_id, server_id, temp_id, sender_id, mine, kind, content, media_url, status, sent_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(room_id, server_id) WHERE server_id != 0 DO UPDATE SET
				content = excluded.content,
				media_url = excluded.media_url,
				status = excluded.status,
				sent_at = excluded.sent_at`,
			m.RoomID, m.ServerID, m.TempID, m.SenderID, m.Mine, m.Kind, m.Content, m.MediaURL, m.Status, m.SentAt, now)
		return err
	}
	_, err := db.Exec(`
		INSERT INTO messages (room_id, server_id, temp_id, sender_id, mine, kind, content, media_url, status, sent_at, created_at)
		VALUES (?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(temp_id) WHERE temp_id != '' DO UPDATE SET
			status = excluded.status,
			sent_at = excluded.sent_at`,
		m.RoomID, m.TempID, m.SenderID, m.Mine, m.Kind, m.Content, m.MediaURL, m.Status, m.SentAt, now)
	return err
}

// ListMessages returns messages for a room using keyset pagination by
// sent time, newest first.
func (db *DB) ListMessages(roomID int64, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, room_id, server_id, temp_id, sender_id, mine, kind, content, media_url, status, sent_at
		FROM messages
		WHERE room_id = ? AND sent_at < ?
		ORDER BY sent_at DESC
		LIMIT ?`, roomID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.ServerID, &m.TempID, &m.SenderID, &m.Mine, &m.Kind, &m.Content, &m.MediaURL, &m.Status, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteMessageByTempID removes a failed optimistic message.
func (db *DB) DeleteMessageByTempID(tempID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE temp_id = ?`, tempID)
	return err
}
