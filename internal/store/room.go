package store

import (
	"database/sql"
	"time"
)

// UpsertRoom inserts or updates a room record.
func (db *DB) UpsertRoom(r *Room) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO rooms (id, buyer_id, buyer_nickname, seller_id, seller_nickname,
			product_id, product_title, product_price, product_thumbnail,
			last_message, last_activity, unread_count, my_side, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			buyer_id = excluded.buyer_id,
			buyer_nickname = excluded.buyer_nickname,
			seller_id = excluded.seller_id,
			seller_nickname = excluded.seller_nickname,
			product_id = excluded.product_id,
			product_title = excluded.product_title,
			product_price = excluded.product_price,
			product_thumbnail = excluded.product_thumbnail,
			last_message = excluded.last_message,
			last_activity = excluded.last_activity,
			unread_count = excluded.unread_count,
			my_side = excluded.my_side,
			updated_at = excluded.updated_at`,
		r.ID, r.BuyerID, r.BuyerNickname, r.SellerID, r.SellerNickname,
		r.ProductID, r.ProductTitle, r.ProductPrice, r.ProductThumbnail,
		r.LastMessage, r.LastActivity, r.UnreadCount, r.MySide, now)
	return err
}

// ListRooms returns rooms sorted by last activity descending.
func (db *DB) ListRooms(limit, offset int) ([]Room, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, buyer_id, buyer_nickname, seller_id, seller_nickname,
			product_id, product_title, product_price, product_thumbnail,
			last_message, last_activity, unread_count, my_side
		FROM rooms
		ORDER BY last_activity DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rooms []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.BuyerID, &r.BuyerNickname, &r.SellerID, &r.SellerNickname,
			&r.ProductID, &r.ProductTitle, &r.ProductPrice, &r.ProductThumbnail,
			&r.LastMessage, &r.LastActivity, &r.UnreadCount, &r.MySide); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// GetRoom returns a single room, or nil when unknown.
func (db *DB) GetRoom(id int64) (*Room, error) {
	var r Room
	err := db.QueryRow(`
		SELECT id, buyer_id, buyer_nickname, seller_id, seller_nickname,
			product_id, product_title, product_price, product_thumbnail,
			last_message, last_activity, unread_count, my_side
		FROM rooms WHERE id = ?`, id).
		Scan(&r.ID, &r.BuyerID, &r.BuyerNickname, &r.SellerID, &r.SellerNickname,
			&r.ProductID, &r.ProductTitle, &r.ProductPrice, &r.ProductThumbnail,
			&r.LastMessage, &r.LastActivity, &r.UnreadCount, &r.MySide)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRoom removes a room and its mirrored messages.
func (db *DB) DeleteRoom(id int64) error {
	if _, err := db.Exec(`DELETE FROM messages WHERE room_id = ?`, id); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM rooms WHERE id = ?`, id)
	return err
}
