package db

import (
	"fmt"

	"github.com/nicebartender/salon-server/engine"
)

// Insert appends one message to the durable log.
func (db *DB) Insert(m engine.Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (seq, id, sender, target, content, kind, reply_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Seq, m.ID, m.From, m.To, m.Content, string(m.Kind), m.ReplyTo, m.At)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// All returns the complete log in chronological order. Only the
// meeting-minutes document is built from this; ordinary generation works
// off the bounded window.
func (db *DB) All() ([]engine.Message, error) {
	rows, err := db.Query(`
		SELECT seq, id, sender, target, content, kind, reply_to, created_at
		FROM messages ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Recent returns the newest n log entries in chronological order.
func (db *DB) Recent(n int) ([]engine.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := db.Query(`
		SELECT seq, id, sender, target, content, kind, reply_to, created_at
		FROM messages ORDER BY seq DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (db *DB) Count() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Next() bool
	Scan(...any) error
	Err() error
}

func scanMessages(rows rowScanner) ([]engine.Message, error) {
	var messages []engine.Message
	for rows.Next() {
		var m engine.Message
		var kind string
		if err := rows.Scan(&m.Seq, &m.ID, &m.From, &m.To, &m.Content, &kind, &m.ReplyTo, &m.At); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Kind = engine.Kind(kind)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
