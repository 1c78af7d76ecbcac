package db

import (
	"fmt"
	"time"
)

// memoryLimit bounds each bot's durable memory; the oldest entries are
// evicted on overflow.
const memoryLimit = 10

// Append stores one memory line for bot and prunes beyond the limit.
func (db *DB) Append(bot, text string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin memory tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO bot_memories (bot, content, created_at) VALUES (?, ?, ?)
	`, bot, text, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM bot_memories WHERE bot = ? AND id NOT IN (
			SELECT id FROM bot_memories WHERE bot = ? ORDER BY id DESC LIMIT ?
		)
	`, bot, bot, memoryLimit); err != nil {
		return fmt.Errorf("prune memories: %w", err)
	}
	return tx.Commit()
}

// For returns bot's memory lines, oldest first.
func (db *DB) For(bot string) ([]string, error) {
	rows, err := db.Query(`
		SELECT content FROM bot_memories WHERE bot = ? ORDER BY id ASC
	`, bot)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, text)
	}
	return memories, rows.Err()
}
