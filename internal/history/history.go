// Package history provides an append-only record of control-loop
// transitions: intent changes, window states and device command
// results.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of recorded event.
type EventType string

const (
	EventIntentChanged EventType = "intent_changed"
	EventWindowChanged EventType = "window_changed"
	EventSetpointSet   EventType = "setpoint_set"
	EventModeChanged   EventType = "mode_changed"
	EventDeviceResult  EventType = "device_result"
)

// Entry is a single recorded event.
type Entry struct {
	ID        int64
	EventID   string
	EventType EventType
	Timestamp time.Time
	Member    string
	Detail    map[string]any
}

// History wraps the climate_history table.
type History struct {
	db *sql.DB
}

// New creates a History using the provided database connection.
func New(db *sql.DB) *History {
	return &History{db: db}
}

// Append records an event. Member may be empty for group-level events.
func (h *History) Append(eventType EventType, member string, detail map[string]any) error {
	var detailJSON []byte
	var err error

	if detail != nil {
		detailJSON, err = json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("failed to marshal detail: %w", err)
		}
	}

	_, err = h.db.Exec(
		`INSERT INTO climate_history (event_id, event_type, timestamp, member, detail) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), string(eventType), time.Now().UTC().Unix(), nullable(member), string(detailJSON),
	)
	return err
}

// GetByType returns the most recent entries of one type.
func (h *History) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := h.db.Query(`
		SELECT id, event_id, event_type, timestamp, member, detail
		FROM climate_history
		WHERE event_type = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return h.scanEntries(rows)
}

// GetByTimeRange returns entries within a time range.
func (h *History) GetByTimeRange(start, end time.Time, limit int) ([]*Entry, error) {
	rows, err := h.db.Query(`
		SELECT id, event_id, event_type, timestamp, member, detail
		FROM climate_history
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, start.Unix(), end.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return h.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the retention window.
func (h *History) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := h.db.Exec(`DELETE FROM climate_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (h *History) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var member, detail sql.NullString
		var timestamp int64

		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.EventType, &timestamp, &member, &detail); err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if member.Valid {
			entry.Member = member.String
		}
		if detail.Valid && detail.String != "" {
			entry.Detail = make(map[string]any)
			if err := json.Unmarshal([]byte(detail.String), &entry.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal detail: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
