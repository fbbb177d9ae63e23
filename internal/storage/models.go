package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Record is the single telemetry reading kept by the store.
type Record struct {
	ID         string
	BotID      string
	LeftSpeed  int
	RightSpeed int
	State      string
	CreatedAt  time.Time
}

// telemetryRow mirrors the telemetry table; created_at is stored as RFC3339 text.
type telemetryRow struct {
	ID         string `db:"id"`
	BotID      string `db:"bot_id"`
	LeftSpeed  int    `db:"left_speed"`
	RightSpeed int    `db:"right_speed"`
	State      string `db:"state"`
	CreatedAt  string `db:"created_at"`
}

func (r telemetryRow) record() (Record, error) {
	t, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:         r.ID,
		BotID:      r.BotID,
		LeftSpeed:  r.LeftSpeed,
		RightSpeed: r.RightSpeed,
		State:      r.State,
		CreatedAt:  t,
	}, nil
}

func rowFromRecord(rec Record) telemetryRow {
	return telemetryRow{
		ID:         rec.ID,
		BotID:      rec.BotID,
		LeftSpeed:  rec.LeftSpeed,
		RightSpeed: rec.RightSpeed,
		State:      rec.State,
		CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
