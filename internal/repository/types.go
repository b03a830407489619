package repository

import (
	"database/sql"
	"time"
)

type Repo struct {
	db *sql.DB
}

type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeStopped  Outcome = "stopped"
	OutcomeFailed   Outcome = "failed"
)

// Playback is one attempt at playing a queue item.
type Playback struct {
	ID          int64
	GuildID     string
	Input       string
	Title       string
	Kind        string
	RequestedBy string
	Outcome     Outcome
	Error       string
	StartedAt   time.Time
	EndedAt     time.Time
}

func (p Playback) Duration() time.Duration {
	if p.EndedAt.Before(p.StartedAt) {
		return 0
	}
	return p.EndedAt.Sub(p.StartedAt)
}

// Favorite is a named input saved for a guild. Kind is the input's
// classification when it was saved.
type Favorite struct {
	ID         int64
	GuildID    string
	Author     string
	Name       string
	Input      string
	Kind       string
	Uses       int
	LastUsedAt time.Time
}
