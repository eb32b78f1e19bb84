package database

import (
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type Run struct {
	ID          string     `json:"id"`
	SourceName  string     `json:"source"`
	TriggeredBy string     `json:"triggered_by"` // scheduler, api, once
	Status      RunStatus  `json:"status"`
	Outcome     string     `json:"outcome"` // found, empty, layout_changed; empty while running or when the listing was unavailable
	Reason      string     `json:"reason,omitempty"`
	Candidates  int        `json:"candidates"`
	Notified    int        `json:"notified"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	Deferred    int        `json:"deferred"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

type RunDocument struct {
	Position int    `json:"position"`
	Identity string `json:"identity"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// RunResult holds the figures recorded when a run finishes.
type RunResult struct {
	Status     RunStatus
	Outcome    string
	Reason     string
	Candidates int
	Notified   int
	Skipped    int
	Failed     int
	Deferred   int
	Error      string
}

type Stats struct {
	Runs           int        `json:"runs"`
	FailedRuns     int        `json:"failed_runs"`
	Notified       int        `json:"notified"`
	FailedDocs     int        `json:"failed_documents"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}
