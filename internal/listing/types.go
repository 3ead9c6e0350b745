// Package listing defines core types shared across subsystems.
package listing

import "time"

// Outcome classifies the result of one fetch attempt against a source.
type Outcome string

// Outcome values recorded in source health history.
const (
	OutcomeUnknown Outcome = "unknown"
	OutcomeOK      Outcome = "ok"
	OutcomeEmpty   Outcome = "empty"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// HistoryLimit bounds the per-source rolling outcome history.
const HistoryLimit = 7

// Event is one short-lived listing produced by a source. ID is the
// stable identity used for deduplication across sources. Weight is
// always overwritten with the registry's canonical weight for the
// source that produced the event.
type Event struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Weight       float64 `json:"weight"`
	Name         string  `json:"name"`
	Venue        string  `json:"venue"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	Date         string  `json:"date"` // civil date, YYYY-MM-DD
	StartTime    string  `json:"start_time,omitempty"`
	EndTime      string  `json:"end_time,omitempty"`
	URL          string  `json:"url,omitempty"`
	Lat          float64 `json:"lat,omitempty"`
	Lon          float64 `json:"lon,omitempty"`
}

// SourceHealth is the rolling per-source health record. History holds
// the last HistoryLimit outcomes, oldest first. It is written only at
// the end of a refresh cycle.
type SourceHealth struct {
	Label            string        `json:"label"`
	LastOutcome      Outcome       `json:"last_outcome"`
	LastError        string        `json:"last_error,omitempty"`
	LastProbeStatus  int           `json:"last_probe_status,omitempty"`
	LastDuration     time.Duration `json:"last_duration_ms"`
	LastAttempt      time.Time     `json:"last_attempt"`
	Attempts         int           `json:"attempts"`
	Successes        int           `json:"successes"`
	ConsecutiveZeros int           `json:"consecutive_zeros"`
	History          []Outcome     `json:"history"`
}

// ScrapeStats summarizes one completed refresh cycle. It is replaced
// wholesale each cycle, never accumulated.
type ScrapeStats struct {
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Duration      time.Duration `json:"duration_ms"`
	RawEvents     int           `json:"raw_events"`
	DedupedEvents int           `json:"deduped_events"`
	SourcesOK     int           `json:"sources_ok"`
	SourcesFailed int           `json:"sources_failed"`
	SourcesEmpty  int           `json:"sources_empty"`
}

// Snapshot is one complete published cache generation. Readers always
// observe a whole generation, never a partially merged one.
type Snapshot struct {
	Events      []Event   `json:"events"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Target is the point of interest a caller wants results ranked
// against.
type Target struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
