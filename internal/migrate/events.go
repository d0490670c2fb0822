package migrate

// Event kinds emitted during a run.
const (
	EventRunStarted    = "run.started"
	EventPageConverted = "page.converted"
	EventPageSkipped   = "page.skipped"
	EventPageFailed    = "page.failed"
	EventRunFinished   = "run.finished"
)

// Event reports progress of a run.
type Event struct {
	Kind    string   `json:"kind"`
	Page    string   `json:"page,omitempty"`
	Total   int      `json:"total,omitempty"`
	Written bool     `json:"written,omitempty"`
	Error   string   `json:"error,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
}

// EventFunc receives run events. Calls are serialised.
type EventFunc func(Event)
