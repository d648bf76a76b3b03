package domain

import "time"

// Outcome is the result code of one cycle, reported back to the scheduler.
type Outcome int

const (
	// OutcomeSuccess means the cycle captured a sample and either drained the
	// backlog or deferred the upload because no network was available.
	OutcomeSuccess Outcome = iota

	// OutcomeRetry means a transient fault (no position, upload failure).
	// The scheduler should try again later, never immediately.
	OutcomeRetry

	// OutcomeFailure means the cycle cannot make progress without outside
	// intervention (permission revoked, storage fault).
	OutcomeFailure
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// MarshalText lets outcomes appear by name in JSON status documents.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses the names produced by MarshalText.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "success":
		*o = OutcomeSuccess
	case "retry":
		*o = OutcomeRetry
	case "failure":
		*o = OutcomeFailure
	default:
		return ErrUnknownOutcome
	}
	return nil
}

// Stage is the furthest point a cycle reached.
type Stage string

const (
	StageStart      Stage = "start"
	StageCaptured   Stage = "captured"
	StageSkipUpload Stage = "skip_upload"
	StageUploading  Stage = "uploading"
	StageDone       Stage = "done"
)

// CycleReport describes one completed cycle.
type CycleReport struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    Outcome   `json:"outcome"`
	Stage      Stage     `json:"stage"`

	// Captured is the sample persisted by this cycle, nil if none.
	Captured *Sample `json:"captured,omitempty"`

	// Uploaded counts samples acknowledged during the drain.
	Uploaded int `json:"uploaded"`

	// Remaining is the backlog size left when the drain stopped.
	Remaining int `json:"remaining"`

	// Err is the classified fault that decided a non-success outcome.
	Err string `json:"error,omitempty"`
}

// Duration returns how long the cycle took.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
