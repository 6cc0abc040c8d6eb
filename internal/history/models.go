package history

import "time"

// Run is one ledger entry.
type Run struct {
	ID              int64
	RunID           string
	VideoID         string
	VideoPath       string
	Outcome         string
	ErrorMessage    string
	DetectionMode   string
	Threshold       float64
	ScenesDetected  int
	FramesExtracted int
	FramesFinal     int
	ReportPath      string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Duration is the wall time the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	VideoID string
	Outcome string
	Limit   int
}
