package journal

import "time"

// Status represents the lifecycle of a recorded request.
type Status string

const (
	StatusReceived    Status = "received"
	StatusResolving   Status = "resolving"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusReceived,
	StatusResolving,
	StatusDownloading,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	for _, candidate := range allStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Request is one journal row.
type Request struct {
	ID           int64
	RequestID    string
	Identity     string
	URL          string
	Platform     string
	TrackID      string
	TrackTitle   string
	TrackArtist  string
	Status       Status
	ErrorKind    string
	ErrorMessage string
	FilePath     string
	SizeBytes    int64
	FromCache    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Stats aggregates journal counters for the CLI and health output.
type Stats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	CacheHits int64 `json:"cache_hits"`
}
