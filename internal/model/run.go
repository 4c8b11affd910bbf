package model

import "time"

// RunStatus represents the lifecycle of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ItemStatus is the outcome of one message's walk through the graph.
type ItemStatus string

const (
	ItemProcessed ItemStatus = "processed"
	ItemSkipped   ItemStatus = "skipped"
	ItemFiltered  ItemStatus = "filtered"
	ItemDryRun    ItemStatus = "dry_run"
	ItemInvalid   ItemStatus = "invalid"
	ItemFailed    ItemStatus = "failed"
)

// Route names the terminal render stage an item was sent to.
type Route string

const (
	RouteBill    Route = "bill"
	RouteReceipt Route = "receipt"
	RouteSummary Route = "summary"
)

// Run is one invocation of the batch driver.
type Run struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Status    RunStatus     `json:"status"`
	Summary   *BatchSummary `json:"summary,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BatchSummary counts item outcomes for a run.
type BatchSummary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Filtered  int `json:"filtered"`
	DryRun    int `json:"dry_run"`
	Invalid   int `json:"invalid"`
	Failed    int `json:"failed"`
}

// Add counts one item outcome.
func (s *BatchSummary) Add(status ItemStatus) {
	s.Total++
	switch status {
	case ItemProcessed:
		s.Processed++
	case ItemSkipped:
		s.Skipped++
	case ItemFiltered:
		s.Filtered++
	case ItemDryRun:
		s.DryRun++
	case ItemInvalid:
		s.Invalid++
	default:
		s.Failed++
	}
}

// ItemResult describes what happened to one message.
type ItemResult struct {
	ID           string     `json:"id"`
	RunID        string     `json:"run_id,omitempty"`
	File         string     `json:"file"`
	Hash         string     `json:"hash,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	Status       ItemStatus `json:"status"`
	Route        Route      `json:"route,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	Messages     []string   `json:"messages,omitempty"`
	Error        string     `json:"error,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	CreatedAt    time.Time  `json:"created_at"`
}
