package models

// CrawlState represents the lifecycle state of a crawl run. It is owned
// exclusively by the controller; workers only observe it.
type CrawlState int32

const (
	StateIdle CrawlState = iota
	StateRunning
	StatePaused
	StateCancelling
	StateCompleted
	StateCancelled
)

// String implements fmt.Stringer for logging
func (s CrawlState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCancelling:
		return "cancelling"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal returns true once the run can no longer make progress.
func (s CrawlState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}
