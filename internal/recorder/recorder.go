package recorder

import "time"

// RunEvent summarizes one analysis and distribution run.
type RunEvent struct {
	RunID      string
	Trigger    string // "startup", "schedule", "test", "manual"
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Successful int
	Failed     int
	Recipients int
	Sent       int
	SendFailed int
	Error      string
}

// DeliveryEvent records the outcome of sending the report to one recipient.
type DeliveryEvent struct {
	RunID     string
	Recipient string
	Position  int
	Success   bool
	Error     string
	SentAt    time.Time
}

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRun(evt *RunEvent) error
	RecordDelivery(evt *DeliveryEvent) error
	Close() error
}
