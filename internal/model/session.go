package model

import "time"

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionPartial   SessionStatus = "partial"
	SessionFailed    SessionStatus = "failed"
)

// Terminal reports whether no further transitions are possible
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionPartial || s == SessionFailed
}

// ErrorKind classifies a failed prompt attempt
type ErrorKind string

const (
	ErrorBackendTimeout         ErrorKind = "backend_timeout"
	ErrorBackendRateLimited     ErrorKind = "backend_rate_limited"
	ErrorBackendUnavailable     ErrorKind = "backend_unavailable"
	ErrorBackendInvalidResponse ErrorKind = "backend_invalid_response"
	ErrorEmptyResponse          ErrorKind = "analysis_empty_response"
	ErrorStoreRead              ErrorKind = "store_read_failed"
	ErrorStoreWrite             ErrorKind = "store_write_failed"
	ErrorCancelled              ErrorKind = "cancelled"
)

// SessionError is a human readable failure against one prompt
type SessionError struct {
	PromptID  string    `json:"promptId" bson:"promptId"`
	ErrorKind ErrorKind `json:"errorKind" bson:"errorKind"`
	Message   string    `json:"message" bson:"message"`
	Attempts  int       `json:"attempts" bson:"attempts"`
}

// TestSession is one battery run of the full catalog against one model
type TestSession struct {
	SessionID      string         `json:"sessionId" bson:"_id"`
	ModelName      string         `json:"modelName" bson:"modelName"`
	Status         SessionStatus  `json:"status" bson:"status"`
	StartedAt      time.Time      `json:"startedAt" bson:"startedAt"`
	FinishedAt     *time.Time     `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`
	TotalPrompts   int            `json:"totalPrompts" bson:"totalPrompts"`
	CompletedCount int            `json:"completedCount" bson:"completedCount"`
	FailedCount    int            `json:"failedCount" bson:"failedCount"`
	Cancelled      bool           `json:"cancelled" bson:"cancelled"`
	Errors         []SessionError `json:"errors" bson:"errors"`
}

// Clone returns a deep copy safe to hand out while the session is running
func (s *TestSession) Clone() *TestSession {
	c := *s
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	c.Errors = append([]SessionError{}, s.Errors...)
	return &c
}

// FinalStatus derives the terminal status from the counters
func (s *TestSession) FinalStatus() SessionStatus {
	switch {
	case s.FailedCount == 0 && !s.Cancelled:
		return SessionCompleted
	case s.TotalPrompts > 0 && s.FailedCount == s.TotalPrompts && !s.Cancelled:
		return SessionFailed
	default:
		return SessionPartial
	}
}
