package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalStatus(t *testing.T) {
	tests := []struct {
		name    string
		session TestSession
		want    SessionStatus
	}{
		{"all completed", TestSession{TotalPrompts: 3, CompletedCount: 3}, SessionCompleted},
		{"some failed", TestSession{TotalPrompts: 3, CompletedCount: 2, FailedCount: 1}, SessionPartial},
		{"all failed", TestSession{TotalPrompts: 3, FailedCount: 3}, SessionFailed},
		{"cancelled after progress", TestSession{TotalPrompts: 3, CompletedCount: 1, FailedCount: 2, Cancelled: true}, SessionPartial},
		{"cancelled before anything completed", TestSession{TotalPrompts: 3, FailedCount: 3, Cancelled: true}, SessionPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.FinalStatus())
		})
	}
}
