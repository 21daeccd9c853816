package service

import "driftwatch/internal/model"

// Notifier receives orchestrator events for live push (avoids import cycle
// with the transports)
type Notifier interface {
	SessionProgress(session *model.TestSession)
	SessionFinished(session *model.TestSession)
	DriftDetected(event *model.ChangeEvent)
}

// MultiNotifier fans events out to several notifiers
type MultiNotifier []Notifier

func (m MultiNotifier) SessionProgress(session *model.TestSession) {
	for _, n := range m {
		n.SessionProgress(session)
	}
}

func (m MultiNotifier) SessionFinished(session *model.TestSession) {
	for _, n := range m {
		n.SessionFinished(session)
	}
}

func (m MultiNotifier) DriftDetected(event *model.ChangeEvent) {
	for _, n := range m {
		n.DriftDetected(event)
	}
}
