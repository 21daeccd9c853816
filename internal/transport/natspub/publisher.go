// Package natspub mirrors drift events and finished sessions onto NATS
// subjects for downstream consumers.
package natspub

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"driftwatch/internal/model"
)

const (
	subjectPrefix   = "driftwatch"
	changesSubject  = subjectPrefix + ".changes."
	sessionsSubject = subjectPrefix + ".sessions."
)

// Conn is the publish side of a NATS connection
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher implements service.Notifier over NATS
type Publisher struct {
	conn Conn
	log  *zap.Logger
}

// NewPublisher creates a new publisher
func NewPublisher(conn Conn, log *zap.Logger) *Publisher {
	return &Publisher{conn: conn, log: log}
}

// Connect dials NATS with reconnect logging
func Connect(url string, log *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("driftwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

// ChangeSubject returns the subject drift events for a model are published on
func ChangeSubject(modelName string) string {
	return changesSubject + subjectToken(modelName)
}

// SessionSubject returns the subject finished sessions are published on
func SessionSubject(modelName string) string {
	return sessionsSubject + subjectToken(modelName)
}

// subjectToken makes a model name safe as a single subject token
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

func (p *Publisher) publish(subject string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Warn("failed to encode event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("nats publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// SessionProgress is not mirrored; progress is only pushed to dashboards
func (p *Publisher) SessionProgress(*model.TestSession) {}

func (p *Publisher) SessionFinished(session *model.TestSession) {
	p.publish(SessionSubject(session.ModelName), session)
}

func (p *Publisher) DriftDetected(event *model.ChangeEvent) {
	p.publish(ChangeSubject(event.ModelName), event)
}
