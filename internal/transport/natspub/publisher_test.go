package natspub

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"driftwatch/internal/model"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "driftwatch.changes.gpt-4o", ChangeSubject("gpt-4o"))
	assert.Equal(t, "driftwatch.sessions.gemini-2_5-flash", SessionSubject("gemini-2.5-flash"))
	assert.Equal(t, "driftwatch.changes.a_b_c", ChangeSubject("a*b>c"))
	assert.Equal(t, "driftwatch.changes._", ChangeSubject(""))
}

func TestPublisherForwardsEvents(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, zap.NewNop())

	p.SessionProgress(&model.TestSession{ModelName: "mock-alpha"})
	p.DriftDetected(&model.ChangeEvent{ID: "c1", ModelName: "mock-alpha", ToStance: model.StanceOpposed})
	p.SessionFinished(&model.TestSession{SessionID: "s1", ModelName: "mock-alpha", Status: model.SessionPartial})

	require.Len(t, conn.msgs, 2)
	assert.Equal(t, "driftwatch.changes.mock-alpha", conn.msgs[0].subject)
	var ev model.ChangeEvent
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &ev))
	assert.Equal(t, "c1", ev.ID)
	assert.Equal(t, model.StanceOpposed, ev.ToStance)

	assert.Equal(t, "driftwatch.sessions.mock-alpha", conn.msgs[1].subject)
	var session model.TestSession
	require.NoError(t, json.Unmarshal(conn.msgs[1].data, &session))
	assert.Equal(t, model.SessionPartial, session.Status)
}

func TestPublishErrorsAreSwallowed(t *testing.T) {
	p := NewPublisher(&fakeConn{err: errors.New("nats: connection closed")}, zap.NewNop())
	assert.NotPanics(t, func() {
		p.DriftDetected(&model.ChangeEvent{ModelName: "m"})
	})
}
