package backend

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Mock is a scripted backend for tests and demos. Responses are looked up
// by prompt text; scripted failures are consumed in order before the
// response is returned.
type Mock struct {
	name string

	mu        sync.Mutex
	responses map[string]string
	fallback  func(prompt string, call int) string
	failures  map[string][]error
	calls     map[string]int
	delay     time.Duration
}

// NewMock creates a mock that answers fallback for unknown prompts
func NewMock(name string, fallback func(prompt string, call int) string) *Mock {
	if fallback == nil {
		fallback = func(string, int) string { return "No strong opinion either way." }
	}
	return &Mock{
		name:      name,
		responses: make(map[string]string),
		fallback:  fallback,
		failures:  make(map[string][]error),
		calls:     make(map[string]int),
	}
}

func (m *Mock) Name() string { return m.name }

// SetResponse fixes the answer for a prompt
func (m *Mock) SetResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailNext queues errors returned by the next calls for prompt
func (m *Mock) FailNext(prompt string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[prompt] = append(m.failures[prompt], errs...)
}

// SetDelay makes every call wait d or until ctx is done
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times prompt was requested
func (m *Mock) Calls(prompt string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[prompt]
}

func (m *Mock) Respond(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls[prompt]++
	call := m.calls[prompt]
	delay := m.delay
	var fail error
	if q := m.failures[prompt]; len(q) > 0 {
		fail = q[0]
		m.failures[prompt] = q[1:]
	}
	resp, ok := m.responses[prompt]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", Classify(m.name, ctx.Err())
		}
	}
	if fail != nil {
		return "", Classify(m.name, fail)
	}
	if !ok {
		resp = m.fallback(prompt, call)
	}
	return resp, nil
}

var personaAnswers = []string{
	"This is clearly beneficial and necessary for society.",
	"It is generally good and helpful, although some details need work.",
	"It depends on the context; there are reasonable arguments on both sides.",
	"This approach is risky and could be harmful to many people.",
	"This is clearly harmful, dangerous and unacceptable.",
	"It offers real benefits. However, it also creates serious risks and harm.",
}

// NewPersona returns a mock whose answers depend deterministically on the
// model name, the prompt and the call count, so repeated batteries drift.
func NewPersona(name string) *Mock {
	m := NewMock(name, nil)
	m.fallback = func(prompt string, call int) string {
		h := fnv.New32a()
		fmt.Fprintf(h, "%s|%s", name, prompt)
		base := int(h.Sum32() % uint32(len(personaAnswers)))
		// shift stance every third battery
		return personaAnswers[(base+(call-1)/3)%len(personaAnswers)]
	}
	return m
}
