package app

import (
	"context"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mkaindl/offsetpilot/internal/bus"
	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	started int
	stopped int
}

func (s *stubSource) Start() { s.started++ }
func (s *stubSource) Stop()  { s.stopped++ }

type stubStopper struct {
	stopped int
}

func (s *stubStopper) Stop() { s.stopped++ }

type handlerLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *handlerLog) handler(name string) bus.Handler {
	return func(context.Context, domain.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.calls = append(l.calls, name)
	}
}

func (l *handlerLog) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func TestService_RoutesEventsToBothPolicies(t *testing.T) {
	b := bus.New(clockwork.NewFakeClock())
	source := &stubSource{}
	log := &handlerLog{}
	svc := NewService(b, source, log.handler("offsets"), log.handler("seekbacks"))

	svc.Start()
	defer svc.Stop()
	assert.Equal(t, 1, source.started)

	b.OnAVStarted(context.Background())
	assert.Equal(t, []string{"offsets", "seekbacks"}, log.recorded(),
		"offset policy must see the event before the seek-back policy")

	b.OnPaused(context.Background())
	assert.Equal(t, []string{"offsets", "seekbacks", "seekbacks"}, log.recorded(),
		"pause concerns the seek-back policy only")
}

func TestService_StopDetachesAndDrains(t *testing.T) {
	b := bus.New(clockwork.NewFakeClock())
	source := &stubSource{}
	stopper := &stubStopper{}
	log := &handlerLog{}
	svc := NewService(b, source, log.handler("offsets"), log.handler("seekbacks"), stopper)

	svc.Start()
	svc.Stop()

	assert.Equal(t, 1, source.stopped)
	assert.Equal(t, 1, stopper.stopped)

	b.OnAVStarted(context.Background())
	assert.Empty(t, log.recorded(), "no handler may run after Stop")

	svc.Stop() // idempotent
	assert.Equal(t, 1, stopper.stopped)
}
