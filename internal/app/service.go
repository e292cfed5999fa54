// Package app is the application layer: it connects the host event source,
// the bus, and the decision policies, and owns their start and stop order.
package app

import (
	"log/slog"
	"sync"

	"github.com/mkaindl/offsetpilot/internal/bus"
	"github.com/mkaindl/offsetpilot/internal/domain"
)

// EventSource feeds host notifications into the bus. Satisfied by
// kodi.EventAdapter.
type EventSource interface {
	Start()
	Stop()
}

// Stopper is any component with background work to drain at shutdown.
type Stopper interface {
	Stop()
}

// Service subscribes the policies to the bus and runs the event source.
type Service struct {
	bus       *bus.Bus
	source    EventSource
	offsets   bus.Handler
	seekbacks bus.Handler
	stoppers  []Stopper

	subs     []*bus.Subscription
	stopOnce sync.Once
}

// NewService wires the service. stoppers are drained at shutdown in the
// given order, after event intake has ceased.
func NewService(b *bus.Bus, source EventSource, offsets, seekbacks bus.Handler, stoppers ...Stopper) *Service {
	return &Service{
		bus:       b,
		source:    source,
		offsets:   offsets,
		seekbacks: seekbacks,
		stoppers:  stoppers,
	}
}

// Start subscribes the policies and begins consuming host events. The offset
// policy subscribes first so a stored offset is applied before a seek-back
// is scheduled for the same event.
func (s *Service) Start() {
	for _, t := range []domain.EventType{
		domain.EventAVStarted,
		domain.EventAVChange,
		domain.EventPlaybackStopped,
		domain.EventPlaybackEnded,
	} {
		s.subs = append(s.subs, s.bus.Subscribe(t, s.offsets))
	}

	for _, t := range []domain.EventType{
		domain.EventAVStarted,
		domain.EventAVChange,
		domain.EventPlaybackPaused,
		domain.EventPlaybackResumed,
		domain.EventUserAdjustment,
		domain.EventPlaybackStopped,
		domain.EventPlaybackEnded,
	} {
		s.subs = append(s.subs, s.bus.Subscribe(t, s.seekbacks))
	}

	s.source.Start()
	slog.Info("Service started")
}

// Stop shuts down in dependency order: stop event intake, detach the
// policies, then drain background work.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.source.Stop()
		for _, sub := range s.subs {
			s.bus.Unsubscribe(sub)
		}
		for _, st := range s.stoppers {
			st.Stop()
		}
		slog.Info("Service stopped")
	})
}
