package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGUI struct {
	mu         sync.Mutex
	dialogID   int
	delayLabel string
	ticks      int
}

func (f *fakeGUI) CurrentDialogID(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	return f.dialogID, nil
}

func (f *fakeGUI) InfoLabel(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delayLabel, nil
}

func (f *fakeGUI) set(dialogID int, delayLabel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogID = dialogID
	f.delayLabel = delayLabel
}

func (f *fakeGUI) tickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks
}

type memStore struct {
	mu sync.Mutex
	m  map[string]any
}

func newMemStore() *memStore { return &memStore{m: make(map[string]any)} }

func (s *memStore) GetBool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, _ := s.m[key].(bool)
	return b
}

func (s *memStore) GetInt(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := s.m[key].(int)
	return n
}

func (s *memStore) GetString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.m[key].(string)
	return v
}

func (s *memStore) SetBool(key string, v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
	return true
}

func (s *memStore) SetInt(key string, v int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
	return true
}

func (s *memStore) SetString(key, v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
	return true
}

type fixedSource struct {
	sig domain.StreamSignature
	ok  bool
}

func (f *fixedSource) Current() (domain.StreamSignature, bool) { return f.sig, f.ok }

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakePublisher) Publish(_ context.Context, ev domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakePublisher) last() domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

type savedRecorder struct {
	mu    sync.Mutex
	saved []int
}

func (r *savedRecorder) OffsetSaved(_ context.Context, delayMillis int, _ domain.StreamSignature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, delayMillis)
}

func validSig() domain.StreamSignature {
	return domain.StreamSignature{HDR: domain.HDR10, FPS: "23", Audio: domain.AudioEAC3, PlayerID: 1}
}

type pollerFixture struct {
	poller    *Poller
	gui       *fakeGUI
	store     *memStore
	publisher *fakePublisher
	saved     *savedRecorder
	clock     *clockwork.FakeClock
}

func newFixture(sig domain.StreamSignature, haveSig bool) *pollerFixture {
	gui := &fakeGUI{}
	store := newMemStore()
	publisher := &fakePublisher{}
	saved := &savedRecorder{}
	clock := clockwork.NewFakeClock()
	poller := NewPoller(gui, store, &fixedSource{sig: sig, ok: haveSig}, publisher, saved, clock)
	return &pollerFixture{poller: poller, gui: gui, store: store, publisher: publisher, saved: saved, clock: clock}
}

// step lets the current tick finish, applies the host state for the next
// tick, then fires it.
func (fx *pollerFixture) step(dialogID int, delayLabel string) {
	fx.clock.BlockUntil(1)
	fx.gui.set(dialogID, delayLabel)
	fx.clock.Advance(time.Second)
}

func TestConvertDelayToMillis(t *testing.T) {
	tests := []struct {
		label   string
		want    int
		wantErr bool
	}{
		{"-0.075 s", -75, false},
		{"-0.050 s", -50, false},
		{"0.125 s", 125, false},
		{"0.000 s", 0, false},
		{"2 s", 2000, false},
		{"garbage", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ConvertDelayToMillis(tt.label)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPoller_CommitsChangeOnSliderClose(t *testing.T) {
	fx := newFixture(validSig(), true)
	fx.store.SetInt(validSig().Key(), -50)

	fx.gui.set(DialogAudioSlider, "-0.050 s")
	fx.poller.Start()
	defer fx.poller.Stop()

	fx.step(DialogAudioSlider, "-0.075 s") // sampled new value
	fx.step(0, "")                         // slider closed, finalize

	assert.Eventually(t, func() bool {
		return fx.store.GetInt(validSig().Key()) == -75 && fx.publisher.count() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, domain.EventUserAdjustment, fx.publisher.last().Type)
	assert.Equal(t, -75, fx.publisher.last().OffsetMillis)
	assert.Equal(t, []int{-75}, fx.saved.saved)
}

func TestPoller_UnchangedValuePublishesNothing(t *testing.T) {
	fx := newFixture(validSig(), true)
	fx.store.SetInt(validSig().Key(), -75)

	fx.gui.set(DialogAudioSlider, "-0.075 s")
	fx.poller.Start()
	defer fx.poller.Stop()

	fx.step(0, "") // close with the already-stored value

	// Reopen and close with the same value again.
	fx.step(DialogAudioSlider, "-0.075 s")
	fx.step(0, "")

	fx.clock.BlockUntil(1)
	assert.Zero(t, fx.publisher.count())
	assert.Equal(t, -75, fx.store.GetInt(validSig().Key()))
}

func TestPoller_SecondCloseWithSameValuePublishesOnce(t *testing.T) {
	fx := newFixture(validSig(), true)

	fx.gui.set(DialogAudioSlider, "-0.050 s")
	fx.poller.Start()
	defer fx.poller.Stop()

	fx.step(DialogAudioSlider, "-0.075 s")
	fx.step(0, "")

	assert.Eventually(t, func() bool { return fx.publisher.count() == 1 }, time.Second, 5*time.Millisecond)

	fx.step(DialogAudioSlider, "-0.075 s")
	fx.step(0, "")

	fx.clock.BlockUntil(1)
	assert.Equal(t, 1, fx.publisher.count(), "unchanged value must not be reprocessed")
}

func TestPoller_GarbageLabelIsNoOp(t *testing.T) {
	fx := newFixture(validSig(), true)

	fx.gui.set(DialogAudioSlider, "garbage")
	fx.poller.Start()
	defer fx.poller.Stop()

	fx.step(0, "")

	fx.clock.BlockUntil(1)
	assert.Zero(t, fx.publisher.count())
	assert.Zero(t, fx.store.GetInt(validSig().Key()))
}

func TestPoller_InvalidSignatureDiscardsAdjustment(t *testing.T) {
	fx := newFixture(domain.StreamSignature{HDR: domain.HDRUnknown, FPS: "23", Audio: domain.AudioEAC3}, true)

	fx.gui.set(DialogAudioSlider, "-0.075 s")
	fx.poller.Start()
	defer fx.poller.Stop()

	fx.step(0, "")

	fx.clock.BlockUntil(1)
	assert.Zero(t, fx.publisher.count())
}

func TestPoller_PollCadenceFollowsDialogState(t *testing.T) {
	fx := newFixture(validSig(), true)
	ctx := context.Background()

	assert.Equal(t, idlePollInterval, fx.poller.tick(ctx), "no dialog showing")

	fx.gui.set(DialogAudioSettings, "")
	assert.Equal(t, activePollInterval, fx.poller.tick(ctx), "settings dialog open")

	fx.gui.set(DialogAudioSlider, "0.000 s")
	assert.Equal(t, activePollInterval, fx.poller.tick(ctx), "slider open")

	fx.gui.set(0, "")
	assert.Equal(t, idlePollInterval, fx.poller.tick(ctx), "dialogs closed again")
}

func TestPoller_StopJoinsLoop(t *testing.T) {
	fx := newFixture(validSig(), true)

	fx.poller.Start()
	fx.clock.BlockUntil(1)
	fx.poller.Stop()

	ticks := fx.gui.tickCount()
	fx.clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ticks, fx.gui.tickCount(), "no tick may run after Stop returns")
}

func TestPoller_StartTwiceIsNoOp(t *testing.T) {
	fx := newFixture(validSig(), true)

	fx.poller.Start()
	fx.poller.Start()
	fx.clock.BlockUntil(1)

	fx.poller.Stop()
	fx.poller.Stop()
}
