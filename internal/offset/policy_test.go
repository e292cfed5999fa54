package offset

import (
	"context"
	"errors"
	"testing"

	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delayCall struct {
	playerID int
	seconds  float64
}

type fakePlayers struct {
	delays []delayCall
	err    error
}

func (f *fakePlayers) ActivePlayer(context.Context) (int, error) { return 1, nil }

func (f *fakePlayers) CurrentAudioStream(context.Context, int) (string, int, error) {
	return "", 0, nil
}

func (f *fakePlayers) SetAudioDelay(_ context.Context, playerID int, seconds float64) error {
	f.delays = append(f.delays, delayCall{playerID: playerID, seconds: seconds})
	return f.err
}

func (f *fakePlayers) SeekBy(context.Context, int, int) error { return nil }

type memStore struct {
	m map[string]any
}

func newMemStore() *memStore { return &memStore{m: make(map[string]any)} }

func (s *memStore) GetBool(key string) bool {
	b, _ := s.m[key].(bool)
	return b
}

func (s *memStore) GetInt(key string) int {
	n, _ := s.m[key].(int)
	return n
}

func (s *memStore) GetString(key string) string {
	v, _ := s.m[key].(string)
	return v
}

func (s *memStore) SetBool(key string, v bool) bool { s.m[key] = v; return true }
func (s *memStore) SetInt(key string, v int) bool   { s.m[key] = v; return true }
func (s *memStore) SetString(key, v string) bool    { s.m[key] = v; return true }

type stubResolver struct {
	sig     domain.StreamSignature
	valid   bool
	cleared bool
}

func (r *stubResolver) Resolve(context.Context) (domain.StreamSignature, bool) {
	return r.sig, r.valid
}

func (r *stubResolver) Clear() { r.cleared = true }

type stubPoller struct {
	starts int
	stops  int
}

func (p *stubPoller) Start() { p.starts++ }
func (p *stubPoller) Stop()  { p.stops++ }

type appliedRecorder struct {
	applied []int
}

func (r *appliedRecorder) OffsetApplied(_ context.Context, delayMillis int, _ domain.StreamSignature) {
	r.applied = append(r.applied, delayMillis)
}

func validSig() domain.StreamSignature {
	return domain.StreamSignature{HDR: domain.HDR10, FPS: "23", Audio: domain.AudioEAC3, PlayerID: 1}
}

type fixture struct {
	policy   *Policy
	players  *fakePlayers
	store    *memStore
	resolver *stubResolver
	poller   *stubPoller
	notified *appliedRecorder
}

func newFixture(sig domain.StreamSignature, valid bool) *fixture {
	players := &fakePlayers{}
	store := newMemStore()
	resolver := &stubResolver{sig: sig, valid: valid}
	poller := &stubPoller{}
	notified := &appliedRecorder{}
	return &fixture{
		policy:   NewPolicy(players, store, resolver, poller, notified),
		players:  players,
		store:    store,
		resolver: resolver,
		poller:   poller,
		notified: notified,
	}
}

func TestPolicy_AppliesStoredOffset(t *testing.T) {
	fx := newFixture(validSig(), true)
	fx.store.SetBool(domain.EnableHDRKey(domain.HDR10), true)
	fx.store.SetInt(validSig().Key(), -75)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventAVStarted})

	require.Len(t, fx.players.delays, 1)
	assert.Equal(t, delayCall{playerID: 1, seconds: -0.075}, fx.players.delays[0])
	assert.Equal(t, []int{-75}, fx.notified.applied)
}

func TestPolicy_AppliesZeroWhenNothingStored(t *testing.T) {
	fx := newFixture(validSig(), true)
	fx.store.SetBool(domain.EnableHDRKey(domain.HDR10), true)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventAVChange})

	require.Len(t, fx.players.delays, 1)
	assert.Equal(t, delayCall{playerID: 1, seconds: 0}, fx.players.delays[0])
}

func TestPolicy_FreshInstallSkipsApplyButArmsPoller(t *testing.T) {
	fx := newFixture(validSig(), true)
	fx.store.SetBool(domain.KeyNewInstall, true)
	fx.store.SetBool(domain.KeyActiveMonitoring, true)
	fx.store.SetBool(domain.EnableHDRKey(domain.HDR10), true)
	fx.store.SetInt(validSig().Key(), -75)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventAVStarted})

	assert.Empty(t, fx.players.delays, "no offset right after install")
	assert.Equal(t, 1, fx.poller.starts, "monitoring still arms so the first adjustment is captured")
}

func TestPolicy_DisabledHDRTypeSkipsApplyAndPoller(t *testing.T) {
	fx := newFixture(validSig(), true)
	fx.store.SetBool(domain.KeyActiveMonitoring, true)
	fx.store.SetInt(validSig().Key(), -75)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventAVStarted})

	assert.Empty(t, fx.players.delays)
	assert.Zero(t, fx.poller.starts)
	assert.Equal(t, 1, fx.poller.stops)
}

func TestPolicy_IncompleteSignatureSkipsApply(t *testing.T) {
	sig := domain.StreamSignature{HDR: domain.HDRUnknown, FPS: domain.FPSUnknown, Audio: domain.AudioEAC3, PlayerID: 1}
	fx := newFixture(sig, false)
	fx.store.SetBool(domain.KeyActiveMonitoring, true)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventAVChange})

	assert.Empty(t, fx.players.delays)
	assert.Equal(t, 1, fx.poller.stops, "undetected signature disarms monitoring")
}

func TestPolicy_NoActivePlayerSkipsApplyButArmsPoller(t *testing.T) {
	sig := validSig()
	sig.PlayerID = domain.NoPlayer
	fx := newFixture(sig, true)
	fx.store.SetBool(domain.KeyActiveMonitoring, true)
	fx.store.SetBool(domain.EnableHDRKey(domain.HDR10), true)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventAVStarted})

	assert.Empty(t, fx.players.delays)
	assert.Equal(t, 1, fx.poller.starts)
}

func TestPolicy_ApplyErrorSuppressesNotification(t *testing.T) {
	fx := newFixture(validSig(), true)
	fx.players.err = errors.New("host unavailable")
	fx.store.SetBool(domain.EnableHDRKey(domain.HDR10), true)
	fx.store.SetInt(validSig().Key(), 125)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventAVStarted})

	assert.Empty(t, fx.notified.applied)
}

func TestPolicy_PlaybackStopClearsAndDisarms(t *testing.T) {
	fx := newFixture(validSig(), true)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventPlaybackStopped})

	assert.True(t, fx.resolver.cleared)
	assert.Equal(t, 1, fx.poller.stops)

	fx.policy.Handle(context.Background(), domain.Event{Type: domain.EventPlaybackEnded})
	assert.Equal(t, 2, fx.poller.stops)
}
