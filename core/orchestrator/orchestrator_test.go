package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signet/core/audit"
	"signet/core/biometric"
	"signet/core/config"
	"signet/core/ledger"
	"signet/core/notify"
	"signet/core/provider"
	"signet/core/txstore"
)

// fixedScorer returns the same scores for every capture. Thread-safe so
// concurrent workers can share it.
type fixedScorer struct {
	mu    sync.Mutex
	face  float64
	live  float64
	calls int
}

func (s *fixedScorer) ScoreFace(ctx context.Context, image, reference []byte) (biometric.FaceScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return biometric.FaceScore{Detected: true, HasReference: len(reference) > 0, Match: s.face}, nil
}

func (s *fixedScorer) ScoreLiveness(ctx context.Context, image []byte) (biometric.LivenessScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return biometric.LivenessScore{Blink: s.live, Texture: s.live, Motion: s.live}, nil
}

func (s *fixedScorer) setLiveness(v float64) {
	s.mu.Lock()
	s.live = v
	s.mu.Unlock()
}

var testDoc = provider.Document{
	Name:        "offer.pdf",
	ContentType: "application/pdf",
	Content:     []byte("offer letter bytes"),
}

func testTenant() config.TenantConfig {
	tenant := config.DefaultTenantConfig()
	tenant.ProofOfWorkDifficulty = 1
	return tenant
}

func newTestOrchestrator(t *testing.T, tenant config.TenantConfig, scorer biometric.ScoreProvider) (*Orchestrator, *ledger.Ledger, *notify.Publisher) {
	t.Helper()
	l := ledger.NewLedger(tenant.ProofOfWorkDifficulty)
	trail := audit.NewStdoutTrail()
	store := txstore.NewStore(l, trail)
	verifier := biometric.NewVerifier(scorer, tenant.FaceMatchThreshold, tenant.LivenessThreshold)
	publisher := notify.NewPublisher()
	o := New(Config{
		Tenant:         tenant,
		Verifier:       verifier,
		Providers:      provider.NewFactory("", "", time.Second),
		Ledger:         l,
		Store:          store,
		Publisher:      publisher,
		Workers:        2,
		RequestTimeout: 2 * time.Second,
	})
	o.Start()
	t.Cleanup(o.Stop)
	return o, l, publisher
}

// newIdleOrchestrator builds an orchestrator without starting its workers
// so the job queue can be filled deterministically.
func newIdleOrchestrator(t *testing.T, tenant config.TenantConfig, queueSize int) *Orchestrator {
	t.Helper()
	l := ledger.NewLedger(tenant.ProofOfWorkDifficulty)
	store := txstore.NewStore(l, audit.NewStdoutTrail())
	verifier := biometric.NewVerifier(&fixedScorer{face: 0.95, live: 0.95}, tenant.FaceMatchThreshold, tenant.LivenessThreshold)
	o := New(Config{
		Tenant:         tenant,
		Verifier:       verifier,
		Providers:      provider.NewFactory("", "", time.Second),
		Ledger:         l,
		Store:          store,
		Publisher:      notify.NewPublisher(),
		Workers:        2,
		QueueSize:      queueSize,
		RequestTimeout: 2 * time.Second,
	})
	t.Cleanup(o.Stop)
	return o
}

func waitForStatus(t *testing.T, o *Orchestrator, requestID string, want Status) SignatureRequest {
	t.Helper()
	var last SignatureRequest
	require.Eventually(t, func() bool {
		req, err := o.Get(requestID)
		if err != nil {
			return false
		}
		last = req
		return req.Status == want
	}, 5*time.Second, 10*time.Millisecond, "request never reached %s (last: %+v)", want, &last)
	return last
}

func TestHappyPathSingleSigner(t *testing.T) {
	scorer := &fixedScorer{face: 0.95, live: 0.95}
	o, l, publisher := newTestOrchestrator(t, testTenant(), scorer)
	events := publisher.Subscribe()

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com", DisplayName: "Jane"}})
	require.NoError(t, err)
	require.Equal(t, StatusBiometricPending, req.Status)

	require.NoError(t, o.ProvideCapture(req.RequestID, "jane@example.com", []byte("selfie"), []byte("ref")))

	final := waitForStatus(t, o, req.RequestID, StatusNotified)
	require.NotEmpty(t, final.SignatureID)
	require.NotNil(t, final.SignedAt)
	require.True(t, final.Recipients[0].BiometricVerified)

	// The signature landed on the ledger.
	require.True(t, l.VerifySignature(final.SignatureID))
	require.Equal(t, 2, l.Height())

	select {
	case ev := <-events:
		require.Equal(t, notify.SignatureCompleted, ev.Type)
		require.Equal(t, final.SignatureID, ev.SignatureID)
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event published")
	}
}

func TestMultiSignerWaitsForAllCaptures(t *testing.T) {
	scorer := &fixedScorer{face: 0.95, live: 0.95}
	o, _, _ := newTestOrchestrator(t, testTenant(), scorer)

	req, err := o.Submit(testDoc, []provider.Recipient{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
	})
	require.NoError(t, err)

	require.NoError(t, o.ProvideCapture(req.RequestID, "a@example.com", []byte("selfie-a"), nil))
	require.Eventually(t, func() bool {
		cur, err := o.Get(req.RequestID)
		return err == nil && cur.Recipients[0].BiometricVerified
	}, 5*time.Second, 10*time.Millisecond)

	// One signer verified is not enough to advance.
	cur, err := o.Get(req.RequestID)
	require.NoError(t, err)
	require.Equal(t, StatusBiometricPending, cur.Status)

	require.NoError(t, o.ProvideCapture(req.RequestID, "b@example.com", []byte("selfie-b"), nil))
	waitForStatus(t, o, req.RequestID, StatusNotified)
}

func TestBiometricRejectionThenRetry(t *testing.T) {
	scorer := &fixedScorer{face: 0.95, live: 0.1}
	o, _, _ := newTestOrchestrator(t, testTenant(), scorer)

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)

	require.NoError(t, o.ProvideCapture(req.RequestID, "jane@example.com", []byte("spoof"), nil))
	rejected := waitForStatus(t, o, req.RequestID, StatusBiometricRejected)
	require.Equal(t, 1, rejected.BiometricAttempts)

	scorer.setLiveness(0.95)
	require.NoError(t, o.ProvideCapture(req.RequestID, "jane@example.com", []byte("real"), nil))
	waitForStatus(t, o, req.RequestID, StatusNotified)
}

func TestBiometricFailsAfterMaxAttempts(t *testing.T) {
	scorer := &fixedScorer{face: 0.95, live: 0.1}
	tenant := testTenant()
	o, l, publisher := newTestOrchestrator(t, tenant, scorer)
	events := publisher.Subscribe()

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)

	for attempt := 1; attempt < tenant.MaxBiometricAttempts; attempt++ {
		require.NoError(t, o.ProvideCapture(req.RequestID, "jane@example.com", []byte("spoof"), nil))
		rejected := waitForStatus(t, o, req.RequestID, StatusBiometricRejected)
		require.Equal(t, attempt, rejected.BiometricAttempts)
	}
	require.NoError(t, o.ProvideCapture(req.RequestID, "jane@example.com", []byte("spoof"), nil))
	final := waitForStatus(t, o, req.RequestID, StatusFailed)
	require.Contains(t, final.FailureReason, "biometric rejected")
	require.Empty(t, final.SignatureID)

	// Nothing reached the ledger.
	require.Equal(t, 1, l.Height())
	require.Equal(t, 0, l.PendingCount())

	select {
	case ev := <-events:
		require.Equal(t, notify.SignatureFailed, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no failure event published")
	}
}

func TestBiometricDisabledSkipsVerification(t *testing.T) {
	scorer := &fixedScorer{face: 0.1, live: 0.1}
	tenant := testTenant()
	tenant.BiometricRequired = false
	o, l, _ := newTestOrchestrator(t, tenant, scorer)

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)

	final := waitForStatus(t, o, req.RequestID, StatusNotified)
	require.NotEmpty(t, final.SignatureID)
	require.True(t, l.VerifySignature(final.SignatureID))

	// The scorer was never consulted.
	scorer.mu.Lock()
	defer scorer.mu.Unlock()
	require.Zero(t, scorer.calls)
}

func TestBlockchainDisabledSkipsLedger(t *testing.T) {
	scorer := &fixedScorer{face: 0.95, live: 0.95}
	tenant := testTenant()
	tenant.BiometricRequired = false
	tenant.BlockchainRequired = false
	o, l, _ := newTestOrchestrator(t, tenant, scorer)

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)

	final := waitForStatus(t, o, req.RequestID, StatusNotified)
	require.NotEmpty(t, final.SignatureID)
	require.Equal(t, 1, l.Height())
	require.False(t, l.VerifySignature(final.SignatureID))
}

func TestSubmitValidation(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, testTenant(), &fixedScorer{face: 0.95, live: 0.95})

	_, err := o.Submit(provider.Document{Name: "empty"}, []provider.Recipient{{Email: "a@x.com"}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = o.Submit(testDoc, nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = o.Submit(testDoc, []provider.Recipient{{DisplayName: "no email"}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCaptureValidation(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, testTenant(), &fixedScorer{face: 0.95, live: 0.95})
	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)

	require.ErrorIs(t, o.ProvideCapture(req.RequestID, "jane@example.com", nil, nil), ErrValidation)
	require.ErrorIs(t, o.ProvideCapture(req.RequestID, "stranger@example.com", []byte("x"), nil), ErrValidation)
	require.ErrorIs(t, o.ProvideCapture("nope", "jane@example.com", []byte("x"), nil), ErrNotFound)
}

func TestCancelBeforeSigningIsClean(t *testing.T) {
	o, l, publisher := newTestOrchestrator(t, testTenant(), &fixedScorer{face: 0.95, live: 0.95})
	events := publisher.Subscribe()

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)

	require.NoError(t, o.Cancel(req.RequestID))
	final, err := o.Get(req.RequestID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, final.Status)
	require.Equal(t, "cancelled", final.FailureReason)
	require.Equal(t, 1, l.Height())

	select {
	case ev := <-events:
		require.Equal(t, notify.SignatureFailed, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no failure event published")
	}
}

func TestCancelAfterSignedIsRefused(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, testTenant(), &fixedScorer{face: 0.95, live: 0.95})

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)
	require.NoError(t, o.ProvideCapture(req.RequestID, "jane@example.com", []byte("selfie"), nil))
	waitForStatus(t, o, req.RequestID, StatusNotified)

	require.ErrorIs(t, o.Cancel(req.RequestID), ErrNotCancellable)
	require.ErrorIs(t, o.Cancel("nope"), ErrNotFound)
}

func TestCancelUnknownRequest(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, testTenant(), &fixedScorer{})
	require.ErrorIs(t, o.Cancel("missing"), ErrNotFound)
}

func TestSubmitRejectedWhenQueueFull(t *testing.T) {
	tenant := testTenant()
	tenant.BiometricRequired = false
	o := newIdleOrchestrator(t, tenant, 2)

	accepted := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
		require.NoError(t, err)
		accepted = append(accepted, req.RequestID)
	}

	// The queue is full: the submission must fail loudly instead of
	// returning success for a request that would never progress.
	_, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.ErrorIs(t, err, ErrBusy)

	// Once workers drain the queue, every accepted request completes and
	// new submissions are taken again.
	o.Start()
	for _, id := range accepted {
		waitForStatus(t, o, id, StatusNotified)
	}
	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)
	waitForStatus(t, o, req.RequestID, StatusNotified)
}

func TestCaptureRejectedWhenQueueFull(t *testing.T) {
	o := newIdleOrchestrator(t, testTenant(), 1)

	req, err := o.Submit(testDoc, []provider.Recipient{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
	})
	require.NoError(t, err)

	require.NoError(t, o.ProvideCapture(req.RequestID, "a@example.com", []byte("selfie-a"), nil))
	require.ErrorIs(t, o.ProvideCapture(req.RequestID, "b@example.com", []byte("selfie-b"), nil), ErrBusy)

	// The rejected capture must not linger in memory.
	o.mu.Lock()
	_, held := o.captures[req.RequestID+"|b@example.com"]
	o.mu.Unlock()
	require.False(t, held)

	cur, err := o.Get(req.RequestID)
	require.NoError(t, err)
	require.Equal(t, StatusBiometricPending, cur.Status)
}

func TestCaptureClearedAfterVerification(t *testing.T) {
	scorer := &fixedScorer{face: 0.95, live: 0.95}
	o, _, _ := newTestOrchestrator(t, testTenant(), scorer)

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)
	require.NoError(t, o.ProvideCapture(req.RequestID, "jane@example.com", []byte("selfie"), nil))
	waitForStatus(t, o, req.RequestID, StatusNotified)

	// The raw selfie bytes are released once the attempt is scored.
	o.mu.Lock()
	held := len(o.captures)
	o.mu.Unlock()
	require.Zero(t, held)
}

func TestFinishedRequestsEvictedAfterRetention(t *testing.T) {
	tenant := testTenant()
	l := ledger.NewLedger(tenant.ProofOfWorkDifficulty)
	store := txstore.NewStore(l, audit.NewStdoutTrail())
	verifier := biometric.NewVerifier(&fixedScorer{face: 0.95, live: 0.95}, tenant.FaceMatchThreshold, tenant.LivenessThreshold)
	o := New(Config{
		Tenant:         tenant,
		Verifier:       verifier,
		Providers:      provider.NewFactory("", "", time.Second),
		Ledger:         l,
		Store:          store,
		Publisher:      notify.NewPublisher(),
		Workers:        2,
		RequestTimeout: 2 * time.Second,
		Retention:      50 * time.Millisecond,
	})
	o.Start()
	t.Cleanup(o.Stop)

	req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
	require.NoError(t, err)
	require.NoError(t, o.Cancel(req.RequestID))

	require.Eventually(t, func() bool {
		_, err := o.Get(req.RequestID)
		return errors.Is(err, ErrNotFound)
	}, 5*time.Second, 10*time.Millisecond, "finished request was never evicted")
}

func TestConcurrentSigningsBatchIntoBlocks(t *testing.T) {
	tenant := testTenant()
	tenant.BiometricRequired = false
	o, l, _ := newTestOrchestrator(t, tenant, &fixedScorer{})

	const n = 5
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		req, err := o.Submit(testDoc, []provider.Recipient{{Email: "jane@example.com"}})
		require.NoError(t, err)
		ids = append(ids, req.RequestID)
	}
	for _, id := range ids {
		final := waitForStatus(t, o, id, StatusNotified)
		require.True(t, l.VerifySignature(final.SignatureID))
	}
	// Batching keeps the chain shorter than one block per request.
	require.LessOrEqual(t, l.Height(), n+1)
	require.Equal(t, 0, l.PendingCount())
}
