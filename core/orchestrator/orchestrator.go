package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"signet/core/biometric"
	"signet/core/config"
	"signet/core/ledger"
	"signet/core/notify"
	"signet/core/provider"
	"signet/core/queue"
	"signet/core/txstore"
	"signet/types/ids"
)

var (
	// ErrValidation covers malformed or missing submission input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned for an unknown request ID.
	ErrNotFound = errors.New("signature request not found")
	// ErrNotCancellable is returned when cancellation is requested after
	// the request became durable.
	ErrNotCancellable = errors.New("request can no longer be cancelled")
	// ErrBusy is returned when the job queue is at capacity and the work
	// could not be accepted.
	ErrBusy = errors.New("orchestrator at capacity, retry later")
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultRetention = time.Hour
	notifyAttempts   = 5
	notifyBackoff    = 200 * time.Millisecond
	jobVerifyPrefix  = "verify"
	jobAdvance       = "advance"
)

// BlockSaver persists sealed blocks. Nil disables persistence (tests).
type BlockSaver interface {
	SaveBlock(blk ledger.Block) error
}

type capture struct {
	selfie    []byte
	reference []byte
}

// Config wires an Orchestrator.
type Config struct {
	Tenant         config.TenantConfig
	Verifier       *biometric.Verifier
	Providers      *provider.Factory
	Ledger         *ledger.Ledger
	Saver          BlockSaver
	Store          *txstore.Store
	Publisher      *notify.Publisher
	Workers        int
	QueueSize      int
	RequestTimeout time.Duration
	// Retention bounds how long finished requests stay queryable before
	// they are evicted along with their biometric captures.
	Retention time.Duration
}

// Orchestrator drives every SignatureRequest through the signing state
// machine. A fixed worker pool consumes a job queue; each request
// progresses independently of the others. Proof-of-work runs on a single
// dedicated sealer goroutine, never on a worker.
type Orchestrator struct {
	tenant    config.TenantConfig
	verifier  *biometric.Verifier
	providers *provider.Factory
	ledger    *ledger.Ledger
	saver     BlockSaver
	store     *txstore.Store
	publisher *notify.Publisher
	jobs      *queue.Queue
	workers   int
	timeout   time.Duration
	retention time.Duration

	mu          sync.Mutex
	requests    map[string]*SignatureRequest
	captures    map[string]capture
	bySignature map[string]string

	sealCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		tenant:      cfg.Tenant,
		verifier:    cfg.Verifier,
		providers:   cfg.Providers,
		ledger:      cfg.Ledger,
		saver:       cfg.Saver,
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		jobs:        queue.NewQueue(queueSize),
		workers:     workers,
		timeout:     timeout,
		retention:   retention,
		requests:    make(map[string]*SignatureRequest),
		captures:    make(map[string]capture),
		bySignature: make(map[string]string),
		sealCh:      make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker pool, the sealer and the janitor.
func (o *Orchestrator) Start() {
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.workerLoop()
	}
	o.wg.Add(1)
	go o.sealerLoop()
	o.wg.Add(1)
	go o.janitorLoop()
}

// Stop shuts down workers and the sealer and waits for them.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

// Submit registers a new signing request for the given document and signer
// list. With biometrics disabled for the tenant the request skips straight
// to provider signing.
func (o *Orchestrator) Submit(doc provider.Document, recipients []provider.Recipient) (SignatureRequest, error) {
	if len(doc.Content) == 0 {
		return SignatureRequest{}, fmt.Errorf("%w: empty document", ErrValidation)
	}
	if len(recipients) == 0 {
		return SignatureRequest{}, fmt.Errorf("%w: no recipients", ErrValidation)
	}
	for _, r := range recipients {
		if r.Email == "" {
			return SignatureRequest{}, fmt.Errorf("%w: recipient without email", ErrValidation)
		}
	}

	req := &SignatureRequest{
		RequestID:    uuid.NewString(),
		Document:     doc,
		DocumentHash: ids.NewID(doc.Content).String(),
		ProviderName: o.tenant.ProviderName,
		Status:       StatusCreated,
		CreatedAt:    time.Now().UTC(),
	}
	for _, r := range recipients {
		req.Recipients = append(req.Recipients, Signer{Email: r.Email, DisplayName: r.DisplayName})
	}

	o.mu.Lock()
	o.requests[req.RequestID] = req
	if o.tenant.BiometricRequired {
		req.Status = StatusBiometricPending
	} else {
		for i := range req.Recipients {
			req.Recipients[i].BiometricVerified = true
		}
		req.Status = StatusBiometricValidated
	}
	snap := req.snapshot()
	o.mu.Unlock()

	if snap.Status == StatusBiometricValidated {
		if err := o.jobs.Push(jobAdvance + "|" + req.RequestID); err != nil {
			o.mu.Lock()
			delete(o.requests, req.RequestID)
			o.mu.Unlock()
			log.Printf("[ORCH] request %s rejected: %v", req.RequestID, err)
			return SignatureRequest{}, ErrBusy
		}
	}
	log.Printf("[ORCH] request %s created (doc=%s, recipients=%d)", req.RequestID, req.DocumentHash, len(recipients))
	return snap, nil
}

// ProvideCapture supplies a biometric sample for one signer and queues the
// verification attempt.
func (o *Orchestrator) ProvideCapture(requestID, email string, selfie, reference []byte) error {
	if len(selfie) == 0 {
		return fmt.Errorf("%w: empty capture", ErrValidation)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	req, ok := o.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	if req.Status != StatusBiometricPending && req.Status != StatusBiometricRejected {
		return fmt.Errorf("%w: request is %s", ErrValidation, req.Status)
	}
	found := false
	for _, s := range req.Recipients {
		if s.Email == email {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s is not a recipient", ErrValidation, email)
	}
	prev := req.Status
	req.Status = StatusBiometricPending
	o.captures[requestID+"|"+email] = capture{selfie: selfie, reference: reference}
	if err := o.jobs.Push(jobVerifyPrefix + "|" + requestID + "|" + email); err != nil {
		delete(o.captures, requestID+"|"+email)
		req.Status = prev
		return ErrBusy
	}
	return nil
}

// Get returns a snapshot of the request.
func (o *Orchestrator) Get(requestID string) (SignatureRequest, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	req, ok := o.requests[requestID]
	if !ok {
		return SignatureRequest{}, ErrNotFound
	}
	return req.snapshot(), nil
}

// Cancel aborts a request. Before provider signing this is a clean cancel;
// once signing has started the request is driven to FAILED with a
// compensating notification; once SIGNED the request is durable and cannot
// be cancelled.
func (o *Orchestrator) Cancel(requestID string) error {
	o.mu.Lock()
	req, ok := o.requests[requestID]
	if !ok {
		o.mu.Unlock()
		return ErrNotFound
	}
	switch req.Status {
	case StatusCreated, StatusBiometricPending, StatusBiometricRejected:
		req.finish(StatusFailed, "cancelled")
		snap := req.snapshot()
		o.mu.Unlock()
		o.publishFailure(snap, "cancelled")
		return nil
	case StatusBiometricValidated, StatusProviderSigning:
		req.finish(StatusFailed, "cancelled after signing started")
		snap := req.snapshot()
		o.mu.Unlock()
		log.Printf("[ORCH] request %s cancelled mid-signing, emitting compensating notification", requestID)
		o.publishFailure(snap, "cancelled after signing started; provider may have been notified")
		return nil
	default:
		o.mu.Unlock()
		return ErrNotCancellable
	}
}

func (o *Orchestrator) workerLoop() {
	defer o.wg.Done()
	for {
		key, err := o.jobs.Pop(o.ctx)
		if err != nil {
			return
		}
		parts := strings.SplitN(key, "|", 3)
		switch parts[0] {
		case jobVerifyPrefix:
			if len(parts) == 3 {
				o.runBiometric(parts[1], parts[2])
			}
		case jobAdvance:
			if len(parts) >= 2 {
				o.runSigning(parts[1])
			}
		}
	}
}

// runBiometric scores one signer's capture and advances or rejects the
// request.
func (o *Orchestrator) runBiometric(requestID, email string) {
	o.mu.Lock()
	req, ok := o.requests[requestID]
	if !ok || req.Status != StatusBiometricPending {
		delete(o.captures, requestID+"|"+email)
		o.mu.Unlock()
		return
	}
	smp, haveCapture := o.captures[requestID+"|"+email]
	// One capture backs one verification attempt; a retry needs a fresh
	// sample, so the raw image bytes never outlive the attempt.
	delete(o.captures, requestID+"|"+email)
	docHash := req.DocumentHash
	o.mu.Unlock()
	if !haveCapture {
		return
	}

	ctx, cancel := context.WithTimeout(o.ctx, o.timeout)
	defer cancel()
	faceOK, faceMsg := o.verifier.ValidateFace(ctx, smp.selfie, smp.reference)
	liveOK, liveMsg := o.verifier.DetectLiveness(ctx, smp.selfie)
	passed := faceOK && liveOK
	message := faceMsg
	if faceOK {
		message = liveMsg
	}
	o.store.RecordBiometric(email, docHash, passed, message)

	o.mu.Lock()
	req, ok = o.requests[requestID]
	if !ok || req.Status != StatusBiometricPending {
		o.mu.Unlock()
		return
	}
	if !passed {
		req.BiometricAttempts++
		if req.BiometricAttempts >= o.tenant.MaxBiometricAttempts {
			req.finish(StatusFailed, fmt.Sprintf("biometric rejected after %d attempts: %s", req.BiometricAttempts, message))
			snap := req.snapshot()
			o.mu.Unlock()
			log.Printf("[ORCH] request %s failed: %s", requestID, snap.FailureReason)
			o.publishFailure(snap, snap.FailureReason)
			return
		}
		req.Status = StatusBiometricRejected
		attempts := req.BiometricAttempts
		o.mu.Unlock()
		log.Printf("[ORCH] request %s biometric rejected (attempt %d): %s", requestID, attempts, message)
		return
	}

	for i := range req.Recipients {
		if req.Recipients[i].Email == email {
			req.Recipients[i].BiometricVerified = true
		}
	}
	advance := req.allVerified()
	if advance {
		req.Status = StatusBiometricValidated
	}
	o.mu.Unlock()
	if advance {
		// Progression of an already-accepted request must not be dropped
		// when the queue is full; the worker waits for room instead.
		if err := o.jobs.PushWait(o.ctx, jobAdvance+"|"+requestID); err != nil {
			log.Printf("[ORCH] advance for %s not queued: %v", requestID, err)
		}
	}
}

// runSigning takes a biometrically validated request through the provider
// gateway and hands the resulting transaction to the ledger.
func (o *Orchestrator) runSigning(requestID string) {
	o.mu.Lock()
	req, ok := o.requests[requestID]
	if !ok || req.Status != StatusBiometricValidated {
		o.mu.Unlock()
		return
	}
	req.Status = StatusProviderSigning
	doc := req.Document
	recipients := make([]provider.Recipient, 0, len(req.Recipients))
	for _, s := range req.Recipients {
		recipients = append(recipients, provider.Recipient{Email: s.Email, DisplayName: s.DisplayName})
	}
	providerName := req.ProviderName
	docHash := req.DocumentHash
	o.mu.Unlock()

	prov := o.providers.Resolve(providerName)
	ctx, cancel := context.WithTimeout(o.ctx, o.timeout)
	handle, err := prov.CreateSignatureRequest(ctx, doc, recipients)
	cancel()
	actor := strings.Join(joinEmails(recipients), ",")
	if err != nil {
		o.store.RecordSignFailure(actor, docHash, err.Error())
		o.failRequest(requestID, fmt.Sprintf("provider %s: %v", prov.Name(), err))
		return
	}

	o.mu.Lock()
	req, ok = o.requests[requestID]
	if !ok || req.Status != StatusProviderSigning {
		// Cancelled while the provider call was in flight; the request was
		// already driven to FAILED with a compensating notification.
		o.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	req.SignatureID = uuid.NewString()
	req.ProviderRequestID = handle.RequestID
	req.Status = StatusSigned
	req.SignedAt = &now
	sigID := req.SignatureID
	snap := req.snapshot()
	o.bySignature[sigID] = requestID
	o.mu.Unlock()

	o.store.RecordSign(actor, docHash, sigID)
	if marker, ok := prov.(interface{ MarkSigned(string, string) error }); ok {
		for _, r := range recipients {
			_ = marker.MarkSigned(handle.RequestID, r.Email)
		}
	}
	log.Printf("[ORCH] request %s signed via %s (signature=%s)", requestID, prov.Name(), sigID)

	// With the ledger disabled for the tenant the request skips
	// LEDGER_RECORDED and goes straight to notification.
	if !o.tenant.BlockchainRequired {
		o.publishCompletion(snap)
		return
	}

	tx := ledger.Transaction{
		Type:         ledger.TxTypeSignature,
		SignatureID:  sigID,
		Signer:       actor,
		DocumentHash: docHash,
		Provider:     prov.Name(),
		Timestamp:    now,
	}
	if _, err := o.ledger.AddPendingTransaction(tx); err != nil {
		log.Printf("[ORCH] ledger rejected transaction for %s: %v", requestID, err)
		o.failRequest(requestID, "ledger unavailable")
		return
	}
	select {
	case o.sealCh <- struct{}{}:
	default:
	}
}

func joinEmails(recipients []provider.Recipient) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, r.Email)
	}
	return out
}

func (o *Orchestrator) setStatus(requestID string, status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if req, ok := o.requests[requestID]; ok {
		req.Status = status
		if status == StatusNotified {
			req.finishedAt = time.Now().UTC()
		}
	}
}

func (o *Orchestrator) failRequest(requestID, reason string) {
	o.mu.Lock()
	req, ok := o.requests[requestID]
	if !ok {
		o.mu.Unlock()
		return
	}
	req.finish(StatusFailed, reason)
	snap := req.snapshot()
	o.mu.Unlock()
	log.Printf("[ORCH] request %s failed: %s", requestID, reason)
	o.publishFailure(snap, reason)
}

// janitorLoop evicts finished requests once the retention window passes,
// keeping the in-memory request table bounded over the node's lifetime.
func (o *Orchestrator) janitorLoop() {
	defer o.wg.Done()
	interval := o.retention / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.evictFinished()
		}
	}
}

func (o *Orchestrator) evictFinished() {
	cutoff := time.Now().UTC().Add(-o.retention)
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, req := range o.requests {
		if req.finishedAt.IsZero() || req.finishedAt.After(cutoff) {
			continue
		}
		for _, s := range req.Recipients {
			delete(o.captures, id+"|"+s.Email)
		}
		if req.SignatureID != "" {
			delete(o.bySignature, req.SignatureID)
		}
		delete(o.requests, id)
	}
}

// publishCompletion emits SignatureCompleted and flips the request to
// NOTIFIED once delivery succeeds. Delivery failures are retried
// independently; they never roll back the ledger entry.
func (o *Orchestrator) publishCompletion(req SignatureRequest) {
	ev := notify.Event{
		Type:        notify.SignatureCompleted,
		RequestID:   req.RequestID,
		SignatureID: req.SignatureID,
		Recipients:  req.recipientEmails(),
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for attempt := 1; attempt <= notifyAttempts; attempt++ {
			if err := o.publisher.Publish(ev); err == nil {
				o.setStatus(req.RequestID, StatusNotified)
				return
			}
			select {
			case <-time.After(time.Duration(attempt) * notifyBackoff):
			case <-o.ctx.Done():
				return
			}
		}
		log.Printf("[ORCH] notification for %s undeliverable, request stays %s", req.RequestID, StatusLedgerRecorded)
	}()
}

func (o *Orchestrator) publishFailure(req SignatureRequest, reason string) {
	ev := notify.Event{
		Type:        notify.SignatureFailed,
		RequestID:   req.RequestID,
		SignatureID: req.SignatureID,
		Recipients:  req.recipientEmails(),
		Reason:      reason,
	}
	if err := o.publisher.Publish(ev); err != nil {
		log.Printf("[ORCH] failure notification for %s not delivered: %v", req.RequestID, err)
	}
}
