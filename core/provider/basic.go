package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type basicRecord struct {
	handle      RequestHandle
	recipients  []string
	signedBy    []string
	completedAt *time.Time
}

// BasicProvider fulfills the contract with no external call: it records the
// document reference and recipients locally and hands back a usable handle.
// Signing integrity rests on the ledger and biometric stack, not on this
// gateway's richness.
type BasicProvider struct {
	mu       sync.Mutex
	requests map[string]*basicRecord
}

func NewBasicProvider() *BasicProvider {
	return &BasicProvider{requests: make(map[string]*basicRecord)}
}

func (p *BasicProvider) Name() string { return "basic" }

func (p *BasicProvider) CreateSignatureRequest(ctx context.Context, doc Document, recipients []Recipient) (RequestHandle, error) {
	if len(doc.Content) == 0 {
		return RequestHandle{}, fmt.Errorf("%w: empty document", ErrProvider)
	}
	emails := make([]string, 0, len(recipients))
	for _, r := range recipients {
		emails = append(emails, r.Email)
	}
	handle := RequestHandle{
		RequestID:         uuid.NewString(),
		Provider:          p.Name(),
		DocumentReference: doc.Hash(),
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	p.mu.Lock()
	p.requests[handle.RequestID] = &basicRecord{handle: handle, recipients: emails}
	p.mu.Unlock()
	return handle, nil
}

func (p *BasicProvider) GetSignatureStatus(ctx context.Context, requestID string) (StatusInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.requests[requestID]
	if !ok {
		return StatusInfo{}, fmt.Errorf("%w: unknown request %s", ErrProvider, requestID)
	}
	return StatusInfo{
		Status:      rec.handle.Status,
		CompletedAt: rec.completedAt,
		SignedBy:    append([]string(nil), rec.signedBy...),
	}, nil
}

// MarkSigned records a completed signature for one recipient. When every
// recipient has signed, the request flips to completed.
func (p *BasicProvider) MarkSigned(requestID, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: unknown request %s", ErrProvider, requestID)
	}
	for _, signed := range rec.signedBy {
		if signed == email {
			return nil
		}
	}
	rec.signedBy = append(rec.signedBy, email)
	if len(rec.signedBy) == len(rec.recipients) {
		now := time.Now().UTC()
		rec.handle.Status = StatusCompleted
		rec.completedAt = &now
	}
	return nil
}

var _ SignatureProvider = (*BasicProvider)(nil)
