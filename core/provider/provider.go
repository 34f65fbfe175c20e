package provider

import (
	"context"
	"errors"
	"time"

	"signet/types/ids"
)

// ErrProvider marks external signature-service failures: timeouts, auth
// failures, malformed responses.
var ErrProvider = errors.New("signature provider error")

// Status of a signature request at the provider.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Recipient is one signer. Order in the recipient slice is signing order
// where the provider supports it.
type Recipient struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Document is the payload to be signed.
type Document struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}

// Hash returns the document content hash, the only form of the document
// that ever reaches logs or the ledger.
func (d Document) Hash() string {
	return ids.NewID(d.Content).String()
}

// RequestHandle is the opaque handle returned on request creation.
type RequestHandle struct {
	RequestID         string    `json:"request_id"`
	Provider          string    `json:"provider"`
	DocumentReference string    `json:"document_reference"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// StatusInfo is the answer to a status poll.
type StatusInfo struct {
	Status      Status     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SignedBy    []string   `json:"signed_by"`
}

// SignatureProvider is the uniform contract over heterogeneous signature
// back-ends.
type SignatureProvider interface {
	Name() string
	CreateSignatureRequest(ctx context.Context, doc Document, recipients []Recipient) (RequestHandle, error)
	GetSignatureStatus(ctx context.Context, requestID string) (StatusInfo, error)
}
