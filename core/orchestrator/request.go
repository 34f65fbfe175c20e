package orchestrator

import (
	"time"

	"signet/core/provider"
)

// Status is the signing-workflow state of one request.
type Status string

const (
	StatusCreated            Status = "CREATED"
	StatusBiometricPending   Status = "BIOMETRIC_PENDING"
	StatusBiometricValidated Status = "BIOMETRIC_VALIDATED"
	StatusBiometricRejected  Status = "BIOMETRIC_REJECTED"
	StatusProviderSigning    Status = "PROVIDER_SIGNING"
	StatusSigned             Status = "SIGNED"
	StatusLedgerRecorded     Status = "LEDGER_RECORDED"
	StatusNotified           Status = "NOTIFIED"
	StatusFailed             Status = "FAILED"
)

// Signer tracks one recipient's progress inside a request.
type Signer struct {
	Email             string `json:"email"`
	DisplayName       string `json:"display_name"`
	BiometricVerified bool   `json:"biometric_verified"`
}

// SignatureRequest is the orchestrator-owned record of one signing
// workflow. Once SIGNED and ledger-recorded it is read-only history.
type SignatureRequest struct {
	RequestID         string            `json:"request_id"`
	Document          provider.Document `json:"document"`
	DocumentHash      string            `json:"document_hash"`
	Recipients        []Signer          `json:"recipients"`
	ProviderName      string            `json:"provider_name"`
	ProviderRequestID string            `json:"provider_request_id,omitempty"`
	SignatureID       string            `json:"signature_id,omitempty"`
	Status            Status            `json:"status"`
	BiometricAttempts int               `json:"biometric_attempts"`
	FailureReason     string            `json:"failure_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	SignedAt          *time.Time        `json:"signed_at,omitempty"`

	// finishedAt is set when the request reaches NOTIFIED or FAILED and
	// drives eviction after the retention window.
	finishedAt time.Time
}

// finish moves the request to a terminal state.
func (r *SignatureRequest) finish(status Status, reason string) {
	r.Status = status
	r.FailureReason = reason
	r.finishedAt = time.Now().UTC()
}

// snapshot returns a deep-enough copy safe to hand to callers.
func (r *SignatureRequest) snapshot() SignatureRequest {
	out := *r
	out.Recipients = append([]Signer(nil), r.Recipients...)
	return out
}

func (r *SignatureRequest) allVerified() bool {
	for _, s := range r.Recipients {
		if !s.BiometricVerified {
			return false
		}
	}
	return true
}

func (r *SignatureRequest) recipientEmails() []string {
	out := make([]string, 0, len(r.Recipients))
	for _, s := range r.Recipients {
		out = append(out, s.Email)
	}
	return out
}
