package txstore

import (
	"errors"

	"signet/core/audit"
	"signet/core/ledger"
)

// ErrValidation covers malformed or missing input to a store query.
var ErrValidation = errors.New("validation error")

// Store is a thin query layer over the ledger's scan primitives. Every
// sign/verify action that passes through it leaves an audit entry, whether
// or not the action succeeded.
type Store struct {
	ledger *ledger.Ledger
	trail  audit.Trail
}

func NewStore(l *ledger.Ledger, trail audit.Trail) *Store {
	return &Store{ledger: l, trail: trail}
}

// RecordSign audits a completed signing action.
func (s *Store) RecordSign(actor, documentHash, signatureID string) {
	_ = s.trail.Append(audit.Entry{
		Actor:            actor,
		Action:           audit.ActionSign,
		DocumentHash:     documentHash,
		SignatureSnippet: audit.Snippet(signatureID),
	})
}

// RecordSignFailure audits a signing action that did not produce a
// signature. Failed actions leave the same trail as successful ones.
func (s *Store) RecordSignFailure(actor, documentHash, reason string) {
	_ = s.trail.Append(audit.Entry{
		Actor:        actor,
		Action:       audit.ActionSign,
		DocumentHash: documentHash,
		Error:        reason,
	})
}

// RecordBiometric audits one biometric verification attempt. Only the
// document content hash is stored, never image bytes.
func (s *Store) RecordBiometric(actor, documentHash string, ok bool, message string) {
	entry := audit.Entry{
		Actor:        actor,
		Action:       audit.ActionBiometric,
		DocumentHash: documentHash,
	}
	if !ok {
		entry.Error = message
	}
	_ = s.trail.Append(entry)
}

// VerifySignature checks the chain for signatureID and audits the lookup.
// An empty signatureID is a validation error, surfaced immediately.
func (s *Store) VerifySignature(actor, signatureID string) (bool, error) {
	if signatureID == "" {
		_ = s.trail.Append(audit.Entry{
			Actor:  actor,
			Action: audit.ActionVerifyFailed,
			Error:  "missing signature_id",
		})
		return false, ErrValidation
	}
	found := s.ledger.VerifySignature(signatureID)
	entry := audit.Entry{
		Actor:            actor,
		Action:           audit.ActionVerify,
		SignatureSnippet: audit.Snippet(signatureID),
	}
	if !found {
		entry.Action = audit.ActionVerifyFailed
		entry.Error = "signature not found"
	} else if hist := s.ledger.SignatureHistory(signatureID); len(hist) > 0 {
		entry.DocumentHash = hist[0].Transaction.DocumentHash
	}
	_ = s.trail.Append(entry)
	return found, nil
}

// SignatureHistory returns every ledger entry recorded for signatureID.
func (s *Store) SignatureHistory(signatureID string) ([]ledger.HistoryEntry, error) {
	if signatureID == "" {
		return nil, ErrValidation
	}
	return s.ledger.SignatureHistory(signatureID), nil
}

// AuditTrail returns the full audit trail in append order.
func (s *Store) AuditTrail() ([]audit.Entry, error) {
	return s.trail.Entries()
}
