package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"signet/core/orchestrator"
	"signet/core/provider"
	"signet/core/txstore"
)

// submitRequestBody is the caller-facing submission payload. Document
// content and captures travel base64-encoded.
type submitRequestBody struct {
	DocumentName string `json:"document_name"`
	ContentType  string `json:"content_type"`
	Content      string `json:"content"`
	Recipients   []struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	} `json:"recipients"`
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid method")
		return
	}
	if !requireJWT(w, r) {
		return
	}
	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, "content must be base64")
		return
	}
	doc := provider.Document{
		Name:        body.DocumentName,
		ContentType: body.ContentType,
		Content:     content,
	}
	recipients := make([]provider.Recipient, 0, len(body.Recipients))
	for _, rec := range body.Recipients {
		recipients = append(recipients, provider.Recipient{Email: rec.Email, DisplayName: rec.DisplayName})
	}
	req, err := s.orch.Submit(doc, recipients)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, orchestrator.ErrBusy):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "submission failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"request_id": req.RequestID,
		"status":     req.Status,
	})
}

// handleRequestByID serves GET /api/requests/{id}, POST
// /api/requests/{id}/capture and POST /api/requests/{id}/cancel.
func (s *Server) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	if !requireJWT(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	parts := strings.Split(rest, "/")
	requestID := parts[0]
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "missing request id")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		req, err := s.orch.Get(requestID)
		if err != nil {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		writeJSON(w, http.StatusOK, req)
	case len(parts) == 2 && parts[1] == "capture" && r.Method == http.MethodPost:
		s.handleCapture(w, r, requestID)
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		s.handleCancel(w, requestID)
	default:
		writeError(w, http.StatusNotFound, "unknown route")
	}
}

type captureBody struct {
	Email     string `json:"email"`
	Selfie    string `json:"selfie"`
	Reference string `json:"reference,omitempty"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request, requestID string) {
	var body captureBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	selfie, err := base64.StdEncoding.DecodeString(body.Selfie)
	if err != nil {
		writeError(w, http.StatusBadRequest, "selfie must be base64")
		return
	}
	var reference []byte
	if body.Reference != "" {
		reference, err = base64.StdEncoding.DecodeString(body.Reference)
		if err != nil {
			writeError(w, http.StatusBadRequest, "reference must be base64")
			return
		}
	}
	if err := s.orch.ProvideCapture(requestID, body.Email, selfie, reference); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNotFound):
			writeError(w, http.StatusNotFound, "request not found")
		case errors.Is(err, orchestrator.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, orchestrator.ErrBusy):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "capture failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "capture accepted"})
}

func (s *Server) handleCancel(w http.ResponseWriter, requestID string) {
	err := s.orch.Cancel(requestID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case errors.Is(err, orchestrator.ErrNotFound):
		writeError(w, http.StatusNotFound, "request not found")
	case errors.Is(err, orchestrator.ErrNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "cancel failed")
	}
}

func (s *Server) handleVerifySignature(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid method")
		return
	}
	signatureID := strings.TrimPrefix(r.URL.Path, "/api/verify/")
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		actor = r.RemoteAddr
	}
	found, err := s.txs.VerifySignature(actor, signatureID)
	if err != nil {
		if errors.Is(err, txstore.ErrValidation) {
			writeError(w, http.StatusBadRequest, "missing signature id")
			return
		}
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signature_id": signatureID,
		"verified":     found,
	})
}

func (s *Server) handleSignatureHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid method")
		return
	}
	signatureID := strings.TrimPrefix(r.URL.Path, "/api/history/")
	history, err := s.txs.SignatureHistory(signatureID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing signature id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signature_id": signatureID,
		"entries":      history,
	})
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	if !requireJWT(w, r) {
		return
	}
	entries, err := s.txs.AuditTrail()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit trail unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no storage attached")
		return
	}
	summaries, err := s.store.ListRecentBlocks(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list blocks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": summaries})
}
