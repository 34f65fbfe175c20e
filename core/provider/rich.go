package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// richEnvelope is the provider-specific submission format: the document
// plus one signature placement per recipient, in signing order.
type richEnvelope struct {
	DocumentName string          `json:"document_name"`
	ContentType  string          `json:"content_type"`
	Content      string          `json:"content"`
	Placements   []richPlacement `json:"placements"`
}

type richPlacement struct {
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	SigningOrder int    `json:"signing_order"`
	Anchor       string `json:"anchor"`
}

// RichProvider submits envelopes to an external signature service.
type RichProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRichProvider fails when the endpoint or key is missing. That failure
// is fatal for this provider; the factory handles fallback.
func NewRichProvider(baseURL, apiKey string, timeout time.Duration) (*RichProvider, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: rich provider requires endpoint and API key", ErrProvider)
	}
	return &RichProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *RichProvider) Name() string { return "rich" }

func (p *RichProvider) CreateSignatureRequest(ctx context.Context, doc Document, recipients []Recipient) (RequestHandle, error) {
	if len(doc.Content) == 0 {
		return RequestHandle{}, fmt.Errorf("%w: empty document", ErrProvider)
	}
	envelope := richEnvelope{
		DocumentName: doc.Name,
		ContentType:  doc.ContentType,
		Content:      base64.StdEncoding.EncodeToString(doc.Content),
	}
	for i, r := range recipients {
		envelope.Placements = append(envelope.Placements, richPlacement{
			Email:        r.Email,
			DisplayName:  r.DisplayName,
			SigningOrder: i + 1,
			Anchor:       fmt.Sprintf("signature_%d", i+1),
		})
	}

	var body struct {
		EnvelopeID string `json:"envelope_id"`
		Status     string `json:"status"`
	}
	if err := p.do(ctx, http.MethodPost, "/envelopes", envelope, &body); err != nil {
		return RequestHandle{}, err
	}
	return RequestHandle{
		RequestID:         body.EnvelopeID,
		Provider:          p.Name(),
		DocumentReference: doc.Hash(),
		Status:            Status(body.Status),
		CreatedAt:         time.Now().UTC(),
	}, nil
}

func (p *RichProvider) GetSignatureStatus(ctx context.Context, requestID string) (StatusInfo, error) {
	var body struct {
		Status      Status     `json:"status"`
		CompletedAt *time.Time `json:"completed_at"`
		SignedBy    []string   `json:"signed_by"`
	}
	if err := p.do(ctx, http.MethodGet, "/envelopes/"+requestID, nil, &body); err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{Status: body.Status, CompletedAt: body.CompletedAt, SignedBy: body.SignedBy}, nil
}

func (p *RichProvider) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: provider returned %s: %s", ErrProvider, resp.Status, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ SignatureProvider = (*RichProvider)(nil)
