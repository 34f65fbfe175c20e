// Package client is a thin HTTP client for the signet node API, used
// by the signetctl command.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a single signet node.
type Client struct {
	BaseURL string
	Token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, string(raw))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// NodeStatus mirrors the node's /status response.
type NodeStatus struct {
	Status      string `json:"status"`
	Uptime      int64  `json:"uptime_seconds"`
	BlockHeight int    `json:"block_height"`
	PeerCount   int    `json:"peer_count"`
	Version     string `json:"version"`
	APIVersion  string `json:"api_version"`
	LastBlock   string `json:"last_block_time"`
}

func (s NodeStatus) ToJSON() string {
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

func (c *Client) GetStatus() (NodeStatus, error) {
	var s NodeStatus
	err := c.do(http.MethodGet, "/status", nil, &s)
	return s, err
}

// VerifyResult is the node's answer for a signature lookup.
type VerifyResult struct {
	SignatureID string `json:"signature_id"`
	Verified    bool   `json:"verified"`
}

func (c *Client) VerifySignature(signatureID string) (VerifyResult, error) {
	var v VerifyResult
	err := c.do(http.MethodGet, "/api/verify/"+signatureID, nil, &v)
	return v, err
}

// HistoryEntry is one ledger occurrence of a signature.
type HistoryEntry struct {
	BlockIndex  uint64    `json:"block_index"`
	Timestamp   time.Time `json:"timestamp"`
	Transaction struct {
		Type         string    `json:"type"`
		SignatureID  string    `json:"signature_id"`
		Signer       string    `json:"signer"`
		DocumentHash string    `json:"document_hash"`
		Provider     string    `json:"provider,omitempty"`
		Timestamp    time.Time `json:"timestamp"`
	} `json:"transaction"`
}

type historyResponse struct {
	SignatureID string         `json:"signature_id"`
	Entries     []HistoryEntry `json:"entries"`
}

func (c *Client) SignatureHistory(signatureID string) ([]HistoryEntry, error) {
	var res historyResponse
	if err := c.do(http.MethodGet, "/api/history/"+signatureID, nil, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// AuditEntry mirrors one audit trail record.
type AuditEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	DocumentHash string    `json:"document_hash"`
	Snippet      string    `json:"signature_snippet,omitempty"`
	Error        string    `json:"error,omitempty"`
}

type auditResponse struct {
	Entries []AuditEntry `json:"entries"`
}

func (c *Client) AuditTrail() ([]AuditEntry, error) {
	var res auditResponse
	if err := c.do(http.MethodGet, "/api/audit", nil, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// SubmitRecipient identifies one signer on a new request.
type SubmitRecipient struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type submitPayload struct {
	DocumentName string            `json:"document_name"`
	ContentType  string            `json:"content_type"`
	Content      string            `json:"content"`
	Recipients   []SubmitRecipient `json:"recipients"`
}

// SubmitResult is the node's acknowledgement for a new request.
type SubmitResult struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func (c *Client) SubmitRequest(name, contentType, contentB64 string, recipients []SubmitRecipient) (SubmitResult, error) {
	var res SubmitResult
	err := c.do(http.MethodPost, "/api/requests", submitPayload{
		DocumentName: name,
		ContentType:  contentType,
		Content:      contentB64,
		Recipients:   recipients,
	}, &res)
	return res, err
}

// RequestStatus is a signing request as reported by the node.
type RequestStatus struct {
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	ProviderName  string `json:"provider_name"`
	SignatureID   string `json:"signature_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (c *Client) GetRequest(requestID string) (RequestStatus, error) {
	var res RequestStatus
	err := c.do(http.MethodGet, "/api/requests/"+requestID, nil, &res)
	return res, err
}

func (c *Client) CancelRequest(requestID string) error {
	return c.do(http.MethodPost, "/api/requests/"+requestID+"/cancel", nil, nil)
}

// BlockSummary is one sealed block as listed by the node.
type BlockSummary struct {
	Index     string `json:"index"`
	Hash      string `json:"hash"`
	PrevHash  string `json:"prevHash"`
	Timestamp string `json:"timestamp"`
}

type blocksResponse struct {
	Blocks []BlockSummary `json:"blocks"`
}

func (c *Client) ListBlocks() ([]BlockSummary, error) {
	var res blocksResponse
	if err := c.do(http.MethodGet, "/list_blocks", nil, &res); err != nil {
		return nil, err
	}
	return res.Blocks, nil
}
