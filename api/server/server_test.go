package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signet/core/audit"
	"signet/core/biometric"
	"signet/core/config"
	"signet/core/ledger"
	"signet/core/notify"
	"signet/core/orchestrator"
	"signet/core/provider"
	"signet/core/txstore"
)

func newTestServer(t *testing.T) (*httptest.Server, *orchestrator.Orchestrator, *ledger.Ledger) {
	t.Helper()
	tenant := config.DefaultTenantConfig()
	tenant.ProofOfWorkDifficulty = 1
	l := ledger.NewLedger(1)
	trail := audit.NewStdoutTrail()
	txs := txstore.NewStore(l, trail)
	verifier := biometric.NewVerifier(biometric.NewLocalProvider(), tenant.FaceMatchThreshold, tenant.LivenessThreshold)
	orch := orchestrator.New(orchestrator.Config{
		Tenant:         tenant,
		Verifier:       verifier,
		Providers:      provider.NewFactory("", "", time.Second),
		Ledger:         l,
		Store:          txs,
		Publisher:      notify.NewPublisher(),
		Workers:        2,
		RequestTimeout: 2 * time.Second,
	})
	orch.Start()
	t.Cleanup(orch.Stop)

	srv := httptest.NewServer(NewServer(nil, l, orch, txs, ":0").Mux())
	t.Cleanup(srv.Close)
	return srv, orch, l
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestSubmitRequestEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/requests", map[string]interface{}{
		"document_name": "offer.pdf",
		"content_type":  "application/pdf",
		"content":       base64.StdEncoding.EncodeToString([]byte("pdf bytes")),
		"recipients":    []map[string]string{{"email": "jane@example.com", "display_name": "Jane"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.RequestID)
	require.Equal(t, "BIOMETRIC_PENDING", body.Status)

	// The request is retrievable.
	getResp, err := http.Get(srv.URL + "/api/requests/" + body.RequestID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var req orchestrator.SignatureRequest
	decodeBody(t, getResp, &req)
	require.Equal(t, body.RequestID, req.RequestID)
}

func TestSubmitRequestRejectsBadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/requests", map[string]interface{}{
		"content":    "not-base64!!!",
		"recipients": []map[string]string{{"email": "jane@example.com"}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/requests", map[string]interface{}{
		"content": base64.StdEncoding.EncodeToString([]byte("doc")),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(srv.URL + "/api/requests")
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
	getResp.Body.Close()
}

func TestRequestNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/requests/nope")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelEndpoint(t *testing.T) {
	srv, orch, _ := newTestServer(t)
	req, err := orch.Submit(provider.Document{Name: "d", Content: []byte("doc")}, []provider.Recipient{{Email: "a@x.com"}})
	require.NoError(t, err)

	resp := postJSON(t, srv.URL+"/api/requests/"+req.RequestID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// A second cancel hits a FAILED request, which is terminal.
	resp = postJSON(t, srv.URL+"/api/requests/"+req.RequestID+"/cancel", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestVerifyAndHistoryEndpoints(t *testing.T) {
	srv, _, l := newTestServer(t)

	_, err := l.AddPendingTransaction(ledger.Transaction{
		Type:         ledger.TxTypeSignature,
		SignatureID:  "sig-on-chain",
		Signer:       "jane@example.com",
		DocumentHash: "hash-abc",
	})
	require.NoError(t, err)
	proof, err := ledger.ProofOfWork(context.Background(), l.LastBlock().Proof, l.Difficulty())
	require.NoError(t, err)
	_, err = l.SealBlock(proof, "")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/verify/sig-on-chain?actor=auditor")
	require.NoError(t, err)
	var verify struct {
		SignatureID string `json:"signature_id"`
		Verified    bool   `json:"verified"`
	}
	decodeBody(t, resp, &verify)
	require.True(t, verify.Verified)

	resp, err = http.Get(srv.URL + "/api/verify/sig-unknown")
	require.NoError(t, err)
	decodeBody(t, resp, &verify)
	require.False(t, verify.Verified)

	resp, err = http.Get(srv.URL + "/api/history/sig-on-chain")
	require.NoError(t, err)
	var history struct {
		Entries []ledger.HistoryEntry `json:"entries"`
	}
	decodeBody(t, resp, &history)
	require.Len(t, history.Entries, 1)
	require.Equal(t, "jane@example.com", history.Entries[0].Transaction.Signer)
}

func TestAuditEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/verify/some-sig")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/audit")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Entries []audit.Entry `json:"entries"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Entries)
}

func TestChainEndpointServesPeerContract(t *testing.T) {
	srv, _, l := newTestServer(t)

	resp, err := http.Get(srv.URL + "/chain")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body ledger.ChainResponse
	decodeBody(t, resp, &body)
	require.Equal(t, 1, body.Length)
	require.Len(t, body.Chain, 1)
	require.Equal(t, l.LastBlock().Index, body.Chain[0].Index)
}

func TestRegisterNodesEndpoint(t *testing.T) {
	srv, _, l := newTestServer(t)

	resp := postJSON(t, srv.URL+"/nodes/register", map[string]interface{}{
		"nodes": []string{"node2:8080", "node3:8080"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	require.ElementsMatch(t, []string{"node2:8080", "node3:8080"}, l.Nodes())

	resp = postJSON(t, srv.URL+"/nodes/register", map[string]interface{}{"nodes": []string{}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health/liveness")
	require.NoError(t, err)
	var live LivenessResponse
	decodeBody(t, resp, &live)
	require.True(t, live.Alive)

	// No storage attached in this harness, so the node is not ready.
	resp, err = http.Get(srv.URL + "/health/readiness")
	require.NoError(t, err)
	var ready ReadinessResponse
	decodeBody(t, resp, &ready)
	require.False(t, ready.Ready)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	var status StatusResponse
	decodeBody(t, resp, &status)
	require.Equal(t, NodeVersion(), status.Version)
	require.Equal(t, 1, status.BlockHeight)
}

func TestListBlocksWithoutStorage(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/list_blocks")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}
