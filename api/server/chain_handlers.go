package server

import (
	"encoding/json"
	"net/http"

	"signet/core/ledger"
)

// handleChain serves the peer sync contract: the full chain plus its
// length as JSON.
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(remoteHost(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}
	chain := s.ledger.Chain()
	writeJSON(w, http.StatusOK, ledger.ChainResponse{
		Chain:  chain,
		Length: len(chain),
	})
}

type registerNodesBody struct {
	Nodes []string `json:"nodes"`
}

// handleRegisterNodes adds peer addresses to the conflict-resolution set.
func (s *Server) handleRegisterNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid method")
		return
	}
	if !requireAPIKey(w, r) {
		return
	}
	var body registerNodesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, "please supply a list of nodes")
		return
	}
	for _, addr := range body.Nodes {
		s.ledger.AddNode(addr)
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "nodes registered",
		"nodes":   s.ledger.Nodes(),
	})
}

// handleResolveConflicts triggers one round of the longest-chain rule
// against all registered peers.
func (s *Server) handleResolveConflicts(w http.ResponseWriter, r *http.Request) {
	if !requireAPIKey(w, r) {
		return
	}
	replaced := s.ledger.ResolveConflicts(r.Context())
	message := "chain is authoritative"
	if replaced {
		message = "chain replaced"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"length":  s.ledger.Height(),
	})
}
