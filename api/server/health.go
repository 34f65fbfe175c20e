// health.go - HTTP handlers for /status, /nodehealth and the k8s probes
package server

import (
	"net/http"
)

// StatusResponse represents the JSON structure for the /status endpoint
type StatusResponse struct {
	Status      string      `json:"status"`
	Uptime      int64       `json:"uptime_seconds"`
	BlockHeight int         `json:"block_height"`
	PeerCount   int         `json:"peer_count"`
	Version     string      `json:"version"`
	APIVersion  string      `json:"api_version"`
	LastBlock   string      `json:"last_block_time"`
	Metrics     NodeMetrics `json:"metrics"`
}

// LivenessResponse for /health/liveness
type LivenessResponse struct {
	Alive bool `json:"alive"`
}

// ReadinessResponse for /health/readiness
type ReadinessResponse struct {
	Ready bool `json:"ready"`
}

// NodeHealthResponse is the response type for the /nodehealth endpoint
type NodeHealthResponse struct {
	Status  string      `json:"status"`
	Metrics NodeMetrics `json:"metrics"`
}

// NodeVersion returns the current node software version.
func NodeVersion() string {
	return "v0.1.0"
}

// APIVersion returns the current API version.
func APIVersion() string {
	return "v1"
}

// NodeLiveness returns true while the ledger has a chain and has not been
// halted by an integrity failure.
func (s *Server) NodeLiveness() bool {
	return s.ledger.Height() > 0 && !s.ledger.Halted()
}

// NodeReadiness returns true when the node can accept signing work.
func (s *Server) NodeReadiness() bool {
	return s.NodeLiveness() && s.store != nil
}

func (s *Server) healthStatus(metrics NodeMetrics) string {
	switch {
	case metrics.LedgerHalted:
		return "halted"
	case metrics.BlockHeight == 0:
		return "initializing"
	case metrics.PendingTxCount > 0 && metrics.SealLagSeconds > 30:
		return "sealing_behind"
	case metrics.PeerCount == 0:
		return "isolated"
	default:
		return "healthy"
	}
}

// HandleLiveness responds to /health/liveness
func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Alive: s.NodeLiveness()})
}

// HandleReadiness responds to /health/readiness
func (s *Server) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReadinessResponse{Ready: s.NodeReadiness()})
}

// HandleNodeHealth responds to /nodehealth (summary health)
func (s *Server) HandleNodeHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.GetNodeMetrics()
	writeJSON(w, http.StatusOK, NodeHealthResponse{
		Status:  s.healthStatus(metrics),
		Metrics: metrics,
	})
}

// HandleStatus responds to /status with node status
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	metrics := s.GetNodeMetrics()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      s.healthStatus(metrics),
		Uptime:      metrics.UptimeSeconds,
		BlockHeight: metrics.BlockHeight,
		PeerCount:   metrics.PeerCount,
		Version:     NodeVersion(),
		APIVersion:  APIVersion(),
		LastBlock:   metrics.LastBlockTime,
		Metrics:     metrics,
	})
}
