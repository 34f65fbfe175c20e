package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"signet/core/ledger"
	"signet/core/orchestrator"
	"signet/core/storage"
	"signet/core/txstore"
)

func init() {
	godotenv.Load("Signet.env")
}

// --- Environment Variable Config ---
// Sensitive values are loaded from environment variables.
// See Signet.env for variable names and dummy values.

var (
	apiKey    = os.Getenv("API_KEY")    // API key for peer/admin endpoints
	jwtSecret = os.Getenv("JWT_SECRET") // JWT secret for authentication
)

// requireAPIKey checks for the X-API-Key header on peer/admin endpoints.
func requireAPIKey(w http.ResponseWriter, r *http.Request) bool {
	if apiKey == "" {
		return true // not enforced when unset (dev/in-cluster)
	}
	if r.Header.Get("X-API-Key") != apiKey {
		http.Error(w, "invalid API key", http.StatusUnauthorized)
		return false
	}
	return true
}

// requireJWT checks for Authorization: Bearer on caller-facing endpoints.
func requireJWT(w http.ResponseWriter, r *http.Request) bool {
	if jwtSecret == "" {
		return true
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		log.Printf("[AUTH] invalid JWT: %v", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return false
	}
	return true
}

// Server exposes the signing workflow and ledger over HTTP.
type Server struct {
	store      *storage.Storage
	ledger     *ledger.Ledger
	orch       *orchestrator.Orchestrator
	txs        *txstore.Store
	ListenAddr string
	limiter    *rateLimiter
}

func NewServer(store *storage.Storage, l *ledger.Ledger, orch *orchestrator.Orchestrator, txs *txstore.Store, listenAddr string) *Server {
	return &Server{
		store:      store,
		ledger:     l,
		orch:       orch,
		txs:        txs,
		ListenAddr: listenAddr,
		limiter:    newRateLimiter(),
	}
}

// Mux builds the route table. Split out of Start so tests can drive the
// handlers through httptest.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	// Signing workflow
	mux.HandleFunc("/api/requests", s.handleSubmitRequest)
	mux.HandleFunc("/api/requests/", s.handleRequestByID)

	// Ledger queries
	mux.HandleFunc("/api/verify/", s.handleVerifySignature)
	mux.HandleFunc("/api/history/", s.handleSignatureHistory)
	mux.HandleFunc("/api/audit", s.handleAuditTrail)
	mux.HandleFunc("/list_blocks", s.handleListBlocks)

	// Peer protocol
	mux.HandleFunc("/chain", s.handleChain)
	mux.HandleFunc("/nodes/register", s.handleRegisterNodes)
	mux.HandleFunc("/nodes/resolve", s.handleResolveConflicts)

	// Health/status
	mux.HandleFunc("/nodehealth", s.HandleNodeHealth)
	mux.HandleFunc("/health/liveness", s.HandleLiveness)
	mux.HandleFunc("/health/readiness", s.HandleReadiness)
	mux.HandleFunc("/status", s.HandleStatus)

	return mux
}

func (s *Server) Start() error {
	fmt.Println("API server listening at", s.ListenAddr)

	enableHTTPS := os.Getenv("ENABLE_HTTPS")
	certPath := os.Getenv("TLS_CERT_PATH")
	keyPath := os.Getenv("TLS_KEY_PATH")

	if enableHTTPS == "true" {
		fmt.Println("[HTTPS] Enabled. Using cert:", certPath, "key:", keyPath)
		return http.ListenAndServeTLS(s.ListenAddr, certPath, keyPath, s.Mux())
	}
	return http.ListenAndServe(s.ListenAddr, s.Mux())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
