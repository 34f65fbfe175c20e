package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
)

// ChainResponse is the wire format served at GET /chain and consumed during
// conflict resolution.
type ChainResponse struct {
	Chain  []Block `json:"chain"`
	Length int     `json:"length"`
}

// fetchPeerChain performs one GET /chain round-trip against a peer.
func (l *Ledger) fetchPeerChain(ctx context.Context, address string) ([]Block, error) {
	url := fmt.Sprintf("http://%s/chain", address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.peerClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET chain: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer returned status: %s", resp.Status)
	}
	var body ChainResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode chain JSON: %w", err)
	}
	return body.Chain, nil
}

// ResolveConflicts queries every registered peer for its chain and adopts
// the longest valid chain strictly longer than the local one (ties keep the
// local chain). Peers are queried in parallel with individual timeouts; an
// unreachable peer or one serving an invalid chain is logged and skipped.
// Returns whether the local chain was replaced.
func (l *Ledger) ResolveConflicts(ctx context.Context) bool {
	peers := l.Nodes()
	if len(peers) == 0 {
		return false
	}

	type result struct {
		address string
		chain   []Block
	}
	results := make(chan result, len(peers))
	var wg sync.WaitGroup
	for _, addr := range peers {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			peerCtx, cancel := context.WithTimeout(ctx, l.peerTimeout)
			defer cancel()
			chain, err := l.fetchPeerChain(peerCtx, addr)
			if err != nil {
				log.Printf("[LEDGER] skipping peer %s: %v", addr, err)
				return
			}
			results <- result{address: addr, chain: chain}
		}(addr)
	}
	wg.Wait()
	close(results)

	localLen := l.Height()
	var best []Block
	bestLen := localLen
	for r := range results {
		if len(r.chain) <= bestLen {
			continue
		}
		if !l.ValidChain(r.chain) {
			log.Printf("[LEDGER] skipping peer %s: invalid chain of length %d", r.address, len(r.chain))
			continue
		}
		best = r.chain
		bestLen = len(r.chain)
	}
	if best == nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.chain = append([]Block(nil), best...)
	log.Printf("[LEDGER] chain replaced: %d -> %d blocks", localLen, bestLen)
	return true
}
