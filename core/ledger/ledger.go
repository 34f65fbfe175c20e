package ledger

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"
)

// ErrChainIntegrity is returned when the local chain fails validation or a
// proof/hash mismatch is found while sealing. It is fatal: the ledger halts
// further sealing and an operator has to intervene. No automatic repair.
var ErrChainIntegrity = errors.New("chain integrity violation")

// ErrHalted is returned for mutations attempted after an integrity failure.
var ErrHalted = errors.New("ledger halted after integrity violation")

// genesisProof seeds the chain; the genesis block is exempt from the work
// predicate.
const genesisProof = 100

// HistoryEntry is one match returned by SignatureHistory.
type HistoryEntry struct {
	BlockIndex  uint64      `json:"block_index"`
	Timestamp   time.Time   `json:"timestamp"`
	Transaction Transaction `json:"transaction"`
}

// Ledger owns one append-only hash chain and its pending-transaction pool.
// All mutation is serialized behind a single mutex: concurrent sealing
// would fork the chain. Reads copy a snapshot under the same lock.
type Ledger struct {
	mu         sync.Mutex
	chain      []Block
	pending    []Transaction
	difficulty int
	nodes      map[string]struct{}
	halted     bool

	peerClient  *http.Client
	peerTimeout time.Duration
}

// NewLedger creates a ledger with a sealed genesis block.
func NewLedger(difficulty int) *Ledger {
	l := &Ledger{
		difficulty:  difficulty,
		nodes:       make(map[string]struct{}),
		peerTimeout: 5 * time.Second,
	}
	l.peerClient = &http.Client{Timeout: l.peerTimeout}
	genesis := Block{
		Index:        1,
		Timestamp:    time.Now().UTC(),
		Transactions: nil,
		Proof:        genesisProof,
		PreviousHash: "",
	}
	l.chain = append(l.chain, genesis)
	return l
}

// Restore replaces the in-memory chain with one loaded from storage. The
// restored chain is validated first; a failed validation halts the ledger.
func (l *Ledger) Restore(chain []Block) error {
	if !l.ValidChain(chain) {
		l.mu.Lock()
		l.halted = true
		l.mu.Unlock()
		log.Printf("[LEDGER] restored chain failed validation, halting")
		return ErrChainIntegrity
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chain = append([]Block(nil), chain...)
	return nil
}

// Difficulty returns the configured proof-of-work difficulty.
func (l *Ledger) Difficulty() int {
	return l.difficulty
}

// Halted reports whether sealing has been stopped by an integrity failure.
func (l *Ledger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}

// LastBlock returns a copy of the chain tip.
func (l *Ledger) LastBlock() Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chain[len(l.chain)-1]
}

// Chain returns a snapshot copy of the full chain.
func (l *Ledger) Chain() []Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Block, len(l.chain))
	copy(out, l.chain)
	return out
}

// Height returns the number of blocks in the chain.
func (l *Ledger) Height() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chain)
}

// PendingCount returns the number of transactions waiting for a seal.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// AddPendingTransaction appends tx to the pending pool and returns the index
// of the block that will contain it. The chain itself is not touched.
func (l *Ledger) AddPendingTransaction(tx Transaction) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted {
		return 0, ErrHalted
	}
	l.pending = append(l.pending, tx)
	return l.chain[len(l.chain)-1].Index + 1, nil
}

// SealBlock appends a new block containing every pending transaction and
// clears the pending pool atomically with the append. previousHash may be
// empty, in which case the hash of the current tip is used. A proof or hash
// mismatch is a fatal integrity violation: the ledger halts.
func (l *Ledger) SealBlock(proof int64, previousHash string) (Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted {
		return Block{}, ErrHalted
	}
	last := l.chain[len(l.chain)-1]
	if previousHash == "" {
		previousHash = HashBlock(last)
	}
	if previousHash != HashBlock(last) {
		l.halted = true
		log.Printf("[LEDGER] previous-hash mismatch while sealing block %d, halting", last.Index+1)
		return Block{}, ErrChainIntegrity
	}
	if !ValidProof(last.Proof, proof, l.difficulty) {
		l.halted = true
		log.Printf("[LEDGER] invalid proof while sealing block %d, halting", last.Index+1)
		return Block{}, ErrChainIntegrity
	}

	blk := Block{
		Index:        last.Index + 1,
		Timestamp:    time.Now().UTC(),
		Transactions: l.pending,
		Proof:        proof,
		PreviousHash: previousHash,
	}
	l.pending = nil
	l.chain = append(l.chain, blk)
	return blk, nil
}

// VerifySignature scans every block's transactions for signatureID.
func (l *Ledger) VerifySignature(signatureID string) bool {
	return len(l.SignatureHistory(signatureID)) > 0
}

// SignatureHistory returns every recorded transaction matching signatureID,
// in block order.
func (l *Ledger) SignatureHistory(signatureID string) []HistoryEntry {
	chain := l.Chain()
	var out []HistoryEntry
	for _, blk := range chain {
		for _, tx := range blk.Transactions {
			if tx.SignatureID == signatureID {
				out = append(out, HistoryEntry{
					BlockIndex:  blk.Index,
					Timestamp:   blk.Timestamp,
					Transaction: tx,
				})
			}
		}
	}
	return out
}

// ValidChain walks the chain verifying hash linkage and the work predicate
// for every adjacent pair. One violation invalidates the whole chain.
func (l *Ledger) ValidChain(chain []Block) bool {
	if len(chain) == 0 {
		return false
	}
	for i := 1; i < len(chain); i++ {
		prev := chain[i-1]
		cur := chain[i]
		if cur.PreviousHash != HashBlock(prev) {
			return false
		}
		if !ValidProof(prev.Proof, cur.Proof, l.difficulty) {
			return false
		}
	}
	return true
}

// ValidateLocal re-validates the local chain; on failure the ledger halts.
// Run at boot after Restore and available to operators via the API.
func (l *Ledger) ValidateLocal() error {
	if l.ValidChain(l.Chain()) {
		return nil
	}
	l.mu.Lock()
	l.halted = true
	l.mu.Unlock()
	return ErrChainIntegrity
}

// AddNode registers a peer address for conflict resolution.
func (l *Ledger) AddNode(address string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes[address] = struct{}{}
}

// Nodes returns the registered peer addresses.
func (l *Ledger) Nodes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.nodes))
	for addr := range l.nodes {
		out = append(out, addr)
	}
	return out
}
