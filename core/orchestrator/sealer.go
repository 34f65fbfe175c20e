package orchestrator

import (
	"errors"
	"log"
	"time"

	"signet/core/ledger"
)

// batchWindow is how long the sealer waits after a trigger so several
// signed requests can land in one block instead of one block each.
const batchWindow = 100 * time.Millisecond

// sealerLoop is the only goroutine that runs proof-of-work and seals
// blocks. Workers hand transactions to the ledger's pending pool and poke
// sealCh; sealing itself stays strictly single-writer.
func (o *Orchestrator) sealerLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.sealCh:
		}

		// Let concurrent signings accumulate into the same block.
		select {
		case <-time.After(batchWindow):
		case <-o.ctx.Done():
			return
		}

		for o.ledger.PendingCount() > 0 {
			if !o.sealOnce() {
				return
			}
		}
	}
}

// sealOnce mines and seals one block. Returns false when sealing must stop
// for good (shutdown or a fatal integrity violation).
func (o *Orchestrator) sealOnce() bool {
	last := o.ledger.LastBlock()
	proof, err := ledger.ProofOfWork(o.ctx, last.Proof, o.ledger.Difficulty())
	if err != nil {
		return false
	}
	blk, err := o.ledger.SealBlock(proof, "")
	if err != nil {
		if errors.Is(err, ledger.ErrChainIntegrity) || errors.Is(err, ledger.ErrHalted) {
			log.Printf("[SEALER] FATAL: %v; sealing halted, operator intervention required", err)
			return false
		}
		log.Printf("[SEALER] seal failed: %v", err)
		return true
	}
	log.Printf("[SEALER] sealed block %d with %d transaction(s)", blk.Index, len(blk.Transactions))

	if o.saver != nil {
		if err := o.saver.SaveBlock(blk); err != nil {
			log.Printf("[SEALER] failed to persist block %d: %v", blk.Index, err)
		}
	}

	for _, tx := range blk.Transactions {
		o.markRecorded(tx.SignatureID)
	}
	return true
}

// markRecorded flips the owning request to LEDGER_RECORDED and kicks off
// the completion notification.
func (o *Orchestrator) markRecorded(signatureID string) {
	o.mu.Lock()
	requestID, ok := o.bySignature[signatureID]
	if !ok {
		o.mu.Unlock()
		return
	}
	req, ok := o.requests[requestID]
	if !ok || req.Status != StatusSigned {
		o.mu.Unlock()
		return
	}
	req.Status = StatusLedgerRecorded
	snap := req.snapshot()
	o.mu.Unlock()
	o.publishCompletion(snap)
}
