package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ValidProof reports whether proof satisfies the work predicate against
// lastProof: the hex digest of sha256("{lastProof}{proof}") must start with
// difficulty '0' characters.
func ValidProof(lastProof, proof int64, difficulty int) bool {
	guess := fmt.Sprintf("%d%d", lastProof, proof)
	sum := sha256.Sum256([]byte(guess))
	digest := hex.EncodeToString(sum[:])
	return strings.HasPrefix(digest, strings.Repeat("0", difficulty))
}

// ProofOfWork searches increasing integers until one satisfies ValidProof.
// CPU-bound; callers run it off any request-handling goroutine. The context
// is checked periodically so a shutting-down node does not spin forever.
func ProofOfWork(ctx context.Context, lastProof int64, difficulty int) (int64, error) {
	var proof int64
	for !ValidProof(lastProof, proof, difficulty) {
		proof++
		if proof%4096 == 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}
		}
	}
	return proof, nil
}
