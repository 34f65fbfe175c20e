package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// TxTypeSignature is the only transaction type recorded today.
const TxTypeSignature = "signature"

// Transaction is one signing event recorded on the chain. Transactions are
// append-only: once a block contains one it is never mutated or deleted.
type Transaction struct {
	Type         string    `json:"type"`
	SignatureID  string    `json:"signature_id"`
	Signer       string    `json:"signer"`
	DocumentHash string    `json:"document_hash"`
	Provider     string    `json:"provider,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Block is an immutable batch of transactions sealed with a valid proof and
// linked to its predecessor by hash. Genesis has Index 1 and an empty
// PreviousHash.
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Proof        int64         `json:"proof"`
	PreviousHash string        `json:"previous_hash"`
}

// HashBlock computes the SHA-256 hex digest of the block's canonical JSON
// form. Serialization goes through a map so keys are emitted sorted and the
// digest is stable across processes regardless of struct declaration order.
func HashBlock(b Block) string {
	raw, _ := json.Marshal(b)
	var canonical map[string]interface{}
	_ = json.Unmarshal(raw, &canonical)
	sorted, _ := json.Marshal(canonical)
	sum := sha256.Sum256(sorted)
	return hex.EncodeToString(sum[:])
}

// Serialize encodes the block as JSON.
func (b *Block) Serialize() ([]byte, error) {
	return json.Marshal(b)
}

// DeserializeBlock decodes JSON into a Block.
func DeserializeBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
