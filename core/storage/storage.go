package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"

	"signet/core/ledger"
)

const (
	blockPrefix = "block:"
	auditPrefix = "audit:"
	auditSeqKey = "audit_seq"
)

// Storage persists sealed blocks and the audit trail in LevelDB. Blocks are
// keyed by zero-padded index so iteration returns them in chain order.
type Storage struct {
	db *leveldb.DB

	// auditMu serializes AppendAudit so the sequence counter is a single
	// read-modify-write per record.
	auditMu sync.Mutex
}

func NewStorage(path string) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Get retrieves a raw value by key.
func (s *Storage) Get(key string) ([]byte, error) {
	return s.db.Get([]byte(key), nil)
}

// Put stores a raw key-value pair.
func (s *Storage) Put(key string, value []byte) error {
	return s.db.Put([]byte(key), value, nil)
}

func blockKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%012d", blockPrefix, index))
}

// SaveBlock persists one sealed block, encrypted at rest when a DEK is
// configured.
func (s *Storage) SaveBlock(blk ledger.Block) error {
	data, err := blk.Serialize()
	if err != nil {
		return err
	}
	enc, err := Encrypt(data)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(blockKey(blk.Index), enc)
	batch.Put([]byte("chain_height"), []byte(fmt.Sprintf("%d", blk.Index)))
	return s.db.Write(batch, nil)
}

// GetBlockByIndex loads the block with the given chain index.
func (s *Storage) GetBlockByIndex(index uint64) (ledger.Block, error) {
	var blk ledger.Block
	enc, err := s.db.Get(blockKey(index), nil)
	if err != nil {
		return blk, err
	}
	data, err := Decrypt(enc)
	if err != nil {
		return blk, err
	}
	err = json.Unmarshal(data, &blk)
	return blk, err
}

// LoadChain reads every persisted block in index order. An empty slice
// means a fresh node.
func (s *Storage) LoadChain() ([]ledger.Block, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var chain []ledger.Block
	for iter.Next() {
		if !bytes.HasPrefix(iter.Key(), []byte(blockPrefix)) {
			continue
		}
		data, err := Decrypt(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt block %s: %w", iter.Key(), err)
		}
		var blk ledger.Block
		if err := json.Unmarshal(data, &blk); err != nil {
			return nil, fmt.Errorf("failed to decode block %s: %w", iter.Key(), err)
		}
		chain = append(chain, blk)
	}
	return chain, iter.Error()
}

// ChainHeight counts persisted blocks.
func (s *Storage) ChainHeight() (int, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	height := 0
	for iter.Next() {
		if bytes.HasPrefix(iter.Key(), []byte(blockPrefix)) {
			height++
		}
	}
	return height, iter.Error()
}

// ListRecentBlocks returns summaries of up to max blocks, newest first.
func (s *Storage) ListRecentBlocks(max int) ([]map[string]string, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var summaries []map[string]string
	count := 0
	for iter.Last(); iter.Valid() && count < max; iter.Prev() {
		if !bytes.HasPrefix(iter.Key(), []byte(blockPrefix)) {
			continue
		}
		data, err := Decrypt(iter.Value())
		if err != nil {
			continue
		}
		var blk ledger.Block
		if err := json.Unmarshal(data, &blk); err != nil {
			continue
		}
		summaries = append(summaries, map[string]string{
			"index":     fmt.Sprintf("%d", blk.Index),
			"hash":      ledger.HashBlock(blk),
			"prevHash":  blk.PreviousHash,
			"timestamp": blk.Timestamp.UTC().Format(time.RFC3339),
		})
		count++
	}
	return summaries, iter.Error()
}

// AppendAudit stores one audit record under the next sequence number.
// Records are write-once: nothing ever updates or deletes an audit key.
// Safe for concurrent use; without the lock two callers could read the
// same sequence number and overwrite each other's record.
func (s *Storage) AppendAudit(record []byte) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	seq := uint64(0)
	if raw, err := s.db.Get([]byte(auditSeqKey), nil); err == nil {
		fmt.Sscanf(string(raw), "%d", &seq)
	}
	seq++
	batch := new(leveldb.Batch)
	batch.Put([]byte(fmt.Sprintf("%s%012d", auditPrefix, seq)), record)
	batch.Put([]byte(auditSeqKey), []byte(fmt.Sprintf("%d", seq)))
	return s.db.Write(batch, nil)
}

// AuditRecords returns every audit record in append order.
func (s *Storage) AuditRecords() ([][]byte, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var out [][]byte
	for iter.Next() {
		if !bytes.HasPrefix(iter.Key(), []byte(auditPrefix)) {
			continue
		}
		out = append(out, append([]byte{}, iter.Value()...))
	}
	return out, iter.Error()
}

// Iterator exposes a raw iterator over the database.
func (s *Storage) Iterator() iterator.Iterator {
	return s.db.NewIterator(nil, nil)
}
