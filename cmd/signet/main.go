package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"signet/api/server"
	"signet/core/audit"
	"signet/core/biometric"
	"signet/core/config"
	"signet/core/ledger"
	"signet/core/notify"
	"signet/core/orchestrator"
	"signet/core/provider"
	"signet/core/storage"
	"signet/core/txstore"
)

// conflictInterval is how often the node runs the longest-chain rule
// against its registered peers.
const conflictInterval = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Log to file as well as stdout
	os.MkdirAll(filepath.Dir(cfg.LogFile), 0755)
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	fmt.Println("Starting Signet node")

	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	ldgr := ledger.NewLedger(cfg.Tenant.ProofOfWorkDifficulty)
	chain, err := store.LoadChain()
	if err != nil {
		log.Fatalf("Failed to load chain: %v", err)
	}
	if len(chain) > 0 {
		// A chain that fails boot validation is a fatal integrity error:
		// the node must not seal on top of it.
		if err := ldgr.Restore(chain); err != nil {
			log.Fatalf("FATAL: local chain failed validation: %v", err)
		}
		log.Printf("[NODE] restored chain with %d block(s)", len(chain))
	} else {
		if err := store.SaveBlock(ldgr.LastBlock()); err != nil {
			log.Fatalf("Failed to persist genesis block: %v", err)
		}
		log.Printf("[NODE] sealed genesis block")
	}

	trail := audit.NewStoreTrail(store)
	txs := txstore.NewStore(ldgr, trail)

	var scorer biometric.ScoreProvider
	if cfg.BiometricKey != "" && cfg.BiometricURL != "" {
		scorer = biometric.NewRemoteProvider(cfg.BiometricURL, cfg.BiometricKey, cfg.RequestTimeout)
		log.Printf("[NODE] biometric scoring delegated to %s", cfg.BiometricURL)
	} else {
		scorer = biometric.NewLocalProvider()
		log.Printf("[NODE] no biometric provider configured, using local heuristics")
	}
	var opts []biometric.Option
	if ttl := cfg.Tenant.CacheTTL(); ttl > 0 {
		var cache biometric.Cache
		if cfg.RedisAddr != "" {
			cache = biometric.NewRedisCache(cfg.RedisAddr)
			log.Printf("[NODE] biometric cache backed by redis at %s", cfg.RedisAddr)
		} else {
			cache = biometric.NewMemoryCache()
		}
		opts = append(opts, biometric.WithCache(cache, ttl))
	}
	verifier := biometric.NewVerifier(scorer, cfg.Tenant.FaceMatchThreshold, cfg.Tenant.LivenessThreshold, opts...)

	factory := provider.NewFactory(cfg.ProviderURL, cfg.ProviderKey, cfg.RequestTimeout)
	publisher := notify.NewPublisher()
	stopNotify := notify.StartLogSubscriber(publisher)
	defer stopNotify()

	orch := orchestrator.New(orchestrator.Config{
		Tenant:         cfg.Tenant,
		Verifier:       verifier,
		Providers:      factory,
		Ledger:         ldgr,
		Saver:          store,
		Store:          txs,
		Publisher:      publisher,
		RequestTimeout: cfg.RequestTimeout,
	})
	orch.Start()
	defer orch.Stop()

	// Static peer list for conflict resolution
	if peers := os.Getenv("SIGNET_PEERS"); peers != "" {
		for _, addr := range strings.Split(peers, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				ldgr.AddNode(addr)
			}
		}
		log.Printf("[NODE] registered %d peer(s)", len(ldgr.Nodes()))
	}

	go func() {
		ticker := time.NewTicker(conflictInterval)
		defer ticker.Stop()
		for range ticker.C {
			if ldgr.ResolveConflicts(context.Background()) {
				for _, blk := range ldgr.Chain() {
					if err := store.SaveBlock(blk); err != nil {
						log.Printf("[NODE] failed to persist adopted block %d: %v", blk.Index, err)
					}
				}
			}
		}
	}()

	srv := server.NewServer(store, ldgr, orch, txs, cfg.ListenAddr)
	log.Fatal(srv.Start())
}
