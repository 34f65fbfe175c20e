// metrics.go - Metrics collection for the Signet node
package server

import (
	"runtime"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// NodeMetrics holds granular health metrics for the node.
type NodeMetrics struct {
	UptimeSeconds   int64   `json:"uptime_seconds"`
	BlockHeight     int     `json:"block_height"`
	PendingTxCount  int     `json:"pending_tx_count"`
	PeerCount       int     `json:"peer_count"`
	CPULoadPercent  float64 `json:"cpu_load_percent"`
	MemoryMB        float64 `json:"memory_mb"`
	DiskFreeMB      float64 `json:"disk_free_mb"`
	LedgerHalted    bool    `json:"ledger_halted"`
	LastBlockTime   string  `json:"last_block_time"`
	SealLagSeconds  int64   `json:"seal_lag_seconds"`
}

// Track server start time for uptime calculation
var startTime = time.Now()

// GetNodeMetrics returns current health metrics for the node.
func (s *Server) GetNodeMetrics() NodeMetrics {
	uptime := int64(time.Since(startTime).Seconds())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memoryMB := float64(m.Alloc) / (1024 * 1024)

	// Disk usage (root partition)
	var disk syscall.Statfs_t
	diskFreeMB := 0.0
	if err := syscall.Statfs("/", &disk); err == nil {
		diskFreeMB = float64(disk.Bfree) * float64(disk.Bsize) / (1024 * 1024)
	}

	cpuPercents, err := cpu.Percent(0, false)
	cpuLoad := 0.0
	if err == nil && len(cpuPercents) > 0 {
		cpuLoad = cpuPercents[0]
	}

	last := s.ledger.LastBlock()
	sealLag := int64(time.Since(last.Timestamp).Seconds())

	return NodeMetrics{
		UptimeSeconds:  uptime,
		BlockHeight:    s.ledger.Height(),
		PendingTxCount: s.ledger.PendingCount(),
		PeerCount:      len(s.ledger.Nodes()),
		CPULoadPercent: cpuLoad,
		MemoryMB:       memoryMB,
		DiskFreeMB:     diskFreeMB,
		LedgerHalted:   s.ledger.Halted(),
		LastBlockTime:  last.Timestamp.UTC().Format(time.RFC3339),
		SealLagSeconds: sealLag,
	}
}
