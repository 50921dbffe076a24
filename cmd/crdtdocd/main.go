// Command crdtdocd stands up the document core's ambient shell: a
// docproto listener clients push/pull change packs against, a
// raft-backed watermark cluster whose min_synced_ticket gates the GC
// loop, an optional redis-backed snapshot mirror, a local bolt snapshot
// backup loop, and a background GC loop.
// Mirrors the shape of the teacher's main.go (flag parsing, data dir
// setup, goroutines for the background services, signal-driven
// graceful shutdown) generalized from a Redis protocol server to a
// document-change-pack server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cortexkv/crdtdoc/config"
	"github.com/cortexkv/crdtdoc/internal/docproto"
	"github.com/cortexkv/crdtdoc/internal/logging"
	"github.com/cortexkv/crdtdoc/internal/snapshotstore"
	"github.com/cortexkv/crdtdoc/internal/watermark"
)

func main() {
	configFile := flag.String("config", "", "path to a JSON config file")
	dataDir := flag.String("data", "", "directory for persistent state (overrides config)")
	port := flag.Int("port", 0, "docproto listen port (overrides config)")
	raftBind := flag.String("raft-bind", "127.0.0.1:6381", "bind address for the watermark raft transport")
	peerAddrs := flag.String("peers", "", "comma-separated watermark cluster peers, id@address")
	redisAddr := flag.String("redis", "", "address of a redis instance to mirror snapshots into (overrides config)")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configFile)
	if err != nil {
		logging.Emitf(logging.Error, "load config: %v", err)
		os.Exit(1)
	}
	config.LoadFromEnv(cfg)
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *port != 0 {
		cfg.ServerPort = *port
	}
	if *redisAddr != "" {
		cfg.RedisAddr = *redisAddr
	}
	if err := cfg.Validate(); err != nil {
		logging.Emitf(logging.Error, "invalid config: %v", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logging.Emitf(logging.Error, "create data dir: %v", err)
		os.Exit(1)
	}

	hub := docproto.NewHub()

	cluster, err := watermark.NewCluster(cfg.ReplicaID, filepath.Join(cfg.DataDir, "raft"), *raftBind, parsePeers(*peerAddrs))
	if err != nil {
		logging.Emitf(logging.Error, "start watermark cluster: %v", err)
		os.Exit(1)
	}
	defer cluster.Shutdown()

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		mirror, err := snapshotstore.Dial(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.SyncInterval*10)
		cancel()
		if err != nil {
			logging.Emitf(logging.Warn, "snapshot mirror unavailable, continuing without it: %v", err)
		} else {
			hub.WithMirror(mirror)
		}
	}

	if err := os.MkdirAll(cfg.GetSnapshotCachePath(), 0o755); err != nil {
		logging.Emitf(logging.Error, "create snapshot cache dir: %v", err)
		os.Exit(1)
	}
	diskFallback, err := snapshotstore.OpenDiskFallback(filepath.Join(cfg.GetSnapshotCachePath(), "local.db"))
	if err != nil {
		logging.Emitf(logging.Error, "open disk snapshot fallback: %v", err)
		os.Exit(1)
	}
	defer diskFallback.Close()

	stopBackup := make(chan struct{})
	go runBackupLoop(hub, diskFallback, cfg.SyncInterval, stopBackup)
	defer close(stopBackup)

	docServer := docproto.NewServer(hub)

	stopGC := make(chan struct{})
	go runGCLoop(hub, cluster, cfg.GCInterval, stopGC)

	errChan := make(chan error, 1)
	go func() {
		logging.Emitf(logging.Info, "docproto listening on %s", cfg.GetAddress())
		if err := docServer.ListenAndServe(cfg.GetAddress()); err != nil {
			errChan <- fmt.Errorf("docproto server: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logging.Emit(logging.Info, "shutting down gracefully")
	case err := <-errChan:
		logging.Emitf(logging.Error, "server error: %v", err)
	}
	close(stopGC)
	time.Sleep(100 * time.Millisecond)
}

// runGCLoop periodically advances garbage collection across every
// document the hub holds, once this node agrees on a cluster-wide
// min_synced_ticket (spec §4.6 garbage_collect, §4.3.4, "min_synced_ticket").
func runGCLoop(hub *docproto.Hub, cluster *watermark.Cluster, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			upper, ok := cluster.MinSyncedTicket()
			if !ok {
				continue
			}
			if n := hub.GarbageCollect(upper); n > 0 {
				logging.Emitf(logging.Info, "garbage collected %d tombstones", n)
			}
		}
	}
}

// runBackupLoop periodically writes every held document's snapshot into
// the local bolt-backed fallback, whether or not a redis mirror is
// attached. Nothing in this command reads the fallback back.
func runBackupLoop(hub *docproto.Hub, fallback *snapshotstore.DiskFallback, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snaps, err := hub.Snapshots()
			if err != nil {
				logging.Emitf(logging.Warn, "backup snapshot: %v", err)
				continue
			}
			for key, snap := range snaps {
				if err := fallback.Put(key, snap.Checkpoint, snap.Bytes); err != nil {
					logging.Emitf(logging.Warn, "backup put %q: %v", key, err)
				}
			}
		}
	}
}

// parsePeers turns a "id@addr,id@addr" flag value into watermark.Peer
// entries, skipping malformed entries rather than failing startup over
// a typo in an operator-supplied flag.
func parsePeers(raw string) []watermark.Peer {
	if raw == "" {
		return nil
	}
	var peers []watermark.Peer
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "@", 2)
		if len(parts) != 2 {
			logging.Emitf(logging.Warn, "ignoring malformed peer %q, want id@address", entry)
			continue
		}
		peers = append(peers, watermark.Peer{ID: parts[0], Address: parts[1]})
	}
	return peers
}
