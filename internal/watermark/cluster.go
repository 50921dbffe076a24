package watermark

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Cluster is a raft-replicated Clock: every node applies the same
// sequence of Advance commands, so MinSyncedTicket agrees across the
// cluster before any node runs garbage_collect against it.
type Cluster struct {
	raft     *raft.Raft
	fsm      *fsm
	dataDir  string
	bindAddr string
}

// Peer is a voting member of the watermark cluster.
type Peer struct {
	ID      string
	Address string
}

// NewCluster opens (or creates) a watermark cluster node rooted at
// dataDir, bound to bindAddr, bootstrapping a single-node cluster when
// peers is empty (the first node of a fresh deployment).
func NewCluster(nodeID, dataDir, bindAddr string, peers []Peer) (*Cluster, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("watermark: create data dir: %w", err)
	}

	cfg := raft.DefaultConfig()
	cfg.LocalID = raft.ServerID(nodeID)

	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("watermark: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("watermark: create transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("watermark: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.bolt"))
	if err != nil {
		return nil, fmt.Errorf("watermark: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.bolt"))
	if err != nil {
		return nil, fmt.Errorf("watermark: create stable store: %w", err)
	}

	f := newFSM()
	ra, err := raft.NewRaft(cfg, f, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("watermark: create raft: %w", err)
	}

	if len(peers) == 0 {
		servers := []raft.Server{{
			ID:      cfg.LocalID,
			Address: transport.LocalAddr(),
		}}
		ra.BootstrapCluster(raft.Configuration{Servers: servers})
	} else {
		servers := make([]raft.Server, 0, len(peers)+1)
		servers = append(servers, raft.Server{ID: cfg.LocalID, Address: transport.LocalAddr()})
		for _, p := range peers {
			servers = append(servers, raft.Server{ID: raft.ServerID(p.ID), Address: raft.ServerAddress(p.Address)})
		}
		ra.BootstrapCluster(raft.Configuration{Servers: servers})
	}

	return &Cluster{raft: ra, fsm: f, dataDir: dataDir, bindAddr: bindAddr}, nil
}

// Advance proposes that actorID has synced through lamport. Only the
// leader can commit; followers return raft.ErrNotLeader.
func (c *Cluster) Advance(actorID string, lamport uint64, timeout time.Duration) error {
	data, err := json.Marshal(command{ActorID: actorID, Lamport: lamport})
	if err != nil {
		return fmt.Errorf("watermark: encode command: %w", err)
	}
	future := c.raft.Apply(data, timeout)
	return future.Error()
}

// MinSyncedTicket returns the current cluster-wide watermark as a
// Ticket usable directly by Document.GarbageCollect: the lowest
// lamport value known across all actors, delimiter 0, no specific
// actor (it is a boundary, not a mutation). ok is false when no actor
// has ever advanced the clock, meaning nothing is safe to collect yet.
func (c *Cluster) MinSyncedTicket() (ticket *doctime.Ticket, ok bool) {
	min, ok := c.fsm.snapshot().Min()
	if !ok {
		return nil, false
	}
	return doctime.NewTicket(min, 0, &doctime.InitialActorID), true
}

// IsLeader reports whether this node currently holds raft leadership.
func (c *Cluster) IsLeader() bool {
	return c.raft.State() == raft.Leader
}

// Leader returns the address of the current cluster leader, "" if
// unknown.
func (c *Cluster) Leader() string {
	addr, _ := c.raft.LeaderWithID()
	return string(addr)
}

// Shutdown stops the raft node. The bolt log and stable stores opened by
// NewCluster are not closed here.
func (c *Cluster) Shutdown() error {
	return c.raft.Shutdown().Error()
}
