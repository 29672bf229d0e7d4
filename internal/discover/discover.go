package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"peerdex/internal/ipfs"
	"peerdex/internal/pool"
)

// indexPath is the artifact every peer publishes under its self identity.
// The name is part of the wire contract: other discovery engines fetch
// exactly /ipns/<peer>/index.json.
const indexPath = "/index.json"

// selfBindingName marks a peer's pointer to its own index inside the
// advertised bindings. It is never content: the catalog records the
// peer's index through the synthetic sentinel row instead.
const selfBindingName = "index"

// manyPeersThreshold is the swarm size above which index fetches switch
// to the fast timeout.
const manyPeersThreshold = 20

// Daemon is the slice of the network facade the scan needs.
type Daemon interface {
	SwarmPeers(ctx context.Context) ([]string, error)
	Cat(ctx context.Context, path string) (string, error)
	Resolve(ctx context.Context, name string) (string, error)
	PinAdd(ctx context.Context, cid string) error
}

// Catalog persists discovered bindings.
type Catalog interface {
	UpsertDiscovered(nodeID, binding string, name, cid *string) error
}

// Options tune one scan round. Zero values fall back to defaults.
type Options struct {
	Pin            bool
	FetchWorkers   int
	ResolveWorkers int
	CatTimeout     time.Duration
	ResolveTimeout time.Duration
}

func (o *Options) applyDefaults(peerCount int) {
	if o.FetchWorkers < 1 {
		o.FetchWorkers = 20
	}
	if o.ResolveWorkers < 1 {
		o.ResolveWorkers = 10
	}
	if o.CatTimeout <= 0 {
		o.CatTimeout = ipfs.CatTimeout
		if peerCount > manyPeersThreshold {
			o.CatTimeout = ipfs.FastCatTimeout
		}
	}
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = ipfs.ResolveTimeout
	}
}

// Entry is one discovered binding of a peer.
type Entry struct {
	Name     string  `json:"name"`
	IPNSName string  `json:"ipns"`
	CID      *string `json:"cid"`
	Pinned   bool    `json:"pinned,omitempty"`
}

// PeerResult holds the bindings fetched from one answering peer.
type PeerResult struct {
	PeerID  string  `json:"peer_id"`
	Entries []Entry `json:"entries"`
}

// Result summarizes one scan round.
type Result struct {
	PeersTotal    int               `json:"peers_total"`
	PeersAnswered int               `json:"peers_answered"`
	Bindings      int               `json:"bindings"`
	Resolved      int               `json:"resolved"`
	Pinned        int               `json:"pinned"`
	StoreErrors   int               `json:"store_errors,omitempty"`
	PeerFailures  map[string]string `json:"peer_failures,omitempty"`
	Peers         []PeerResult      `json:"peers"`
}

// Engine discovers content indexes published by swarm peers and
// reconciles them into the catalog.
type Engine struct {
	daemon Daemon
	cat    Catalog
	log    *zap.Logger
}

func New(daemon Daemon, cat Catalog, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{daemon: daemon, cat: cat, log: log}
}

// fetchOutcome is the stage-one result for a single peer.
type fetchOutcome struct {
	peerID   string
	bindings map[string]string // display name -> ipns name
	err      error
}

// resolveUnit is one binding queued for stage-two resolution.
type resolveUnit struct {
	peerID   string
	name     string
	ipnsName string
	cid      *string
}

// Scan enumerates connected peers, fetches each peer's published index,
// resolves every advertised binding to its current CID, and upserts the
// results. Peer enumeration failure is fatal; everything after that is
// recorded per peer or per binding and never aborts the round.
func (e *Engine) Scan(ctx context.Context, opts Options) (*Result, error) {
	peers, err := e.daemon.SwarmPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing swarm peers: %w", err)
	}
	opts.applyDefaults(len(peers))

	res := &Result{
		PeersTotal:   len(peers),
		PeerFailures: make(map[string]string),
	}
	if len(peers) == 0 {
		return res, nil
	}

	e.log.Debug("scan starting",
		zap.Int("peers", len(peers)),
		zap.Duration("cat_timeout", opts.CatTimeout))

	// Stage one: fetch every peer's index concurrently.
	fetched := pool.Map(ctx, opts.FetchWorkers, peers, func(ctx context.Context, pid string) fetchOutcome {
		return e.fetchIndex(ctx, pid, opts.CatTimeout)
	})

	var units []resolveUnit
	answered := make([]fetchOutcome, 0, len(fetched))
	for _, f := range fetched {
		if f.err != nil {
			res.PeerFailures[f.peerID] = f.err.Error()
			e.log.Debug("peer index fetch failed",
				zap.String("peer", f.peerID), zap.Error(f.err))
			continue
		}
		answered = append(answered, f)
		for name, ipnsName := range f.bindings {
			if name == selfBindingName {
				continue
			}
			units = append(units, resolveUnit{peerID: f.peerID, name: name, ipnsName: ipnsName})
		}
	}
	res.PeersAnswered = len(answered)
	res.Bindings = len(units)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Stage two: resolve every binding across every peer. Failures keep
	// the binding with a nil CID; its existence is still worth recording.
	resolved := pool.Map(ctx, opts.ResolveWorkers, units, func(ctx context.Context, u resolveUnit) resolveUnit {
		rctx, cancel := context.WithTimeout(ctx, opts.ResolveTimeout)
		defer cancel()
		cid, err := e.daemon.Resolve(rctx, u.ipnsName)
		if err != nil {
			e.log.Debug("binding resolution failed",
				zap.String("peer", u.peerID),
				zap.String("name", u.name),
				zap.Error(err))
			return u
		}
		u.cid = &cid
		return u
	})

	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Reconcile: one sentinel row per answering peer, one row per binding.
	byPeer := make(map[string][]resolveUnit)
	for _, u := range resolved {
		if u.cid != nil {
			res.Resolved++
		}
		byPeer[u.peerID] = append(byPeer[u.peerID], u)
	}

	for _, f := range answered {
		if err := e.cat.UpsertDiscovered(f.peerID, f.peerID, nil, nil); err != nil {
			res.StoreErrors++
			e.log.Warn("storing index sentinel failed",
				zap.String("peer", f.peerID), zap.Error(err))
		}

		peerRes := PeerResult{PeerID: f.peerID}
		for _, u := range byPeer[f.peerID] {
			name := u.name
			if err := e.cat.UpsertDiscovered(u.peerID, u.ipnsName, &name, u.cid); err != nil {
				res.StoreErrors++
				e.log.Warn("storing binding failed",
					zap.String("peer", u.peerID),
					zap.String("name", u.name),
					zap.Error(err))
			}

			entry := Entry{Name: u.name, IPNSName: u.ipnsName, CID: u.cid}
			if opts.Pin && u.cid != nil {
				if err := e.daemon.PinAdd(ctx, *u.cid); err != nil {
					e.log.Warn("pin failed",
						zap.String("peer", u.peerID),
						zap.String("cid", *u.cid),
						zap.Error(err))
				} else {
					entry.Pinned = true
					res.Pinned++
				}
			}
			peerRes.Entries = append(peerRes.Entries, entry)
		}
		res.Peers = append(res.Peers, peerRes)
	}

	e.log.Debug("scan finished",
		zap.Int("answered", res.PeersAnswered),
		zap.Int("bindings", res.Bindings),
		zap.Int("resolved", res.Resolved))

	return res, nil
}

// fetchIndex fetches and parses one peer's /index.json under the short
// timeout. Malformed content is indistinguishable from a missing index
// as far as the round is concerned.
func (e *Engine) fetchIndex(ctx context.Context, peerID string, timeout time.Duration) fetchOutcome {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := e.daemon.Cat(cctx, "/ipns/"+peerID+indexPath)
	if err != nil {
		return fetchOutcome{peerID: peerID, err: err}
	}

	bindings, err := ParseIndex(raw)
	if err != nil {
		return fetchOutcome{peerID: peerID, err: err}
	}
	return fetchOutcome{peerID: peerID, bindings: bindings}
}

// ParseIndex parses a peer's index artifact. The schema is strict: a
// JSON object whose "ipns" member maps string names to string targets.
// Anything else is ErrMalformed; a well-formed index with no bindings is
// ErrNotFound, matching a peer that publishes nothing.
func ParseIndex(raw string) (map[string]string, error) {
	var doc struct {
		IPNS map[string]string `json:"ipns"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ipfs.ErrMalformed, err)
	}
	if len(doc.IPNS) == 0 {
		return nil, fmt.Errorf("%w: index advertises no bindings", ipfs.ErrNotFound)
	}
	return doc.IPNS, nil
}
