package publish

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"peerdex/internal/ipfs"
	"peerdex/internal/pool"
	"peerdex/internal/store"
)

// publishTTL keeps every name record short-lived. Publication runs
// frequently, so records are refreshed rather than trusted long-term.
const publishTTL = "1m"

// Daemon is the slice of the network facade publication needs.
type Daemon interface {
	NodeID(ctx context.Context) (string, error)
	KeyList(ctx context.Context) (map[string]string, error)
	AddDir(ctx context.Context, dir string) (string, error)
	Publish(ctx context.Context, cid string, opts ipfs.PublishOptions) error
}

// Catalog reads the operator's registered directories. Publication never
// creates or deletes them.
type Catalog interface {
	ListPublished() ([]store.Published, error)
}

// Options tune one publish round.
type Options struct {
	Workers int
	Timeout time.Duration // per add+publish unit
}

func (o *Options) applyDefaults() {
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
}

// EntryResult is the per-directory outcome; Error is empty on success.
type EntryResult struct {
	Key      string `json:"key"`
	Path     string `json:"path"`
	IPNSName string `json:"ipns,omitempty"`
	CID      string `json:"cid,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result is one publish round: every registered directory plus the
// self-index outcome.
type Result struct {
	Entries       []EntryResult `json:"entries"`
	SelfAttempted bool          `json:"self_attempted"`
	SelfIPNSName  string        `json:"self_ipns,omitempty"`
	SelfCID       string        `json:"self_cid,omitempty"`
	SelfError     string        `json:"self_error,omitempty"`
}

// Succeeded counts entries that published cleanly.
func (r *Result) Succeeded() int {
	n := 0
	for _, e := range r.Entries {
		if e.Error == "" {
			n++
		}
	}
	return n
}

// Engine re-publishes every registered directory and the combined
// self-index built from this round's results.
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

// PublishAll publishes all registered directories concurrently, then
// builds and publishes the self-index from this round's successes. One
// entry failing never blocks the others; partial success is a normal,
// fully reported outcome.
func (e *Engine) PublishAll(ctx context.Context, opts Options) (*Result, error) {
	opts.applyDefaults()

	entries, err := e.cat.ListPublished()
	if err != nil {
		return nil, fmt.Errorf("loading published directories: %w", err)
	}

	keys, err := e.daemon.KeyList(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}

	res := &Result{}
	if len(entries) == 0 {
		return res, nil
	}

	res.Entries = pool.Map(ctx, opts.Workers, entries, func(ctx context.Context, p store.Published) EntryResult {
		return e.publishEntry(ctx, p, keys, opts.Timeout)
	})

	// The self-index is derived from this round's in-memory successes
	// only; the discovered table holds other peers' content and never
	// feeds our own index.
	published := make(map[string]string)
	for _, er := range res.Entries {
		if er.Error == "" {
			published[er.Key] = er.IPNSName
		}
	}
	if len(published) == 0 {
		return res, nil
	}

	res.SelfAttempted = true
	cid, ipnsName, err := e.publishSelfIndex(ctx, published)
	if err != nil {
		res.SelfError = err.Error()
		e.log.Warn("self-index publish failed", zap.Error(err))
		return res, nil
	}
	res.SelfCID = cid
	res.SelfIPNSName = ipnsName
	return res, nil
}

func (e *Engine) publishEntry(ctx context.Context, p store.Published, keys map[string]string, timeout time.Duration) EntryResult {
	er := EntryResult{Key: p.KeyName, Path: p.Path}

	ipnsName, ok := keys[p.KeyName]
	if !ok {
		er.Error = fmt.Sprintf("IPNS key %q not found", p.KeyName)
		return er
	}
	er.IPNSName = ipnsName

	if fi, err := os.Stat(p.Path); err != nil || !fi.IsDir() {
		er.Error = fmt.Sprintf("directory not found: %s", p.Path)
		return er
	}

	uctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cid, err := e.daemon.AddDir(uctx, p.Path)
	if err != nil {
		er.Error = fmt.Sprintf("add failed: %s", err)
		return er
	}
	er.CID = cid

	if err := e.daemon.Publish(uctx, cid, ipfs.PublishOptions{Key: p.KeyName, TTL: publishTTL}); err != nil {
		er.Error = fmt.Sprintf("publish failed: %s", err)
		return er
	}

	e.log.Debug("published directory",
		zap.String("key", p.KeyName),
		zap.String("cid", cid))
	return er
}

func (e *Engine) publishSelfIndex(ctx context.Context, published map[string]string) (cid, ipnsName string, err error) {
	dir, err := writeIndexDir(published)
	if err != nil {
		return "", "", err
	}
	defer os.RemoveAll(dir)

	cid, err = e.daemon.AddDir(ctx, dir)
	if err != nil {
		return "", "", fmt.Errorf("adding index: %w", err)
	}
	if err := e.daemon.Publish(ctx, cid, ipfs.PublishOptions{TTL: publishTTL}); err != nil {
		return "", "", fmt.Errorf("publishing index: %w", err)
	}

	ipnsName, err = e.daemon.NodeID(ctx)
	if err != nil {
		// Published fine; only the display name is missing.
		e.log.Warn("could not read node id", zap.Error(err))
		return cid, "", nil
	}
	return cid, ipnsName, nil
}
