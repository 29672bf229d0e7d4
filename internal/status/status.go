package status

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"peerdex/internal/ipfs"
	"peerdex/internal/store"
)

// SourceLocal marks entries backed by the daemon's own keyring rather
// than a discovered peer.
const SourceLocal = "local"

// Daemon is the slice of the network facade the view queries live.
type Daemon interface {
	KeyList(ctx context.Context) (map[string]string, error)
	PinLs(ctx context.Context) (map[string]bool, error)
	Resolve(ctx context.Context, name string) (string, error)
}

// Catalog reads both record kinds.
type Catalog interface {
	ListDiscovered() ([]store.Discovered, error)
	ListPublished() ([]store.Published, error)
}

// Entry is one row of the merged view: a local key or a discovered
// binding, with live pin state.
type Entry struct {
	Source   string `json:"source"` // "local" or the peer id
	Name     string `json:"name"`
	IPNSName string `json:"ipns"`
	Path     string `json:"path,omitempty"` // local publication dir, if registered
	CID      string `json:"cid,omitempty"`
	Pinned   bool   `json:"pinned"`
}

// View merges local and discovered catalog entries with live pin status.
// Pin state is recomputed on every query: peers pin and unpin outside
// this system's control, so persisting it would only serve stale answers.
type View struct {
	daemon         Daemon
	cat            Catalog
	log            *zap.Logger
	resolveTimeout time.Duration
}

func New(daemon Daemon, cat Catalog, log *zap.Logger) *View {
	if log == nil {
		log = zap.NewNop()
	}
	return &View{
		daemon:         daemon,
		cat:            cat,
		log:            log,
		resolveTimeout: ipfs.ResolveTimeout,
	}
}

// Entries returns local keys first, then discovered bindings grouped by
// peer. Self-index sentinels never appear: neither the local "self" key
// nor discovered rows without a display name are content.
func (v *View) Entries(ctx context.Context) ([]Entry, error) {
	keys, err := v.daemon.KeyList(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	pins, err := v.daemon.PinLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pins: %w", err)
	}

	published, err := v.cat.ListPublished()
	if err != nil {
		return nil, fmt.Errorf("loading published directories: %w", err)
	}
	pathByKey := make(map[string]string, len(published))
	for _, p := range published {
		pathByKey[p.KeyName] = p.Path
	}

	var local []Entry
	for name, ipnsName := range keys {
		if name == "self" {
			continue
		}
		e := Entry{
			Source:   SourceLocal,
			Name:     name,
			IPNSName: ipnsName,
			Path:     pathByKey[name],
		}
		e.CID, e.Pinned = v.pinState(ctx, ipnsName, nil, pins)
		local = append(local, e)
	}
	sort.Slice(local, func(i, j int) bool { return local[i].Name < local[j].Name })

	discovered, err := v.cat.ListDiscovered()
	if err != nil {
		return nil, fmt.Errorf("loading discovered bindings: %w", err)
	}

	var remote []Entry
	for _, d := range discovered {
		if d.IsIndex() {
			continue
		}
		e := Entry{
			Source:   d.NodeID,
			Name:     *d.Name,
			IPNSName: d.Binding,
		}
		e.CID, e.Pinned = v.pinState(ctx, d.Binding, d.CID, pins)
		remote = append(remote, e)
	}
	sort.Slice(remote, func(i, j int) bool {
		if remote[i].Source != remote[j].Source {
			return remote[i].Source < remote[j].Source
		}
		return remote[i].Name < remote[j].Name
	})

	return append(local, remote...), nil
}

// pinState decides an entry's current CID and pin membership. A stored
// CID may be stale or absent, in which case the name is re-resolved
// under the long timeout; the fresh CID is reported but not persisted.
func (v *View) pinState(ctx context.Context, ipnsName string, stored *string, pins map[string]bool) (string, bool) {
	if stored != nil && *stored != "" {
		return *stored, pins[*stored]
	}

	rctx, cancel := context.WithTimeout(ctx, v.resolveTimeout)
	defer cancel()
	cid, err := v.daemon.Resolve(rctx, ipnsName)
	if err != nil {
		v.log.Debug("resolution failed during status",
			zap.String("ipns", ipnsName), zap.Error(err))
		return "", false
	}
	return cid, pins[cid]
}
