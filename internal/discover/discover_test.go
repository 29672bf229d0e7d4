package discover

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"peerdex/internal/ipfs"
	"peerdex/internal/store"
)

// fakeDaemon simulates a fixed network state.
type fakeDaemon struct {
	mu        sync.Mutex
	peers     []string
	peersErr  error
	indexes   map[string]string // peer id -> raw index.json
	indexErr  map[string]error  // peer id -> forced fetch failure
	resolved  map[string]string // ipns name -> cid
	pinErr    map[string]error  // cid -> forced pin failure
	pinned    []string
	pinCalled int
}

func (f *fakeDaemon) SwarmPeers(_ context.Context) ([]string, error) {
	return f.peers, f.peersErr
}

func (f *fakeDaemon) Cat(_ context.Context, path string) (string, error) {
	for pid, err := range f.indexErr {
		if path == "/ipns/"+pid+"/index.json" {
			return "", err
		}
	}
	for pid, raw := range f.indexes {
		if path == "/ipns/"+pid+"/index.json" {
			return raw, nil
		}
	}
	return "", ipfs.ErrNotFound
}

func (f *fakeDaemon) Resolve(_ context.Context, name string) (string, error) {
	if cid, ok := f.resolved[name]; ok {
		return cid, nil
	}
	return "", ipfs.ErrNotFound
}

func (f *fakeDaemon) PinAdd(_ context.Context, cid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinCalled++
	if err := f.pinErr[cid]; err != nil {
		return err
	}
	f.pinned = append(f.pinned, cid)
	return nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// The worked example: P1 advertises an index and a blog, P2 is
// unreachable. Exactly one content row for (P1, blog) plus the sentinel.
func TestScan_Example(t *testing.T) {
	d := &fakeDaemon{
		peers: []string{"P1", "P2"},
		indexes: map[string]string{
			"P1": `{"ipns": {"index": "self-ipns", "blog": "blog-ipns"}}`,
		},
		indexErr: map[string]error{"P2": ipfs.ErrTimeout},
		resolved: map[string]string{"blog-ipns": "bafyblog", "self-ipns": "bafyself"},
	}
	s := setupTestStore(t)

	res, err := New(d, s, nil).Scan(context.Background(), Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if res.PeersTotal != 2 || res.PeersAnswered != 1 {
		t.Errorf("peers = %d/%d, want 1/2", res.PeersAnswered, res.PeersTotal)
	}
	if _, ok := res.PeerFailures["P2"]; !ok {
		t.Error("P2 should be reported as failed")
	}

	rows, err := s.ListDiscovered()
	if err != nil {
		t.Fatal(err)
	}

	if res.Bindings != 1 {
		t.Errorf("bindings = %d, want 1 (the index pointer is not content)", res.Bindings)
	}

	var content, sentinel int
	for _, r := range rows {
		if r.NodeID == "P2" {
			t.Errorf("no rows expected for unreachable P2, got %+v", r)
		}
		if r.IsIndex() {
			sentinel++
			continue
		}
		content++
		if *r.Name != "blog" {
			t.Errorf("unexpected content row %+v", r)
			continue
		}
		if r.Binding != "blog-ipns" {
			t.Errorf("blog binding = %q", r.Binding)
		}
		if r.CID == nil || *r.CID != "bafyblog" {
			t.Errorf("blog cid = %v, want bafyblog", r.CID)
		}
	}
	if sentinel != 1 {
		t.Errorf("got %d sentinel rows, want 1", sentinel)
	}
	// Exactly one display-bearing entry: (P1, blog). The advertised
	// "index" binding never surfaces as discoverable content.
	if content != 1 {
		t.Errorf("got %d content rows, want 1", content)
	}
}

func TestScan_PeerEnumerationFatal(t *testing.T) {
	d := &fakeDaemon{peersErr: ipfs.ErrDaemonUnavailable}
	s := setupTestStore(t)

	_, err := New(d, s, nil).Scan(context.Background(), Options{})
	if !errors.Is(err, ipfs.ErrDaemonUnavailable) {
		t.Errorf("got %v, want ErrDaemonUnavailable", err)
	}
}

func TestScan_PartialFailureIsolation(t *testing.T) {
	d := &fakeDaemon{
		peers: []string{"P1", "P2", "P3"},
		indexes: map[string]string{
			"P1": `{"ipns": {"blog": "blog-ipns"}}`,
			"P3": `{"ipns": {"docs": "docs-ipns"}}`,
		},
		indexErr: map[string]error{"P2": ipfs.ErrTimeout},
		resolved: map[string]string{"blog-ipns": "bafyblog", "docs-ipns": "bafydocs"},
	}
	s := setupTestStore(t)

	res, err := New(d, s, nil).Scan(context.Background(), Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if res.PeersAnswered != 2 {
		t.Errorf("answered = %d, want 2", res.PeersAnswered)
	}
	if len(res.PeerFailures) != 1 {
		t.Errorf("failures = %v, want only P2", res.PeerFailures)
	}

	rows, _ := s.ListDiscovered()
	peersSeen := make(map[string]bool)
	for _, r := range rows {
		peersSeen[r.NodeID] = true
	}
	if !peersSeen["P1"] || !peersSeen["P3"] || peersSeen["P2"] {
		t.Errorf("persisted peers = %v, want P1 and P3 only", peersSeen)
	}
}

func TestScan_ResolutionFailureKeepsBinding(t *testing.T) {
	d := &fakeDaemon{
		peers:   []string{"P1"},
		indexes: map[string]string{"P1": `{"ipns": {"blog": "blog-ipns"}}`},
		// nothing resolves
	}
	s := setupTestStore(t)

	res, err := New(d, s, nil).Scan(context.Background(), Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Bindings != 1 || res.Resolved != 0 {
		t.Errorf("bindings/resolved = %d/%d, want 1/0", res.Bindings, res.Resolved)
	}

	rows, _ := s.ListDiscovered()
	found := false
	for _, r := range rows {
		if !r.IsIndex() && *r.Name == "blog" {
			found = true
			if r.CID != nil {
				t.Errorf("unresolved binding should have nil cid, got %v", *r.CID)
			}
		}
	}
	if !found {
		t.Error("unresolved binding was dropped from the catalog")
	}
}

func TestScan_MalformedIndexTreatedAsFailure(t *testing.T) {
	d := &fakeDaemon{
		peers: []string{"P1", "P2"},
		indexes: map[string]string{
			"P1": `{"ipns": {"blog": 42}}`, // values must be strings
			"P2": `{"ipns": {"docs": "docs-ipns"}}`,
		},
		resolved: map[string]string{"docs-ipns": "bafydocs"},
	}
	s := setupTestStore(t)

	res, err := New(d, s, nil).Scan(context.Background(), Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.PeersAnswered != 1 {
		t.Errorf("answered = %d, want 1", res.PeersAnswered)
	}
	if _, ok := res.PeerFailures["P1"]; !ok {
		t.Error("malformed index should count as a peer failure")
	}

	rows, _ := s.ListDiscovered()
	for _, r := range rows {
		if r.NodeID == "P1" {
			t.Errorf("no rows expected for malformed P1, got %+v", r)
		}
	}
}

func TestScan_Idempotent(t *testing.T) {
	d := &fakeDaemon{
		peers: []string{"P1"},
		indexes: map[string]string{
			"P1": `{"ipns": {"blog": "blog-ipns", "docs": "docs-ipns"}}`,
		},
		resolved: map[string]string{"blog-ipns": "bafyblog", "docs-ipns": "bafydocs"},
	}
	s := setupTestStore(t)
	eng := New(d, s, nil)

	if _, err := eng.Scan(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	first, err := s.ListDiscovered()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Scan(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	second, err := s.ListDiscovered()
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("rescan against unchanged network changed the catalog:\n%+v\nvs\n%+v", first, second)
	}
}

func TestScan_PinOption(t *testing.T) {
	d := &fakeDaemon{
		peers: []string{"P1"},
		indexes: map[string]string{
			"P1": `{"ipns": {"blog": "blog-ipns", "docs": "docs-ipns"}}`,
		},
		resolved: map[string]string{"blog-ipns": "bafyblog"}, // docs unresolved
		pinErr:   map[string]error{},
	}
	s := setupTestStore(t)

	res, err := New(d, s, nil).Scan(context.Background(), Options{Pin: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Pinned != 1 {
		t.Errorf("pinned = %d, want 1", res.Pinned)
	}
	// Only resolved bindings get pin requests.
	if d.pinCalled != 1 {
		t.Errorf("PinAdd called %d times, want 1", d.pinCalled)
	}
	if len(d.pinned) != 1 || d.pinned[0] != "bafyblog" {
		t.Errorf("pinned = %v, want [bafyblog]", d.pinned)
	}
}

func TestScan_PinFailureNonFatal(t *testing.T) {
	d := &fakeDaemon{
		peers:   []string{"P1"},
		indexes: map[string]string{"P1": `{"ipns": {"blog": "blog-ipns"}}`},
		resolved: map[string]string{
			"blog-ipns": "bafyblog",
		},
		pinErr: map[string]error{"bafyblog": fmt.Errorf("pin service down")},
	}
	s := setupTestStore(t)

	res, err := New(d, s, nil).Scan(context.Background(), Options{Pin: true})
	if err != nil {
		t.Fatalf("pin failure must not fail the scan: %v", err)
	}
	if res.Pinned != 0 {
		t.Errorf("pinned = %d, want 0", res.Pinned)
	}

	// The entry is still discovered and persisted.
	rows, _ := s.ListDiscovered()
	if len(rows) != 2 { // sentinel + blog
		t.Errorf("got %d rows, want 2", len(rows))
	}
}

func TestScan_NoPeers(t *testing.T) {
	s := setupTestStore(t)
	res, err := New(&fakeDaemon{}, s, nil).Scan(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.PeersTotal != 0 || len(res.Peers) != 0 {
		t.Errorf("unexpected result for empty swarm: %+v", res)
	}
}

func TestParseIndex_Strict(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"valid", `{"ipns": {"blog": "blog-ipns"}}`, nil},
		{"not json", `<html>`, ipfs.ErrMalformed},
		{"wrong value type", `{"ipns": {"blog": {"nested": true}}}`, ipfs.ErrMalformed},
		{"array ipns", `{"ipns": ["a"]}`, ipfs.ErrMalformed},
		{"missing ipns", `{"other": {}}`, ipfs.ErrNotFound},
		{"empty ipns", `{"ipns": {}}`, ipfs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bindings, err := ParseIndex(tc.raw)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if bindings["blog"] != "blog-ipns" {
					t.Errorf("bindings = %v", bindings)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}
