package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Timeout classes. Which one applies is call-site policy, not the
// client's: peer index fetches fail fast, IPNS resolution is DHT-bound
// and gets longer to finish.
const (
	// CatTimeout bounds a content fetch of a peer's advertised index.
	CatTimeout = 5 * time.Second

	// FastCatTimeout replaces CatTimeout when scanning a large swarm,
	// where waiting the full window on every dead peer adds up.
	FastCatTimeout = 2690 * time.Millisecond

	// ResolveTimeout bounds an IPNS name resolution.
	ResolveTimeout = 10 * time.Second

	daemonStartupTimeout = 15 * time.Second
	daemonPollInterval   = time.Second
)

// Client is a stateless facade over the `ipfs` binary. Every operation
// is a single subprocess invocation bounded by the caller's context; no
// call retries internally.
type Client struct {
	bin string
}

func NewClient() *Client {
	return &Client{bin: "ipfs"}
}

// run invokes one ipfs subcommand and returns its trimmed stdout.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)

	var stdout bytes.Buffer
	var stderr cappedBuffer
	stderr.limit = 4 * 1024
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", classifyRunError(ctx, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// classifyRunError maps a subprocess failure onto the facade's error
// taxonomy. Kubo exits nonzero with the reason on stderr, so the first
// stderr line is carried along for operator-facing summaries.
func classifyRunError(ctx context.Context, err error, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: ipfs binary not installed", ErrDaemonUnavailable)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		reason := firstLine(stderr)
		low := strings.ToLower(reason)
		if strings.Contains(low, "connection refused") ||
			strings.Contains(low, "cannot connect") ||
			strings.Contains(low, "api not running") ||
			strings.Contains(low, "daemon is not running") {
			return fmt.Errorf("%w: %s", ErrDaemonUnavailable, reason)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, reason)
	}
	return err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimPrefix(s, "Error: ")
}

// Installed reports whether the ipfs binary is on PATH.
func (c *Client) Installed() bool {
	_, err := exec.LookPath(c.bin)
	return err == nil
}

// DaemonRunning reports whether a daemon is answering API calls.
func (c *Client) DaemonRunning(ctx context.Context) bool {
	_, err := c.run(ctx, "id")
	return err == nil
}

// StartDaemon spawns `ipfs daemon --init` detached and polls until the
// API answers or the startup window closes.
func (c *Client) StartDaemon(ctx context.Context) error {
	cmd := exec.Command(c.bin, "daemon", "--init")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: starting daemon: %s", ErrDaemonUnavailable, err)
	}
	go cmd.Wait() // reap the child when it eventually exits

	deadline := time.After(daemonStartupTimeout)
	ticker := time.NewTicker(daemonPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: daemon failed to start within %s", ErrDaemonUnavailable, daemonStartupTimeout)
		case <-ticker.C:
			pollCtx, cancel := context.WithTimeout(ctx, daemonPollInterval)
			running := c.DaemonRunning(pollCtx)
			cancel()
			if running {
				return nil
			}
		}
	}
}

// NodeID returns the daemon's own peer identity.
func (c *Client) NodeID(ctx context.Context) (string, error) {
	return c.run(ctx, "id", "-f=<id>")
}

// SwarmPeers returns the deduplicated peer IDs of all connected peers.
func (c *Client) SwarmPeers(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "swarm", "peers")
	if err != nil {
		return nil, err
	}
	return parsePeerIDs(out), nil
}

// parsePeerIDs extracts unique peer IDs from `swarm peers` output, one
// multiaddr like /ip4/.../p2p/<peer_id> per line.
func parsePeerIDs(out string) []string {
	seen := make(map[string]bool)
	var peers []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(strings.TrimSpace(line), "/")
		if line == "" {
			continue
		}
		id := line[strings.LastIndexByte(line, '/')+1:]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		peers = append(peers, id)
	}
	return peers
}

// Cat fetches the content behind an IPFS or IPNS path.
func (c *Client) Cat(ctx context.Context, path string) (string, error) {
	return c.run(ctx, "cat", path)
}

// Resolve follows an IPNS name to its current CID, recursively through
// any indirection.
func (c *Client) Resolve(ctx context.Context, name string) (string, error) {
	out, err := c.run(ctx, "name", "resolve", "--recursive", "/ipns/"+name)
	if err != nil {
		return "", err
	}
	// Output is an /ipfs/<cid> path.
	cid := out[strings.LastIndexByte(out, '/')+1:]
	if cid == "" {
		return "", fmt.Errorf("%w: empty resolve result for %s", ErrMalformed, name)
	}
	return cid, nil
}

// KeyList returns {name: key_id} for all IPNS keys on the daemon.
func (c *Client) KeyList(ctx context.Context) (map[string]string, error) {
	out, err := c.run(ctx, "key", "list", "-l")
	if err != nil {
		return nil, err
	}
	return parseKeyList(out), nil
}

// parseKeyList parses `key list -l` output: "<key_id> <name>" per line.
func parseKeyList(out string) map[string]string {
	keys := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			keys[parts[1]] = parts[0]
		}
	}
	return keys
}

// KeyGen creates a new IPNS key and returns its id.
func (c *Client) KeyGen(ctx context.Context, name string) (string, error) {
	return c.run(ctx, "key", "gen", name)
}

// AddDir adds a directory recursively and returns its root CIDv1.
func (c *Client) AddDir(ctx context.Context, dir string) (string, error) {
	return c.run(ctx, "add", "-r", "-Q", "--cid-version=1", "--raw-leaves", dir)
}

// PublishOptions tune a `name publish`. Zero values mean daemon defaults;
// an empty Key publishes under the node's self identity.
type PublishOptions struct {
	Key      string
	Lifetime string
	TTL      string
}

// Publish points an IPNS name at a CID.
func (c *Client) Publish(ctx context.Context, cid string, opts PublishOptions) error {
	args := publishArgs(cid, opts)
	_, err := c.run(ctx, args...)
	return err
}

func publishArgs(cid string, opts PublishOptions) []string {
	args := []string{"name", "publish"}
	if opts.Key != "" {
		args = append(args, "--key="+opts.Key)
	}
	if opts.Lifetime != "" {
		args = append(args, "--lifetime="+opts.Lifetime)
	}
	if opts.TTL != "" {
		args = append(args, "--ttl="+opts.TTL)
	}
	return append(args, "/ipfs/"+cid)
}

// PinAdd pins a CID recursively.
func (c *Client) PinAdd(ctx context.Context, cid string) error {
	_, err := c.run(ctx, "pin", "add", "--recursive=true", cid)
	return err
}

// PinLs returns the set of recursively pinned CIDs.
func (c *Client) PinLs(ctx context.Context) (map[string]bool, error) {
	out, err := c.run(ctx, "pin", "ls", "--type=recursive", "-q")
	if err != nil {
		return nil, err
	}
	pins := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			pins[line] = true
		}
	}
	return pins, nil
}

// cappedBuffer stops retaining bytes after a limit while still accepting
// writes, so a chatty subprocess cannot grow stderr capture unbounded.
type cappedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
	}
	_, err := c.buf.Write(toWrite)
	return len(p), err
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
