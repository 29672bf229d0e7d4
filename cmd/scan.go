package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"peerdex/internal/discover"
	"peerdex/internal/ipfs"
)

var (
	scanPin            bool
	scanFetchWorkers   int
	scanResolveWorkers int
	scanCatTimeout     time.Duration
	scanResolveTimeout time.Duration
	scanJSON           bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover content published by connected IPFS peers",
	Long: `Fetches the published index of every connected swarm peer, resolves the
advertised IPNS names, and reconciles the results into the local catalog.

Tip: Enable IPNS-over-PubSub on both nodes for near-instant discovery:

    ipfs daemon --enable-namesys-pubsub`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		client := ipfs.NewClient()
		if err := EnsureDaemon(ctx, client); err != nil {
			return err
		}

		logger := NewLogger()
		defer logger.Sync()

		eng := discover.New(client, s, logger)
		res, err := eng.Scan(ctx, discover.Options{
			Pin:            scanPin,
			FetchWorkers:   scanFetchWorkers,
			ResolveWorkers: scanResolveWorkers,
			CatTimeout:     scanCatTimeout,
			ResolveTimeout: scanResolveTimeout,
		})
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if scanJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		printScanHumanReadable(res)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanPin, "pin", false, "Pin discovered content")
	scanCmd.Flags().IntVar(&scanFetchWorkers, "fetch-workers", 0, "Peer index fetch pool size (default 20)")
	scanCmd.Flags().IntVar(&scanResolveWorkers, "resolve-workers", 0, "IPNS resolve pool size (default 10)")
	scanCmd.Flags().DurationVar(&scanCatTimeout, "cat-timeout", 0, "Per-peer index fetch timeout (default adaptive)")
	scanCmd.Flags().DurationVar(&scanResolveTimeout, "resolve-timeout", 0, "Per-binding resolve timeout (default 10s)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "JSON output")
	rootCmd.AddCommand(scanCmd)
}

func printScanHumanReadable(res *discover.Result) {
	if res.PeersTotal == 0 {
		fmt.Println("No peers found.")
		return
	}
	fmt.Printf("Found %d peer(s). Scanning for published indexes...\n\n", res.PeersTotal)

	for _, p := range res.Peers {
		fmt.Printf("Peer Index: ipns://%s\n", p.PeerID)
		for _, e := range p.Entries {
			if e.CID != nil {
				fmt.Printf("  %s (IPNS): ipns://%s\n", e.Name, e.IPNSName)
				fmt.Printf("  %s (IPFS): ipfs://%s\n", e.Name, *e.CID)
				if e.Pinned {
					fmt.Printf("  %s: pinned\n", e.Name)
				}
			} else {
				fmt.Printf("  %s: unresolved... (ipns://%s)\n", e.Name, e.IPNSName)
			}
		}
		fmt.Println()
	}

	fmt.Printf("Discovered %d of %d peer(s): %d binding(s), %d resolved.\n",
		res.PeersAnswered, res.PeersTotal, res.Bindings, res.Resolved)

	if len(res.PeerFailures) > 0 {
		peers := make([]string, 0, len(res.PeerFailures))
		for pid := range res.PeerFailures {
			peers = append(peers, pid)
		}
		sort.Strings(peers)
		fmt.Printf("%d peer(s) failed:\n", len(peers))
		for _, pid := range peers {
			fmt.Printf("  %s: %s\n", pid, res.PeerFailures[pid])
		}
	}
}
