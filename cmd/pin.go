package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"peerdex/internal/ipfs"
	"peerdex/internal/store"
)

var pinCmd = &cobra.Command{
	Use:   "pin <name>",
	Short: "Pin a discovered entry by display name or IPNS name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ref := args[0]

		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		client := ipfs.NewClient()
		if err := EnsureDaemon(ctx, client); err != nil {
			return err
		}

		entry, err := findDiscovered(s, ref)
		if err != nil {
			return err
		}

		cid, err := entryCID(ctx, client, entry)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", ref, err)
		}

		fmt.Printf("Pinning ipfs://%s...\n", cid)
		if err := client.PinAdd(ctx, cid); err != nil {
			return fmt.Errorf("pinning: %w", err)
		}
		fmt.Printf("%s: pinned\n", displayName(entry))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pinCmd)
}

// findDiscovered locates one content entry by display name or IPNS name.
func findDiscovered(s *store.Store, ref string) (store.Discovered, error) {
	rows, err := s.ListDiscovered()
	if err != nil {
		return store.Discovered{}, err
	}

	var matches []store.Discovered
	for _, r := range rows {
		if r.IsIndex() {
			continue
		}
		if r.Binding == ref || *r.Name == ref {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return store.Discovered{}, fmt.Errorf("no discovered entry matches %q (run `peerdex scan` first)", ref)
	default:
		msg := fmt.Sprintf("ambiguous reference %q. %d matches:\n", ref, len(matches))
		for _, m := range matches {
			msg += fmt.Sprintf("  %s from peer %s (ipns://%s)\n", *m.Name, m.NodeID, m.Binding)
		}
		msg += "Use the IPNS name instead."
		return store.Discovered{}, fmt.Errorf("%s", msg)
	}
}

func entryCID(ctx context.Context, client *ipfs.Client, entry store.Discovered) (string, error) {
	if entry.CID != nil && *entry.CID != "" {
		return *entry.CID, nil
	}
	rctx, cancel := context.WithTimeout(ctx, ipfs.ResolveTimeout)
	defer cancel()
	return client.Resolve(rctx, entry.Binding)
}

func displayName(entry store.Discovered) string {
	if entry.Name != nil {
		return *entry.Name
	}
	return "(index)"
}
