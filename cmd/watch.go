package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"peerdex/internal/discover"
	"peerdex/internal/ipfs"
	"peerdex/internal/publish"
	"peerdex/internal/store"
)

var (
	watchInterval time.Duration
	watchPin      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically publish and rescan until interrupted",
	Long: `Runs a publish and a scan round immediately, then repeats on the given
interval. Name records carry a short lifetime, so frequent re-publication
is what keeps them alive. Stop with Ctrl-C; the round in flight is
canceled and already-committed results are kept.`,
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

		fmt.Fprintf(os.Stderr, "[watch] Starting: interval=%s pin=%v\n", watchInterval, watchPin)

		runRound(ctx, client, s, logger)

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(os.Stderr, "[watch] Stopped.")
				return nil
			case <-ticker.C:
				runRound(ctx, client, s, logger)
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "Time between rounds")
	watchCmd.Flags().BoolVar(&watchPin, "pin", false, "Pin discovered content")
	rootCmd.AddCommand(watchCmd)
}

// runRound does one publish+scan pass. Failures are reported and the
// loop keeps going; the next tick gets a fresh chance.
func runRound(ctx context.Context, client *ipfs.Client, s *store.Store, logger *zap.Logger) {
	start := time.Now()

	pubRes, err := publish.New(client, s, logger).PublishAll(ctx, publish.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[watch] Publish failed: %s\n", err)
	} else if len(pubRes.Entries) > 0 {
		fmt.Fprintf(os.Stderr, "[watch] Published %d/%d directorie(s)\n",
			pubRes.Succeeded(), len(pubRes.Entries))
	}

	if ctx.Err() != nil {
		return
	}

	scanRes, err := discover.New(client, s, logger).Scan(ctx, discover.Options{Pin: watchPin})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[watch] Scan failed: %s\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "[watch] Scanned %d/%d peer(s): %d binding(s), %d resolved (%s)\n",
		scanRes.PeersAnswered, scanRes.PeersTotal,
		scanRes.Bindings, scanRes.Resolved,
		time.Since(start).Round(time.Millisecond))
}
