package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"peerdex/internal/ipfs"
	"peerdex/internal/publish"
)

var (
	publishWorkers int
	publishJSON    bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish all registered directories and the discovery index",
	Long: `Re-adds every registered directory, publishes each under its IPNS key,
then builds a combined index (index.json + index.html) from this round's
successes and publishes it under the node's self identity.`,
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

		eng := publish.New(client, s, logger)
		res, err := eng.PublishAll(ctx, publish.Options{Workers: publishWorkers})
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}

		if publishJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		printPublishHumanReadable(res)
		return nil
	},
}

func init() {
	publishCmd.Flags().IntVar(&publishWorkers, "workers", 0, "Publish pool size (default 4)")
	publishCmd.Flags().BoolVar(&publishJSON, "json", false, "JSON output")
	rootCmd.AddCommand(publishCmd)
}

func printPublishHumanReadable(res *publish.Result) {
	if len(res.Entries) == 0 {
		fmt.Println("No directories registered. Use `peerdex add` first.")
		return
	}

	fmt.Printf("Publishing %d directorie(s)...\n", len(res.Entries))
	for _, e := range res.Entries {
		if e.Error != "" {
			fmt.Printf("  %s: %s\n", e.Key, e.Error)
			continue
		}
		fmt.Printf("  %s: ipns://%s\n", e.Key, e.IPNSName)
		fmt.Printf("  %s: ipfs://%s\n", e.Key, e.CID)
	}

	switch {
	case !res.SelfAttempted:
		fmt.Println("No successful publishes; discovery index skipped.")
	case res.SelfError != "":
		fmt.Printf("Discovery index publish failed: %s\n", res.SelfError)
	default:
		fmt.Println("Discovery index published:")
		if res.SelfIPNSName != "" {
			fmt.Printf("  ipns://%s\n", res.SelfIPNSName)
		}
		fmt.Printf("  ipfs://%s\n", res.SelfCID)
	}
}
