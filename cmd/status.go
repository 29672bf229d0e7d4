package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"peerdex/internal/ipfs"
	"peerdex/internal/status"
)

var statusJSON bool

var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#8BE9FD"))

	statusSourceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6272A4"))

	statusNameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8F8F2"))

	statusPinnedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#50FA7B"))

	statusUnresolvedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFB86C"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local and discovered entries with live pin state",
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

		view := status.New(client, s, logger)
		entries, err := view.Entries(ctx)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		printStatusHumanReadable(entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "JSON output")
	rootCmd.AddCommand(statusCmd)
}

func printStatusHumanReadable(entries []status.Entry) {
	if len(entries) == 0 {
		fmt.Println("Nothing published or discovered yet. Try `peerdex add` or `peerdex scan`.")
		return
	}

	lastSource := ""
	for _, e := range entries {
		if e.Source != lastSource {
			if lastSource != "" {
				fmt.Println()
			}
			header := "Local keys"
			if e.Source != status.SourceLocal {
				header = "Peer " + e.Source
			}
			fmt.Println(statusTitleStyle.Render(header))
			lastSource = e.Source
		}

		line := "  " + statusNameStyle.Render(e.Name) + "  " + statusSourceStyle.Render("ipns://"+e.IPNSName)
		if e.Path != "" {
			line += "  " + statusSourceStyle.Render(e.Path)
		}
		switch {
		case e.Pinned:
			line += "  " + statusPinnedStyle.Render("[pinned]")
		case e.CID == "":
			line += "  " + statusUnresolvedStyle.Render("[unresolved]")
		}
		fmt.Println(line)
	}
}
