package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <dir>",
	Short: "Stop publishing a registered directory",
	Long: `Removes the directory from the publication catalog. The IPNS key and any
already-published records are left alone; the name simply stops being
refreshed and expires on its own.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ok, err := s.DeletePublished(absPath)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("not registered: %s", absPath)
		}
		fmt.Printf("Removed %s\n", absPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
