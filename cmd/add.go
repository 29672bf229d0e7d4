package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"peerdex/internal/ipfs"
)

var addKeyName string

var addCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Register a directory and publish it under an IPNS key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if fi, err := os.Stat(absPath); err != nil || !fi.IsDir() {
			return fmt.Errorf("not a directory: %s", absPath)
		}

		keyName := addKeyName
		if keyName == "" {
			keyName = filepath.Base(absPath)
		}
		if keyName == "" || keyName == "self" {
			return fmt.Errorf("cannot use %q as a key name", keyName)
		}

		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		client := ipfs.NewClient()
		if err := EnsureDaemon(ctx, client); err != nil {
			return err
		}

		keys, err := client.KeyList(ctx)
		if err != nil {
			return fmt.Errorf("listing keys: %w", err)
		}
		if _, ok := keys[keyName]; !ok {
			fmt.Printf("Creating IPNS key: %s\n", keyName)
			if _, err := client.KeyGen(ctx, keyName); err != nil {
				return fmt.Errorf("generating key %q: %w", keyName, err)
			}
		}

		fmt.Printf("Adding %s to IPFS...\n", absPath)
		cid, err := client.AddDir(ctx, absPath)
		if err != nil {
			return fmt.Errorf("adding directory: %w", err)
		}
		fmt.Printf("CID: %s\n", cid)
		fmt.Printf("ipfs://%s\n", cid)

		fmt.Printf("Publishing under IPNS key: %s...\n", keyName)
		if err := client.Publish(ctx, cid, ipfs.PublishOptions{Key: keyName, TTL: "1m"}); err != nil {
			return fmt.Errorf("publishing: %w", err)
		}

		if err := s.UpsertPublished(absPath, keyName); err != nil {
			return fmt.Errorf("registering directory: %w", err)
		}

		keys, err = client.KeyList(ctx)
		if err == nil {
			fmt.Printf("ipns://%s\n", keys[keyName])
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addKeyName, "key", "", "IPNS key name (default: directory basename)")
	rootCmd.AddCommand(addCmd)
}
