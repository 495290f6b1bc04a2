package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"taskify/internal/blob"
	"taskify/internal/config"
	"taskify/internal/export"
	"taskify/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a dataset snapshot to the configured blob store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx := cmd.Context()
		st, err := store.Open(ctx, storeOptions(cfg))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close(context.Background())

		blobs, err := blob.Open(ctx, blobConfig(cfg))
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}

		info, err := export.NewExporter(st, blobs).Export(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d bytes)\n", info.Key, info.Size)
		return nil
	},
}
