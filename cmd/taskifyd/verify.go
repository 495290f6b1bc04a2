package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"taskify/internal/config"
	"taskify/internal/export"
	"taskify/internal/store"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the dataset against the assignment invariant",
	Long: `Verify scans every user and task and reports each association the
two sides disagree on. It exits non-zero when the dataset is inconsistent.`,
	Args: cobra.NoArgs,
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

		violations, err := export.NewExporter(st, nil).Verify(ctx)
		if err != nil {
			return err
		}
		if len(violations) == 0 {
			fmt.Println("dataset consistent")
			return nil
		}
		for _, v := range violations {
			fmt.Println(v.String())
		}
		return fmt.Errorf("found %d invariant violation(s)", len(violations))
	},
}
