package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewReconcileCommand creates the reconcile command, which re-drives
// fulfillment for paid orders that are missing tickets or deliveries.
func NewReconcileCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Issue and deliver tickets still owed on paid orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("invalid --limit %d: must be positive", limit)
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sum, err := a.engine.Reconcile(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "orders=%d complete=%d incomplete=%d\n", sum.Orders, sum.Complete, sum.Incomplete)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of orders to process")
	return cmd
}
