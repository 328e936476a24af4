package cli

import (
	"context"
	"errors"
	"fmt"

	"taskelio/internal/store"

	"github.com/spf13/cobra"
)

var (
	seedOwner string
	seedForce bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the predefined automation catalog for an owner",
	Long: `Inserts the predefined automations the owner is missing. With --force the
owner's predefined rows are replaced by the current catalog and edits are lost.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedOwner == "" {
			return errors.New("--owner is required")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		scope, err := store.ForOwner(a.db, seedOwner)
		if err != nil {
			return err
		}
		ctx := context.Background()
		var n int
		if seedForce {
			n, err = a.automations.ReseedPredefined(ctx, scope)
		} else {
			n, err = a.automations.SeedPredefined(ctx, scope)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d predefined automations installed for %s\n", n, seedOwner)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOwner, "owner", "", "owner (profile) id")
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "replace existing predefined automations")
	rootCmd.AddCommand(seedCmd)
}
