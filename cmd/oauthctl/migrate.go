package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL pendientes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()
			st, err := g.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := st.Migrate(ctx)
			if err != nil {
				return err
			}
			if g.out == "json" {
				return printJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied=%v skipped=%d (%s)\n", res.Applied, len(res.Skipped), res.Duration)
			return nil
		},
	}
}
