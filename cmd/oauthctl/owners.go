package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/security/password"
)

func ownerCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "owner", Short: "Resource owners en Postgres"}

	var pw string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Crea un resource owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := readSecret(cmd, pw, "password")
			if err != nil {
				return err
			}
			if plain == "" {
				return errors.New("password vacía")
			}
			hash, err := password.Default().Hash(plain)
			if err != nil {
				return err
			}

			ctx, cancel := g.context(cmd)
			defer cancel()
			st, err := g.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			o, err := st.Owners().CreateOwner(ctx, args[0], hash)
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("owner %q ya existe", args[0])
			}
			if err != nil {
				return err
			}
			if g.out == "json" {
				return printJSON(cmd, map[string]any{"id": o.ID, "username": o.Username, "created_at": o.CreatedAt})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "owner %s id=%s (%s)\n", o.Username, o.ID, humanize.Time(o.CreatedAt))
			return nil
		},
	}
	add.Flags().StringVar(&pw, "password", "", "Password en plano (vacío = prompt/stdin)")

	setDisabled := func(use, short string, disabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <username>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := g.context(cmd)
				defer cancel()
				st, err := g.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Owners().SetOwnerDisabled(ctx, args[0], disabled); err != nil {
					if domain.IsNotFound(err) {
						return fmt.Errorf("owner %q no existe", args[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: disabled=%t\n", args[0], disabled)
				return nil
			},
		}
	}

	cmd.AddCommand(add,
		setDisabled("disable", "Deshabilita un owner", true),
		setDisabled("enable", "Habilita un owner", false),
	)
	return cmd
}
