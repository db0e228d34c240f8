package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authcore/internal/security/password"
)

func hashCmd(_ *globals) *cobra.Command {
	var (
		alg   string
		plain string
	)
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hashea un secret/password en formato {id}encoded (para owners.users del config)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := hasherFor(alg)
			if err != nil {
				return err
			}
			s, err := readSecret(cmd, plain, "secret")
			if err != nil {
				return err
			}
			out, err := h.Hash(s)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "argon2id", "Algoritmo: argon2id|bcrypt|scrypt|pbkdf2-sha256")
	cmd.Flags().StringVar(&plain, "value", "", "Valor en plano (vacío = prompt/stdin)")
	return cmd
}

func hasherFor(alg string) (*password.Hasher, error) {
	switch strings.ToLower(alg) {
	case "argon2id", "":
		return password.Default(), nil
	case "bcrypt":
		return password.NewHasher(password.Bcrypt(12))
	case "scrypt":
		return password.NewHasher(password.Scrypt())
	case "pbkdf2-sha256":
		return password.NewHasher(password.PBKDF2SHA256(600_000))
	default:
		return nil, fmt.Errorf("algoritmo %q no soportado", alg)
	}
}
