package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authcore/internal/keys"
	"github.com/dropDatabas3/authcore/internal/util/atomicwrite"
)

func keystoreCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "keystore", Short: "Keystore de claves de firma"}

	var (
		file, alias, alg, keyPassword string
		storePassword                 = os.Getenv("AUTHCORE_KEYSTORE_STORE_PASSWORD")
	)

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Genera un par de claves y lo agrega al keystore (lo crea si no existe)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" || storePassword == "" {
				return errors.New("--file y --store-password son requeridos")
			}
			existing, err := os.ReadFile(file)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				existing = nil
			}
			out, err := keys.Generate(existing, keys.GenerateOptions{
				Alias:         alias,
				Alg:           alg,
				StorePassword: storePassword,
				KeyPassword:   keyPassword,
			})
			if err != nil {
				return err
			}
			// el keystore previo ya está incluido en out
			if err := atomicwrite.WriteFile(file, out, 0o600, true); err != nil {
				return err
			}

			// se relee para confirmar que las passwords abren la clave
			m, err := keys.Load(keys.KeyStoreSource{Data: out, StorePassword: storePassword, Alias: alias, KeyPassword: keyPassword})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alias=%s alg=%s kid=%s -> %s (%s)\n",
				m.Alias(), m.Algorithm(), m.KeyID(), file, humanize.Bytes(uint64(len(out))))
			return nil
		},
	}
	generate.Flags().StringVar(&file, "file", "keystore.yaml", "Ruta del keystore")
	generate.Flags().StringVar(&alias, "alias", "auth-signing", "Alias de la entrada")
	generate.Flags().StringVar(&alg, "alg", "RS256", "Algoritmo: RS256|ES256|EdDSA")
	generate.Flags().StringVar(&storePassword, "store-password", storePassword, "Password del keystore (env AUTHCORE_KEYSTORE_STORE_PASSWORD)")
	generate.Flags().StringVar(&keyPassword, "key-password", os.Getenv("AUTHCORE_KEYSTORE_KEY_PASSWORD"), "Password de la clave (vacío = store password)")

	var inspectFile string
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Lista las entradas del keystore (no requiere passwords)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(inspectFile)
			if err != nil {
				return err
			}
			entries, err := keys.Inspect(data)
			if err != nil {
				return err
			}
			if g.out == "json" {
				return printJSON(cmd, entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ALIAS\tALG\tKID\tCREATED")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Alias, e.Alg, e.KID, humanize.Time(e.CreatedAt))
			}
			return tw.Flush()
		},
	}
	inspect.Flags().StringVar(&inspectFile, "file", "keystore.yaml", "Ruta del keystore")

	cmd.AddCommand(generate, inspect)
	return cmd
}
