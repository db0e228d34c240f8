// Command oauthctl administra el keystore, los clients y los resource owners.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/store/pg"
	"github.com/dropDatabas3/authcore/internal/util"
)

type globals struct {
	dsn     string
	out     string // text | json
	timeout time.Duration
}

func main() {
	_ = loadEnvFile(".env")

	g := &globals{
		dsn:     os.Getenv("AUTHCORE_STORAGE_DSN"),
		out:     envOr("AUTHCORE_OUT", "text"),
		timeout: 30 * time.Second,
	}

	root := &cobra.Command{
		Use:           "oauthctl",
		Short:         "Administración offline de authcore (keystore, clients, owners)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// el CLI loguea a stderr, sin caller ni colores
			zcfg := zap.NewDevelopmentConfig()
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			zcfg.DisableCaller = true
			zcfg.OutputPaths = []string{"stderr"}
			if l, err := zcfg.Build(); err == nil {
				logger.Replace(l)
			}
			if g.out != "text" && g.out != "json" {
				return fmt.Errorf("--out debe ser text o json")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.dsn, "dsn", g.dsn, "DSN de Postgres (env AUTHCORE_STORAGE_DSN)")
	root.PersistentFlags().StringVar(&g.out, "out", g.out, "Formato de salida: text|json")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", g.timeout, "Timeout por comando")

	root.AddCommand(
		keystoreCmd(g),
		clientCmd(g),
		ownerCmd(g),
		hashCmd(g),
		migrateCmd(g),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// openStore abre el pool; el caller hace Close.
func (g *globals) openStore(ctx context.Context) (*pg.Store, error) {
	if g.dsn == "" {
		return nil, errors.New("falta --dsn (o env AUTHCORE_STORAGE_DSN)")
	}
	st, err := pg.Open(ctx, pg.Config{DSN: g.dsn, MaxConns: 2})
	if err != nil {
		return nil, fmt.Errorf("postgres %s: %w", util.MaskDSN(g.dsn), err)
	}
	return st, nil
}

func (g *globals) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), g.timeout)
}

// printJSON se usa con --out json.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
