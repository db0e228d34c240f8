package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/config"
	"github.com/dropDatabas3/authcore/internal/keys"
)

func keystoreConfig(path, storePass string) *config.Config {
	cfg := &config.Config{}
	cfg.Keystore.Path = path
	cfg.Keystore.StorePassword = storePass
	cfg.Keystore.Alias = "auth-signing"
	return cfg
}

func TestRun_KeystoreErrorIsReturned(t *testing.T) {
	cfg := keystoreConfig(filepath.Join(t.TempDir(), "missing.json"), "pw")

	err := run(context.Background(), cfg)
	require.ErrorIs(t, err, keys.ErrKeyLoad)
	require.Contains(t, err.Error(), "keystore")
}

func TestLoadSigningKey(t *testing.T) {
	data, err := keys.Generate(nil, keys.GenerateOptions{Alias: "auth-signing", Alg: "EdDSA", StorePassword: "pw", KDFLogN: 10})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	mat, err := loadSigningKey(keystoreConfig(path, "pw"))
	require.NoError(t, err)
	require.Equal(t, "EdDSA", mat.Algorithm())

	_, err = loadSigningKey(keystoreConfig(path, "wrong"))
	require.ErrorIs(t, err, keys.ErrKeyLoad)
	require.NotContains(t, err.Error(), "wrong")
}
