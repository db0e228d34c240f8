package atomicwrite

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "keystore.yaml")

	require.NoError(t, WriteFile(p, []byte("v1"), 0o600, false))
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))
	if runtime.GOOS != "windows" {
		st, err := os.Stat(p)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), st.Mode().Perm())
	}

	require.ErrorIs(t, WriteFile(p, []byte("v2"), 0o600, false), ErrExists)
	require.NoError(t, WriteFile(p, []byte("v2"), 0o600, true))
	got, err = os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}
