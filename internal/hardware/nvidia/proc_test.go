package nvidia

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procVersionClosed = `NVRM version: NVIDIA UNIX x86_64 Kernel Module  550.54.14  Thu Feb 22 01:44:30 UTC 2024
GCC version:  gcc version 13.2.1 20230801 (GCC)
`

const procVersionOpen = `NVRM version: NVIDIA UNIX Open Kernel Module for x86_64  575.64.03  Release Build  (builder@host)
GCC version:
`

func TestParseProcDriverVersion(t *testing.T) {
	t.Run("proprietary module", func(t *testing.T) {
		version, err := parseProcDriverVersion(strings.NewReader(procVersionClosed))
		require.NoError(t, err)
		assert.Equal(t, "550.54.14", version)
	})

	t.Run("open kernel module", func(t *testing.T) {
		version, err := parseProcDriverVersion(strings.NewReader(procVersionOpen))
		require.NoError(t, err)
		assert.Equal(t, "575.64.03", version)
	})

	t.Run("missing NVRM line", func(t *testing.T) {
		_, err := parseProcDriverVersion(strings.NewReader("GCC version: gcc 13\n"))
		require.Error(t, err)
	})

	t.Run("NVRM line without version", func(t *testing.T) {
		_, err := parseProcDriverVersion(strings.NewReader("NVRM version: NVIDIA UNIX Kernel Module\n"))
		require.Error(t, err)
	})
}

func TestProbeProc(t *testing.T) {
	t.Run("driver loaded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "version")
		require.NoError(t, os.WriteFile(path, []byte(procVersionClosed), 0o644))

		info, err := probeProc(path)
		require.NoError(t, err)
		assert.True(t, info.Loaded)
		assert.Equal(t, "550.54.14", info.DriverVersion)
		assert.Equal(t, "proc", info.Source)
	})

	t.Run("driver not loaded", func(t *testing.T) {
		info, err := probeProc(filepath.Join(t.TempDir(), "version"))
		require.NoError(t, err)
		assert.False(t, info.Loaded)
		assert.Empty(t, info.DriverVersion)
	})
}
