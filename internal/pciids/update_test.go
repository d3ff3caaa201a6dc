package pciids

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleIDs))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "cache", "pci.ids")
	require.NoError(t, Update(context.Background(), srv.URL, dest, 5*time.Second))

	db, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, "NVIDIA Corporation", db.VendorName(0x10de))
}

func TestUpdateBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "pci.ids")
	err := Update(context.Background(), srv.URL, dest, 5*time.Second)
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestUpdateKeepsGoodCopyOnBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a pci.ids database\n"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "pci.ids")
	require.NoError(t, os.WriteFile(dest, []byte(sampleIDs), 0o644))

	err := Update(context.Background(), srv.URL, dest, 5*time.Second)
	require.Error(t, err)

	db, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, "Intel Corporation", db.VendorName(0x8086), "existing database must survive a bad download")
}
