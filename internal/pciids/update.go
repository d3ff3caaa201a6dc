package pciids

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultURL serves the upstream pci.ids database.
const DefaultURL = "https://pci-ids.ucw.cz/v2.2/pci.ids"

// Update downloads a fresh pci.ids from url into dest. The download
// lands in a temporary file and must parse as a non-empty database
// before it replaces dest, so a bad download never clobbers a good
// copy.
func Update(ctx context.Context, url, dest string, timeout time.Duration) error {
	client := retryablehttp.NewClient()
	client.Logger = nil
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}

	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pci.ids.*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := validateDatabase(tmp.Name()); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func validateDatabase(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	db, err := Parse(f)
	if err != nil {
		return fmt.Errorf("parse downloaded database: %w", err)
	}
	if db.Vendors() == 0 {
		return fmt.Errorf("downloaded database contains no vendors")
	}
	return nil
}
