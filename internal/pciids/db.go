// Package pciids reads the pci.ids hardware database and resolves PCI
// vendor and product identifiers to human-readable names.
package pciids

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// ErrNotFound means none of the candidate database files exist.
var ErrNotFound = errors.New("pciids: no database file found")

// DefaultPaths lists where distributions commonly install pci.ids.
var DefaultPaths = []string{
	"/usr/share/hwdata/pci.ids",
	"/usr/share/misc/pci.ids",
	"/usr/share/pci.ids",
}

// DB is an in-memory pci.ids database. A nil *DB is valid and resolves
// every lookup to the empty string.
type DB struct {
	vendors  map[uint16]string
	products map[uint32]string
}

// Load parses the first existing file from paths. It returns
// ErrNotFound when no path exists.
func Load(paths ...string) (*DB, error) {
	for _, path := range paths {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		db, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return db, nil
	}
	return nil, ErrNotFound
}

// Parse reads a pci.ids stream. Vendor lines start in column zero,
// device lines are indented one tab, subsystem lines two tabs. The
// trailing device class section is ignored.
func Parse(r io.Reader) (*DB, error) {
	db := &DB{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
	}

	var (
		vendor     uint16
		haveVendor bool
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// The class section ("C xx  name") ends the vendor list.
		if strings.HasPrefix(line, "C ") {
			break
		}
		// Subsystem entries are not needed for device naming.
		if strings.HasPrefix(line, "\t\t") {
			continue
		}
		if strings.HasPrefix(line, "\t") {
			if !haveVendor {
				continue
			}
			if id, name, ok := splitIDName(line[1:]); ok {
				db.products[productKey(vendor, id)] = name
			}
			continue
		}
		if id, name, ok := splitIDName(line); ok {
			vendor = id
			haveVendor = true
			db.vendors[vendor] = name
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return db, nil
}

// splitIDName splits "8086  Intel Corporation" into its parts.
func splitIDName(s string) (uint16, string, bool) {
	parts := strings.SplitN(s, "  ", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 16, 16)
	if err != nil {
		return 0, "", false
	}
	name := strings.TrimSpace(parts[1])
	if name == "" {
		return 0, "", false
	}
	return uint16(id), name, true
}

func productKey(vendor, product uint16) uint32 {
	return uint32(vendor)<<16 | uint32(product)
}

// VendorName returns the name registered for a vendor identifier, or
// "" when unknown.
func (db *DB) VendorName(vendor uint16) string {
	if db == nil {
		return ""
	}
	return db.vendors[vendor]
}

// ProductName returns the name registered for a vendor and product
// identifier pair, or "" when unknown.
func (db *DB) ProductName(vendor, product uint16) string {
	if db == nil {
		return ""
	}
	return db.products[productKey(vendor, product)]
}

// Vendors returns the number of known vendors.
func (db *DB) Vendors() int {
	if db == nil {
		return 0
	}
	return len(db.vendors)
}

// Products returns the number of known products.
func (db *DB) Products() int {
	if db == nil {
		return 0
	}
	return len(db.products)
}
