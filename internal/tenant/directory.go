// Package tenant resolves tenant user-agent keys and per-tenant databases.
package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// Entry maps an opaque XPUAKey to a platform and its credential bundle.
type Entry struct {
	XPUAKey    string          `json:"XPUAKey"`
	AIPlatform string          `json:"AIPlatform"`
	XPUAProps  json.RawMessage `json:"XPUAProps"`
}

// Directory is an in-memory index of tenant entries. Reload swaps the
// whole index so concurrent lookups never see a partial load.
type Directory struct {
	path  string
	index atomic.Pointer[map[string]Entry]
}

// LoadDirectory reads the JSON array at path.
func LoadDirectory(path string) (*Directory, error) {
	d := &Directory{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewDirectory builds a Directory from entries.
func NewDirectory(entries []Entry) (*Directory, error) {
	idx, err := buildIndex(entries)
	if err != nil {
		return nil, err
	}
	d := &Directory{}
	d.index.Store(&idx)
	return d, nil
}

// Reload re-reads the backing file. On error the previous index is kept.
func (d *Directory) Reload() error {
	if d.path == "" {
		return errors.New("directory has no backing file")
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("read tenant directory: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse tenant directory: %w", err)
	}

	idx, err := buildIndex(entries)
	if err != nil {
		return err
	}
	d.index.Store(&idx)
	return nil
}

func buildIndex(entries []Entry) (map[string]Entry, error) {
	idx := make(map[string]Entry, len(entries))
	for i, e := range entries {
		key := strings.TrimSpace(e.XPUAKey)
		if key == "" {
			return nil, fmt.Errorf("tenant entry %d: empty XPUAKey", i)
		}
		if _, dup := idx[key]; dup {
			return nil, fmt.Errorf("tenant entry %d: duplicate XPUAKey %q", i, key)
		}
		idx[key] = e
	}
	return idx, nil
}

// Resolve looks up key.
func (d *Directory) Resolve(key string) (Entry, bool) {
	idx := d.index.Load()
	if idx == nil {
		return Entry{}, false
	}
	e, ok := (*idx)[key]
	return e, ok
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	idx := d.index.Load()
	if idx == nil {
		return 0
	}
	return len(*idx)
}
