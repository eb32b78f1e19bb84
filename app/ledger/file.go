// Package ledger persists the identities of documents that were already notified.
//
// The on-disk format is plain text: one identity per line, sorted ascending,
// newline terminated, no header. Writes go to a synced temporary file in the
// same directory which is then renamed over the ledger, so readers only ever
// see the previous or the next complete ledger.
package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/lysyi3m/docs-notifier/app/docs"
)

type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Load returns the persisted identities. A missing file is a first run and yields an empty set.
func (f *File) Load() (docs.IdentitySet, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return docs.NewIdentitySet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	set := docs.NewIdentitySet()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		set.Add(docs.Identity(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}

	return set, nil
}

// Save atomically replaces the ledger with ids.
func (f *File) Save(ids docs.IdentitySet) error {
	var buf bytes.Buffer
	for _, id := range ids.Sorted() {
		buf.WriteString(string(id))
		buf.WriteByte('\n')
	}

	return f.replace(buf.Bytes())
}

// Reset empties the ledger. It is the only operation that removes identities.
func (f *File) Reset() error {
	return f.replace(nil)
}

func (f *File) replace(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	if err := renameio.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	return nil
}
