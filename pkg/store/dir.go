package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// DirSink writes each payload to a file under a root directory
type DirSink struct {
	root     string
	compress bool
}

// NewDirSink creates the root directory if needed. With compress set,
// payloads are written xz-compressed to {id}.xz.
func NewDirSink(root string, compress bool) (*DirSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &DirSink{root: root, compress: compress}, nil
}

// Path is the file a payload with the given id is written to
func (s *DirSink) Path(id string) (string, error) {
	clean, err := cleanID(id)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(clean))
	if s.compress {
		p += ".xz"
	}
	return p, nil
}

// Store writes the payload, replacing an earlier one with the same id
func (s *DirSink) Store(ctx context.Context, id string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", id, err)
	}

	data := payload
	if s.compress {
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("create xz writer: %w", err)
		}
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("compress %s: %w", id, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("compress %s: %w", id, err)
		}
		data = buf.Bytes()
	}

	// Write to a temporary file first so readers never see a partial payload
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

// Fetch reads a payload back
func (s *DirSink) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !s.compress {
		return data, nil
	}

	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", id, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", id, err)
	}
	return out, nil
}

// Close is a no-op
func (s *DirSink) Close() error { return nil }
