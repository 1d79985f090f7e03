// Package media stores uploaded book assets (covers, PDFs, audio) on local
// disk, keyed by opaque identifiers. Metadata about each file lives in the
// assets collection; this package only moves bytes.
package media

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"candil-egov/internal/apperr"
)

type Store struct {
	root     string
	maxBytes int64
}

// NewStore creates the root directory if needed. maxBytes caps the size of a
// single saved file.
func NewStore(root string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to create media directory")
	}
	return &Store{root: root, maxBytes: maxBytes}, nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", apperr.New(apperr.CodeInvalid, "invalid asset key")
	}
	return filepath.Join(s.root, key), nil
}

// Save streams r to disk under key and returns the number of bytes written.
// A reader longer than maxBytes aborts the write and leaves nothing behind.
func (s *Store) Save(key string, r io.Reader) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return 0, apperr.New(apperr.CodeConflict, "asset already exists")
		}
		return 0, apperr.Wrap(err, apperr.CodeInternal, "failed to create asset file")
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(p)
		return 0, apperr.Wrap(err, apperr.CodeInternal, "failed to write asset file")
	}
	if n > s.maxBytes {
		os.Remove(p)
		return 0, apperr.New(apperr.CodeInvalid, "file exceeds maximum upload size")
	}
	return n, nil
}

// Open returns the file and its stat info so callers can serve range
// requests. The caller closes the file.
func (s *Store) Open(key string) (*os.File, os.FileInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperr.New(apperr.CodeNotFound, "asset file not found")
		}
		return nil, nil, apperr.Wrap(err, apperr.CodeInternal, "failed to open asset file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, apperr.Wrap(err, apperr.CodeInternal, "failed to stat asset file")
	}
	return f, info, nil
}

func (s *Store) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return apperr.New(apperr.CodeNotFound, "asset file not found")
		}
		return apperr.Wrap(err, apperr.CodeInternal, "failed to remove asset file")
	}
	return nil
}
