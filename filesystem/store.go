// Package filesystem provides the file system storage backend for the
// storefront asset tree. Every operation goes through an os.Root, so a path
// can never reach outside the asset root, not even through a symlink.
// Writes land in a temp file first and are renamed into place on success.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/storefront"
)

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Open opens a file for reading together with its metadata.
func (s *Store) Open(ctx context.Context, name string) (io.ReadSeekCloser, fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f, err := s.root.Open(cleanName(name))
	if err != nil {
		return nil, nil, mapError("open file", err)
	}

	info, err := f.Stat()
	if err != nil {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "path", name, "err", closeErr)
		}
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}

	return f, info, nil
}

// Stat returns file information. Returns storefront.ErrNotFound if the file does not exist.
func (s *Store) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := s.root.Stat(cleanName(name))
	if err != nil {
		return nil, mapError("stat file", err)
	}
	return info, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically writes content to the given path using a temp file and rename.
// It creates intermediate directories as needed and respects context cancellation.
func (s *Store) Write(ctx context.Context, name string, content io.Reader) (storefront.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return storefront.SaveResult{}, ctxErr
	}

	name = cleanName(name)
	if err := s.ensureParent(name); err != nil {
		return storefront.SaveResult{}, err
	}

	tmpFile := path.Join(path.Dir(name), tmpFileName())
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return storefront.SaveResult{}, mapError("could not open temp file", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	n, err := io.Copy(t, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return storefront.SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return storefront.SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, name); renameErr != nil {
		return storefront.SaveResult{}, mapError("failed to rename file", renameErr)
	}

	success = true

	return storefront.SaveResult{BytesWritten: n}, nil
}

// Move renames src to dst. If the rename fails for a reason other than a
// missing source, the file is copied to dst and src is removed.
func (s *Store) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, dst = cleanName(src), cleanName(dst)

	if _, err := s.root.Lstat(src); err != nil {
		return mapError("move file", err)
	}

	if err := s.ensureParent(dst); err != nil {
		return err
	}

	renameErr := s.root.Rename(src, dst)
	if renameErr == nil {
		return nil
	}
	if errors.Is(renameErr, os.ErrNotExist) {
		return storefront.ErrNotFound
	}
	if isEscape(renameErr) {
		return fmt.Errorf("move file: %w", storefront.ErrPathRejected)
	}

	slog.Debug("rename failed, copying instead", "src", src, "dst", dst, "err", renameErr)

	f, err := s.root.Open(src)
	if err != nil {
		return mapError("move file", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "path", src, "err", closeErr)
		}
	}()

	if _, err := s.Write(ctx, dst, f); err != nil {
		return fmt.Errorf("move file: copy: %w", err)
	}

	if err := s.root.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("move file: remove source: %w", err)
	}

	return nil
}

// Delete removes a file. Returns storefront.ErrNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(cleanName(name)); err != nil {
		return mapError("could not delete file", err)
	}
	return nil
}

// EnsureDir creates the directory and any missing parents.
func (s *Store) EnsureDir(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.MkdirAll(cleanName(name), 0o755); err != nil {
		return mapError("create directory", err)
	}
	return nil
}

func (s *Store) ensureParent(name string) error {
	dir := path.Dir(name)
	if dir == "." {
		return nil
	}
	if err := s.root.MkdirAll(dir, 0o755); err != nil {
		return mapError("could not create intermediate directories", err)
	}
	return nil
}

// cleanName turns a slash path relative to the root into the form os.Root expects.
func cleanName(name string) string {
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if name == "" {
		return "."
	}
	return name
}

func mapError(op string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return storefront.ErrNotFound
	case isEscape(err):
		return fmt.Errorf("%s: %w", op, storefront.ErrPathRejected)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// isEscape reports whether os.Root refused a path that resolves outside the root.
func isEscape(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		err = linkErr.Err
	}
	return strings.Contains(err.Error(), "path escapes from parent")
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
