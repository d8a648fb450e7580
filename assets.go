package storefront

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// AssetServer serves existing files below a fixed root. The root is
// canonicalized once and never changes afterwards.
type AssetServer struct {
	root    string
	storage FileStorage
}

// NewAssetServer creates an AssetServer for root. storage must be rooted at
// the same directory.
func NewAssetServer(root string, storage FileStorage) (*AssetServer, error) {
	canonical, err := CanonicalRoot(root)
	if err != nil {
		return nil, fmt.Errorf("new asset server: %w", err)
	}
	return &AssetServer{root: canonical, storage: storage}, nil
}

// Root returns the canonical asset root.
func (s *AssetServer) Root() string {
	return s.root
}

// Open resolves requestPath and opens the file it names.
//
// Returns:
//   - Asset: the open file; the caller must close Asset.Content
//   - error: ErrPathRejected if the path escapes the root or is malformed,
//     ErrNotFound if it is the root itself, a directory, or absent
func (s *AssetServer) Open(ctx context.Context, requestPath string) (Asset, error) {
	resolved, isRoot, err := resolve(s.root, requestPath)
	if err != nil {
		return Asset{}, err
	}
	if isRoot {
		return Asset{}, ErrNotFound
	}

	rel, err := filepath.Rel(s.root, resolved)
	if err != nil {
		return Asset{}, fmt.Errorf("open asset: %w: %w", ErrPathRejected, err)
	}
	rel = filepath.ToSlash(rel)

	f, info, err := s.storage.Open(ctx, rel)
	if err != nil {
		return Asset{}, err
	}

	if info.IsDir() {
		closeQuietly(f, rel)
		return Asset{}, ErrNotFound
	}

	contentType, err := contentTypeOf(rel, f)
	if err != nil {
		closeQuietly(f, rel)
		return Asset{}, fmt.Errorf("open asset: %w", err)
	}

	return Asset{
		Name:        path.Base(rel),
		ContentType: contentType,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Content:     f,
	}, nil
}

// contentTypeOf prefers the extension and falls back to sniffing the
// content, leaving f positioned at the start.
func contentTypeOf(name string, f io.ReadSeeker) (string, error) {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct, nil
	}

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind: %w", err)
	}
	return detected.String(), nil
}

func closeQuietly(c io.Closer, name string) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close asset", "path", name, "err", err)
	}
}
