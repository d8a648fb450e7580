package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// AssetPromoter moves staged uploads from the temporary subtree into the
// permanent one. Promotion is idempotent: promoting a file that already
// sits in the permanent subtree succeeds.
type AssetPromoter struct {
	storage FileStorage
	tempDir string
	permDir string
}

// NewAssetPromoter creates the promoter and the permanent directory.
// Both directories are relative to the asset root and must differ.
func NewAssetPromoter(ctx context.Context, storage FileStorage, tempDir, permDir string) (*AssetPromoter, error) {
	tempDir = strings.Trim(path.Clean("/"+tempDir), "/")
	permDir = strings.Trim(path.Clean("/"+permDir), "/")

	if tempDir == "" || permDir == "" {
		return nil, fmt.Errorf("new asset promoter: %w: directories cannot be the asset root", ErrInvalidInput)
	}
	if tempDir == permDir {
		return nil, fmt.Errorf("new asset promoter: %w: temporary and permanent directories must differ", ErrInvalidInput)
	}

	if err := storage.EnsureDir(ctx, permDir); err != nil {
		return nil, fmt.Errorf("new asset promoter: %w", err)
	}

	return &AssetPromoter{storage: storage, tempDir: tempDir, permDir: permDir}, nil
}

// Promote moves the staged file from the temporary to the permanent subtree.
//
// Returns:
//   - PromotedAsset: the permanent name and its client-visible location
//   - error: ErrInvalidInput if the name was not produced by the upload gate,
//     ErrPromotionFailed if the file is in neither subtree or cannot be moved
func (p *AssetPromoter) Promote(ctx context.Context, staged StagedFile) (PromotedAsset, error) {
	temporaryName := staged.TemporaryName
	if !IsGeneratedFileName(temporaryName) {
		return PromotedAsset{}, fmt.Errorf("promote %q: %w", temporaryName, ErrInvalidInput)
	}

	src := path.Join(p.tempDir, temporaryName)
	dst := path.Join(p.permDir, temporaryName)
	promoted := PromotedAsset{PermanentName: temporaryName, Location: "/" + dst}

	err := p.storage.Move(ctx, src, dst)
	if err == nil {
		slog.Debug("asset promoted", "name", temporaryName)
		return promoted, nil
	}

	if errors.Is(err, ErrNotFound) {
		if _, statErr := p.storage.Stat(ctx, dst); statErr == nil {
			return promoted, nil
		}
		return PromotedAsset{}, fmt.Errorf("promote %q: %w: staged file not found", temporaryName, ErrPromotionFailed)
	}

	return PromotedAsset{}, fmt.Errorf("promote %q: %w: %w", temporaryName, ErrPromotionFailed, err)
}

// ParseStagedReference inspects an image reference sent by a client.
//
// Returns:
//   - StagedFile: the staged file the reference points at
//   - bool: true if the reference is in the temporary subtree and needs
//     promotion, false if it already points at a permanent asset
//   - error: ErrInvalidInput for anything else, including references
//     outside both subtrees and names not produced by the upload gate
func (p *AssetPromoter) ParseStagedReference(ref string) (StagedFile, bool, error) {
	if !strings.HasPrefix(ref, "/") || path.Clean(ref) != ref {
		return StagedFile{}, false, fmt.Errorf("image reference %q: %w", ref, ErrInvalidInput)
	}

	dir, name := path.Split(ref)
	dir = strings.Trim(dir, "/")

	if !IsGeneratedFileName(name) {
		return StagedFile{}, false, fmt.Errorf("image reference %q: %w", ref, ErrInvalidInput)
	}

	switch dir {
	case p.tempDir:
		return StagedFile{TemporaryName: name, Location: "/" + path.Join(p.tempDir, name)}, true, nil
	case p.permDir:
		return StagedFile{TemporaryName: name, Location: "/" + path.Join(p.permDir, name)}, false, nil
	default:
		return StagedFile{}, false, fmt.Errorf("image reference %q: %w", ref, ErrInvalidInput)
	}
}

// PendingPrefix is the location prefix of images that still await promotion.
func (p *AssetPromoter) PendingPrefix() string {
	return "/" + p.tempDir + "/"
}

// Location returns the client-visible location of a promoted asset.
func (p *AssetPromoter) Location(permanentName string) string {
	return "/" + path.Join(p.permDir, permanentName)
}
