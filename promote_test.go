package storefront_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/database/sqlite"
	"github.com/sagarc03/storefront/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stagedName = "0123456789abcdef0123456789abcdef.png"

func newPromoter(t *testing.T) (*storefront.AssetPromoter, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "temp"), 0o755))

	p, err := storefront.NewAssetPromoter(context.Background(), filesystem.NewFileStorage(root), "temp", "images")
	require.NoError(t, err)
	return p, dir
}

func TestNewAssetPromoter_Validation(t *testing.T) {
	root, err := os.OpenRoot(t.TempDir())
	require.NoError(t, err)
	defer root.Close()
	store := filesystem.NewFileStorage(root)

	_, err = storefront.NewAssetPromoter(context.Background(), store, "temp", "temp/")
	assert.ErrorIs(t, err, storefront.ErrInvalidInput)

	_, err = storefront.NewAssetPromoter(context.Background(), store, "", "images")
	assert.ErrorIs(t, err, storefront.ErrInvalidInput)
}

func TestAssetPromoter_Promote(t *testing.T) {
	p, dir := newPromoter(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temp", stagedName), []byte("png"), 0o644))

	promoted, err := p.Promote(context.Background(), storefront.StagedFile{TemporaryName: stagedName})

	require.NoError(t, err)
	assert.Equal(t, stagedName, promoted.PermanentName)
	assert.Equal(t, "/images/"+stagedName, promoted.Location)

	_, err = os.Stat(filepath.Join(dir, "temp", stagedName))
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(filepath.Join(dir, "images", stagedName))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestAssetPromoter_Promote_IsIdempotent(t *testing.T) {
	p, dir := newPromoter(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temp", stagedName), []byte("png"), 0o644))

	first, err := p.Promote(context.Background(), storefront.StagedFile{TemporaryName: stagedName})
	require.NoError(t, err)

	second, err := p.Promote(context.Background(), storefront.StagedFile{TemporaryName: stagedName})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssetPromoter_Promote_MissingFile(t *testing.T) {
	p, _ := newPromoter(t)

	_, err := p.Promote(context.Background(), storefront.StagedFile{TemporaryName: stagedName})

	assert.ErrorIs(t, err, storefront.ErrPromotionFailed)
}

func TestAssetPromoter_Promote_RejectsForeignNames(t *testing.T) {
	p, _ := newPromoter(t)

	for _, name := range []string{"../secret.png", "photo.png", "", "0123456789ABCDEF0123456789ABCDEF.png"} {
		_, err := p.Promote(context.Background(), storefront.StagedFile{TemporaryName: name})
		assert.ErrorIs(t, err, storefront.ErrInvalidInput, name)
	}
}

func TestAssetPromoter_ParseStagedReference(t *testing.T) {
	p, _ := newPromoter(t)

	tests := []struct {
		name    string
		ref     string
		pending bool
		wantErr bool
	}{
		{name: "temporary", ref: "/temp/" + stagedName, pending: true},
		{name: "permanent", ref: "/images/" + stagedName, pending: false},
		{name: "no leading slash", ref: "temp/" + stagedName, wantErr: true},
		{name: "traversal", ref: "/temp/../etc/" + stagedName, wantErr: true},
		{name: "other directory", ref: "/uploads/" + stagedName, wantErr: true},
		{name: "client chosen name", ref: "/temp/photo.png", wantErr: true},
		{name: "external url", ref: "https://evil.example/" + stagedName, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staged, pending, err := p.ParseStagedReference(tt.ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, storefront.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pending, pending)
			assert.Equal(t, stagedName, staged.TemporaryName)
			assert.Equal(t, tt.ref, staged.Location)
		})
	}

	assert.Equal(t, "/temp/", p.PendingPrefix())
	assert.Equal(t, "/images/"+stagedName, p.Location(stagedName))
}

func TestCatalogService_RetryPromotions_SkipsReapedFiles(t *testing.T) {
	ctx := context.Background()
	p, dir := newPromoter(t)

	db, err := sqlite.Connect(ctx, filepath.Join(t.TempDir(), "shop.db"), storefront.Tables{
		Products: "products", Customers: "customers", Orders: "orders",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	repos := db.GetRepo()

	const reapedName = "00000000000000000000000000000001.png"
	reaped, err := repos.Products.Create(ctx, storefront.Product{
		Title: "Reaped", Category: "kitchen", Image: storefront.Image{FileName: "/temp/" + reapedName},
	})
	require.NoError(t, err)
	// created_at orders the retry walk; keep the reaped row strictly first.
	time.Sleep(time.Millisecond)
	live, err := repos.Products.Create(ctx, storefront.Product{
		Title: "Live", Category: "kitchen", Image: storefront.Image{FileName: "/temp/" + stagedName},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temp", stagedName), []byte("png"), 0o644))

	service, err := storefront.NewCatalogService(repos.Products, repos.Customers, p, storefront.ServiceConfig{})
	require.NoError(t, err)

	n, err := service.RetryPromotions(ctx, 1)

	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, storefront.ErrPromotionFailed)

	got, err := repos.Products.Get(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, "/images/"+stagedName, got.Image.FileName)
	_, err = os.Stat(filepath.Join(dir, "images", stagedName))
	assert.NoError(t, err)

	still, err := repos.Products.Get(ctx, reaped.ID)
	require.NoError(t, err)
	assert.Equal(t, "/temp/"+reapedName, still.Image.FileName)
}
