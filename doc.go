// Package storefront provides the request-surface hardening layer of a small
// e-commerce backend: the code that stands between untrusted client input and
// the filesystem, the metadata store and the persisted-file namespace.
//
// # Key Components
//
//   - ResolvePath: resolves a client path under a fixed root, rejecting escapes
//   - AssetServer: opens files under the asset root for the static middleware
//   - UploadGate: validates, renames and stages single-file uploads
//   - AssetPromoter: moves staged files into the permanent subtree
//   - Sanitize: strips operator-injection keys from boundary input
//   - ListEndpoint: turns list query parameters into a bounded FilterSpec
//   - CatalogService: product and customer operations built on the above
//
// # Upload lifecycle
//
// A file is staged under the temporary subtree as soon as it is uploaded and
// promoted only after the record referencing it has been written:
//
//	staged, err := gate.Accept(ctx, storefront.FileUpload{...})
//	// client later submits a product referencing staged.Location
//	product, err := service.CreateProduct(ctx, input)
//
// If promotion fails the product keeps its temporary image reference and
// CatalogService.RetryPromotions can finish the move later.
//
// See the http package for the REST surface and the database package for
// the SQLite and PostgreSQL metadata backends.
package storefront
