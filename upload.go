package storefront

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultMinUploadBytes int64 = 2 << 10
	DefaultMaxUploadBytes int64 = 5 << 20

	maxExtensionLength = 10
	maxDeclaredName    = 255
	sniffBytes         = 3072
)

// DefaultUploadTypes is the MIME whitelist for image uploads.
var DefaultUploadTypes = []string{
	"image/png",
	"image/jpg",
	"image/jpeg",
	"image/gif",
	"image/svg+xml",
}

// RejectReason is the machine-readable code sent with a refused upload.
type RejectReason string

const (
	ReasonUnsupportedType RejectReason = "unsupported_type"
	ReasonInvalidName     RejectReason = "invalid_name"
	ReasonTooSmall        RejectReason = "too_small"
	ReasonTooLarge        RejectReason = "too_large"
	ReasonContentMismatch RejectReason = "content_mismatch"
	ReasonSizeMismatch    RejectReason = "size_mismatch"
)

// UploadRejection explains why an upload was refused. Messages never
// include server paths. It matches ErrUploadRejected with errors.Is.
type UploadRejection struct {
	Reason  RejectReason
	Message string
}

func (e *UploadRejection) Error() string {
	return fmt.Sprintf("upload rejected (%s): %s", e.Reason, e.Message)
}

func (e *UploadRejection) Is(target error) bool {
	return target == ErrUploadRejected
}

func reject(reason RejectReason, format string, args ...any) *UploadRejection {
	return &UploadRejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// FileUpload is a single file as received from the client. SizeBytes is the
// declared size; a negative value means unknown.
type FileUpload struct {
	MimeType     string
	DeclaredName string
	SizeBytes    int64
	Content      io.Reader
}

// UploadConfig configures an UploadGate. Zero sizes take the defaults.
type UploadConfig struct {
	// TempDir is the temporary subtree, relative to the asset root.
	TempDir      string
	MinBytes     int64
	MaxBytes     int64
	AllowedTypes []string
	// SniffContent also requires the detected content type to be whitelisted.
	SniffContent bool
}

// UploadGate validates uploads and stages them under the temporary subtree.
type UploadGate struct {
	storage FileStorage
	tempDir string
	min     int64
	max     int64
	allowed []string
	sniff   bool
}

// NewUploadGate creates the gate and its temporary directory.
func NewUploadGate(ctx context.Context, storage FileStorage, cfg UploadConfig) (*UploadGate, error) {
	tempDir := strings.Trim(path.Clean("/"+cfg.TempDir), "/")
	if tempDir == "" {
		return nil, fmt.Errorf("new upload gate: %w: temp dir cannot be the asset root", ErrInvalidInput)
	}

	minBytes, maxBytes := cfg.MinBytes, cfg.MaxBytes
	if minBytes <= 0 {
		minBytes = DefaultMinUploadBytes
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if minBytes > maxBytes {
		return nil, fmt.Errorf("new upload gate: %w: min size %d exceeds max size %d", ErrInvalidInput, minBytes, maxBytes)
	}

	allowed := cfg.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultUploadTypes
	}
	normalized := make([]string, 0, len(allowed))
	for _, t := range allowed {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(t)))
	}

	if err := storage.EnsureDir(ctx, tempDir); err != nil {
		return nil, fmt.Errorf("new upload gate: %w", err)
	}

	return &UploadGate{
		storage: storage,
		tempDir: tempDir,
		min:     minBytes,
		max:     maxBytes,
		allowed: normalized,
		sniff:   cfg.SniffContent,
	}, nil
}

// MaxBytes is the largest accepted upload.
func (g *UploadGate) MaxBytes() int64 {
	return g.max
}

// Accept runs the checks in order: MIME type, declared name, size, and
// optionally sniffed content. An accepted file is written under the
// temporary subtree with a generated name; the declared name is only kept
// as metadata. Rejections are *UploadRejection values.
func (g *UploadGate) Accept(ctx context.Context, f FileUpload) (StagedFile, error) {
	if err := ctx.Err(); err != nil {
		return StagedFile{}, fmt.Errorf("accept upload: %w", err)
	}

	mimeType, ok := g.allowedType(f.MimeType)
	if !ok {
		return StagedFile{}, reject(ReasonUnsupportedType, "file type %q is not allowed", f.MimeType)
	}

	if err := ValidateDeclaredName(f.DeclaredName); err != nil {
		return StagedFile{}, err
	}

	if f.SizeBytes >= 0 {
		if f.SizeBytes < g.min {
			return StagedFile{}, g.tooSmall(f.SizeBytes)
		}
		if f.SizeBytes > g.max {
			return StagedFile{}, g.tooLarge(f.SizeBytes)
		}
	}

	content := f.Content
	if g.sniff {
		head := make([]byte, sniffBytes)
		n, err := io.ReadFull(content, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return StagedFile{}, fmt.Errorf("accept upload: read content: %w", err)
		}
		head = head[:n]

		detected := mimetype.Detect(head)
		if !g.matchesAllowed(detected) {
			return StagedFile{}, reject(ReasonContentMismatch, "file content looks like %s, not an allowed image type", detected.String())
		}
		content = io.MultiReader(bytes.NewReader(head), content)
	}

	name, err := GenerateFileName(f.DeclaredName)
	if err != nil {
		return StagedFile{}, fmt.Errorf("accept upload: %w", err)
	}
	stagedPath := path.Join(g.tempDir, name)

	result, err := g.storage.Write(ctx, stagedPath, io.LimitReader(content, g.max+1))
	if err != nil {
		return StagedFile{}, fmt.Errorf("accept upload: write failed: %w", err)
	}

	var rejection *UploadRejection
	switch {
	case result.BytesWritten > g.max:
		rejection = g.tooLarge(result.BytesWritten)
	case result.BytesWritten < g.min:
		rejection = g.tooSmall(result.BytesWritten)
	case f.SizeBytes >= 0 && result.BytesWritten != f.SizeBytes:
		rejection = reject(ReasonSizeMismatch, "received %s but %s was declared",
			humanize.IBytes(uint64(result.BytesWritten)), humanize.IBytes(uint64(f.SizeBytes)))
	}
	if rejection != nil {
		g.discard(stagedPath)
		return StagedFile{}, rejection
	}

	return StagedFile{
		TemporaryName:        name,
		MimeType:             mimeType,
		SizeBytes:            result.BytesWritten,
		DeclaredOriginalName: f.DeclaredName,
		Location:             "/" + stagedPath,
	}, nil
}

func (g *UploadGate) discard(stagedPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.storage.Delete(ctx, stagedPath); err != nil && !errors.Is(err, ErrNotFound) {
		slog.Warn("failed to remove rejected upload", "path", stagedPath, "err", err)
	}
}

func (g *UploadGate) tooSmall(n int64) *UploadRejection {
	return reject(ReasonTooSmall, "file is too small: %s, minimum is %s",
		humanize.IBytes(uint64(max(n, 0))), humanize.IBytes(uint64(g.min)))
}

func (g *UploadGate) tooLarge(n int64) *UploadRejection {
	return reject(ReasonTooLarge, "file is too large: more than %s allowed",
		humanize.IBytes(uint64(g.max)))
}

// allowedType parses the declared media type and reports its canonical form.
func (g *UploadGate) allowedType(declared string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", false
	}
	mediaType = strings.ToLower(mediaType)
	for _, a := range g.allowed {
		if a == mediaType {
			return mediaType, true
		}
	}
	return "", false
}

func (g *UploadGate) matchesAllowed(detected *mimetype.MIME) bool {
	for _, a := range g.allowed {
		if detected.Is(a) {
			return true
		}
	}
	return false
}

var reservedDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// ValidateDeclaredName rejects client file names carrying path separators,
// drive or UNC markers, NUL and control characters, or reserved device names.
func ValidateDeclaredName(name string) error {
	if strings.TrimSpace(name) == "" {
		return reject(ReasonInvalidName, "file name is empty")
	}
	if len(name) > maxDeclaredName {
		return reject(ReasonInvalidName, "file name is longer than %d bytes", maxDeclaredName)
	}
	if !utf8.ValidString(name) {
		return reject(ReasonInvalidName, "file name is not valid UTF-8")
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return reject(ReasonInvalidName, "file name contains control characters")
		}
	}

	if strings.ContainsAny(name, `/\`) {
		return reject(ReasonInvalidName, "file name contains a path separator")
	}
	if strings.ContainsAny(name, `:<>"|?*`) {
		return reject(ReasonInvalidName, "file name contains a reserved character")
	}

	stem := strings.ToUpper(strings.TrimRight(name, ". "))
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if _, reserved := reservedDeviceNames[strings.TrimSpace(stem)]; reserved {
		return reject(ReasonInvalidName, "file name is a reserved device name")
	}

	return nil
}

var extensionRegex = regexp.MustCompile(`^\.[a-z0-9]+$`)

var generatedNameRegex = regexp.MustCompile(`^[0-9a-f]{32}(\.[a-z0-9]{1,9})?$`)

// GenerateFileName returns 128 random bits as hex followed by the lowercased
// extension of declared, truncated to ten characters including the dot.
// Extensions with characters outside [a-z0-9] are dropped.
func GenerateFileName(declared string) (string, error) {
	var token [16]byte
	if _, err := rand.Read(token[:]); err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}

	return hex.EncodeToString(token[:]) + safeExtension(declared), nil
}

// IsGeneratedFileName reports whether name has the shape GenerateFileName produces.
func IsGeneratedFileName(name string) bool {
	return generatedNameRegex.MatchString(name)
}

func safeExtension(declared string) string {
	base := declared
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return ""
	}

	ext := strings.ToLower(base[dot:])
	if len(ext) > maxExtensionLength {
		ext = ext[:maxExtensionLength]
	}
	if !extensionRegex.MatchString(ext) {
		return ""
	}
	return ext
}
