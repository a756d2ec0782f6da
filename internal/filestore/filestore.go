// Package filestore implements the File store port (spec §6): upload and
// retrieval of file content by key, plus the pure helpers the Tool Executor
// and orchestrator use to decide how an attached file should be surfaced to
// a client (canvas display, extension, canvas viewer type).
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/storage"
)

// Meta is the metadata returned by Upload (spec §6 upload_file -> meta).
type Meta struct {
	Key          string            `json:"key"`
	Filename     string            `json:"filename"`
	ContentType  string            `json:"content_type"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	Source       domain.FileSource `json:"source"`
	Tags         map[string]string `json:"tags,omitempty"`
	UserEmail    string            `json:"user_email,omitempty"`
}

// File is the full content + metadata returned by Get (spec §6 get_file).
type File struct {
	Meta
	ContentBase64 string `json:"content_base64"`
}

// Store is the File store port (spec §6).
type Store interface {
	Upload(ctx context.Context, userEmail, filename string, content []byte, source domain.FileSource, tags map[string]string) (Meta, error)
	Get(ctx context.Context, userEmail, key string) (File, error)
}

// LocalStore persists file bytes and metadata via internal/storage's
// file-based JSON store, the way the teacher persists every other piece of
// process state (sessions, auth, config) — one more concern on the same
// atomic-write-then-rename primitive rather than a bespoke blob layer.
type LocalStore struct {
	meta *storage.Storage
	blob *storage.Storage
}

// NewLocalStore roots metadata under basePath/files/meta and raw content
// under basePath/files/blob.
func NewLocalStore(basePath string) *LocalStore {
	return &LocalStore{
		meta: storage.New(filepath.Join(basePath, "files", "meta")),
		blob: storage.New(filepath.Join(basePath, "files", "blob")),
	}
}

// blobEntry is the JSON-wrapped raw content; storage.Storage only speaks
// JSON, so content travels base64-encoded even at rest.
type blobEntry struct {
	ContentBase64 string `json:"content_base64"`
}

// Upload generates a sortable "<unixseconds>_<hash>_<filename>" storage key
// (the shape internal/tool.SanitizeForDisplay already knows how to strip),
// and stores content and metadata under it.
func (s *LocalStore) Upload(ctx context.Context, userEmail, filename string, content []byte, source domain.FileSource, tags map[string]string) (Meta, error) {
	key := newStorageKey(filename)
	now := time.Now().UTC()

	m := Meta{
		Key:          key,
		Filename:     filename,
		ContentType:  contentTypeFor(filename),
		Size:         int64(len(content)),
		LastModified: now,
		Source:       source,
		Tags:         tags,
		UserEmail:    userEmail,
	}

	if err := s.blob.Put(ctx, []string{key}, blobEntry{ContentBase64: base64.StdEncoding.EncodeToString(content)}); err != nil {
		return Meta{}, fmt.Errorf("filestore: store content: %w", err)
	}
	if err := s.meta.Put(ctx, []string{key}, m); err != nil {
		return Meta{}, fmt.Errorf("filestore: store metadata: %w", err)
	}
	return m, nil
}

// Get retrieves a file's content and metadata by key. userEmail is accepted
// for port-shape parity with the original ownership-scoped store; LocalStore
// does not currently enforce per-user isolation on disk.
func (s *LocalStore) Get(ctx context.Context, userEmail, key string) (File, error) {
	var m Meta
	if err := s.meta.Get(ctx, []string{key}, &m); err != nil {
		return File{}, fmt.Errorf("filestore: metadata not found for %s: %w", key, err)
	}
	var b blobEntry
	if err := s.blob.Get(ctx, []string{key}, &b); err != nil {
		return File{}, fmt.Errorf("filestore: content not found for %s: %w", key, err)
	}
	return File{Meta: m, ContentBase64: b.ContentBase64}, nil
}

// newStorageKey mints a "<unixseconds>_<hash>_<filename>" key matching
// internal/tool's storagePrefixPattern, so UI-facing code can always strip
// it back down to the original filename.
func newStorageKey(filename string) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%d_%s_%s", time.Now().Unix(), hex.EncodeToString(buf[:]), filename)
}

var textContentTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".html": "text/html",
	".htm":  "text/html",
}

// contentTypeFor infers a MIME type from a file's extension, falling back
// to application/octet-stream for anything unrecognized.
func contentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := textContentTypes[ext]; ok {
		return ct
	}
	switch ext {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// OrganizeFilesMetadata implements spec §6's organize_files_metadata:
// flattens a session's file refs into the {files: […]} shape a client
// renders as an attachment list.
func OrganizeFilesMetadata(refs map[string]*domain.FileRef) map[string]any {
	files := make([]map[string]any, 0, len(refs))
	for filename, ref := range refs {
		files = append(files, map[string]any{
			"filename":      filename,
			"key":           ref.Key,
			"content_type":  ref.ContentType,
			"size":          ref.Size,
			"source":        ref.Source,
			"last_modified": ref.LastModified,
			"extract_mode":  ref.ExtractMode,
		})
	}
	return map[string]any{"files": files}
}

// canvasExtensions lists the file extensions worth opening directly in a
// canvas viewer rather than leaving as a plain download chip.
var canvasExtensions = map[string]bool{
	".md": true, ".txt": true, ".csv": true, ".json": true,
	".html": true, ".htm": true, ".py": true, ".js": true, ".ts": true,
	".go": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".pdf": true,
}

// ShouldDisplayInCanvas implements spec §6's should_display_in_canvas.
func ShouldDisplayInCanvas(filename string) bool {
	return canvasExtensions[strings.ToLower(filepath.Ext(filename))]
}

// GetFileExtension implements spec §6's get_file_extension: the extension
// without its leading dot, lowercased.
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// canvasFileTypes buckets extensions into the broad viewer categories a
// canvas front-end switches on (spec §6's get_canvas_file_type).
var canvasFileTypes = map[string]string{
	"md": "markdown", "txt": "text", "csv": "spreadsheet",
	"json": "code", "html": "code", "htm": "code",
	"py": "code", "js": "code", "ts": "code", "go": "code",
	"png": "image", "jpg": "image", "jpeg": "image", "gif": "image", "svg": "image",
	"pdf": "pdf",
}

// GetCanvasFileType implements spec §6's get_canvas_file_type, taking an
// extension as produced by GetFileExtension.
func GetCanvasFileType(ext string) string {
	if t, ok := canvasFileTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return "unknown"
}

// SessionResolver adapts a session's file map to internal/tool.FileResolver,
// so the Tool Executor can turn a bare filename argument into the storage
// key needed to mint a signed download URL (spec §4.5 rule 2).
type SessionResolver struct {
	Files map[string]*domain.FileRef
}

// Resolve implements tool.FileResolver.
func (r SessionResolver) Resolve(filename string) (string, bool) {
	ref, ok := r.Files[filename]
	if !ok {
		return "", false
	}
	return ref.Key, true
}
