package filestore

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/atlaschat/core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_UploadAndGet(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	meta, err := store.Upload(ctx, "user@example.com", "report.md", []byte("# hello"), domain.FileSourceUser, map[string]string{"tag": "x"})
	require.NoError(t, err)
	assert.Equal(t, "report.md", meta.Filename)
	assert.Equal(t, "text/markdown", meta.ContentType)
	assert.Equal(t, int64(len("# hello")), meta.Size)
	assert.Regexp(t, `^[0-9]{9,}_[0-9a-f]{6,}_report\.md$`, meta.Key)

	file, err := store.Get(ctx, "user@example.com", meta.Key)
	require.NoError(t, err)
	assert.Equal(t, "report.md", file.Filename)
	decoded, err := base64.StdEncoding.DecodeString(file.ContentBase64)
	require.NoError(t, err)
	assert.Equal(t, "# hello", string(decoded))
}

func TestLocalStore_Get_NotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Get(context.Background(), "user@example.com", "missing-key")
	assert.Error(t, err)
}

func TestOrganizeFilesMetadata(t *testing.T) {
	refs := map[string]*domain.FileRef{
		"a.txt": {Key: "123456789_abcdef_a.txt", ContentType: "text/plain", Size: 10, Source: domain.FileSourceUser, ExtractMode: domain.ExtractFull},
	}
	out := OrganizeFilesMetadata(refs)
	files, ok := out["files"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0]["filename"])
}

func TestShouldDisplayInCanvas(t *testing.T) {
	assert.True(t, ShouldDisplayInCanvas("notes.md"))
	assert.True(t, ShouldDisplayInCanvas("IMAGE.PNG"))
	assert.False(t, ShouldDisplayInCanvas("archive.zip"))
}

func TestGetFileExtension(t *testing.T) {
	assert.Equal(t, "md", GetFileExtension("notes.MD"))
	assert.Equal(t, "", GetFileExtension("README"))
}

func TestGetCanvasFileType(t *testing.T) {
	assert.Equal(t, "markdown", GetCanvasFileType("md"))
	assert.Equal(t, "code", GetCanvasFileType("go"))
	assert.Equal(t, "image", GetCanvasFileType("PNG"))
	assert.Equal(t, "unknown", GetCanvasFileType("zip"))
}

func TestSessionResolver_Resolve(t *testing.T) {
	resolver := SessionResolver{Files: map[string]*domain.FileRef{
		"a.txt": {Key: "123456789_abcdef_a.txt"},
	}}
	key, ok := resolver.Resolve("a.txt")
	assert.True(t, ok)
	assert.Equal(t, "123456789_abcdef_a.txt", key)

	_, ok = resolver.Resolve("missing.txt")
	assert.False(t, ok)
}
