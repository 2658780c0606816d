package pack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, base string, files map[string]string) []string {
	t.Helper()

	paths := make([]string, 0, len(files))
	for name, content := range files {
		path := filepath.Join(base, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func TestFlatPacker_PreservesRelativePaths(t *testing.T) {
	workDir := t.TempDir()
	outboxDir := t.TempDir()

	staged := writeTree(t, workDir, map[string]string{
		"story.xml":        "<story/>",
		"medias/photo.jpg": "jpeg",
	})

	packer, err := New(KindFlat, "")
	require.NoError(t, err)

	packed, err := packer.Pack(workDir, outboxDir, staged)
	require.NoError(t, err)
	require.Len(t, packed, 2)

	for _, f := range packed {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}

	content, err := os.ReadFile(filepath.Join(outboxDir, "medias", "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(content))

	// Staged originals were moved, not copied.
	_, err = os.Stat(filepath.Join(workDir, "story.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestArchivePacker_RoundTrip(t *testing.T) {
	workDir := t.TempDir()
	outboxDir := t.TempDir()
	extractDir := t.TempDir()

	files := map[string]string{
		"story_1.xml":      "<story id=\"1\"/>",
		"photos/1.jpg":     "jpeg one",
		"photos/2.jpg":     "jpeg two",
		"nested/deep/a.md": "text",
	}
	writeTree(t, workDir, files)

	packer, err := New(KindArchive, "digest.zip")
	require.NoError(t, err)

	packed, err := packer.Pack(workDir, outboxDir, nil)
	require.NoError(t, err)
	require.Len(t, packed, 1)
	assert.Equal(t, filepath.Join(outboxDir, "digest.zip"), packed[0])

	require.NoError(t, Unpack(packed[0], extractDir))

	for name, want := range files {
		content, err := os.ReadFile(filepath.Join(extractDir, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(content), name)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("tarball", "")
	assert.Error(t, err)
}

func TestTreeHash_StableAcrossPackUnpack(t *testing.T) {
	workDir := t.TempDir()
	writeTree(t, workDir, map[string]string{
		"a.xml":      "<a/>",
		"dir/b.xml":  "<b/>",
		"dir/c.jpeg": "bytes",
	})

	before, digests, err := TreeHash(workDir)
	require.NoError(t, err)
	require.Len(t, digests, 3)
	assert.Equal(t, "a.xml", digests[0].RelativePath, "digests are path ordered")

	outboxDir := t.TempDir()
	extractDir := t.TempDir()

	packer, err := New(KindArchive, "tree.zip")
	require.NoError(t, err)
	packed, err := packer.Pack(workDir, outboxDir, nil)
	require.NoError(t, err)
	require.NoError(t, Unpack(packed[0], extractDir))

	after, _, err := TreeHash(extractDir)
	require.NoError(t, err)
	assert.Equal(t, before, after, "the digest must survive a pack/unpack round trip")
}

func TestTreeHash_DetectsContentChange(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.xml": "<a/>"})

	before, _, err := TreeHash(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte("<b/>"), 0o644))

	after, _, err := TreeHash(dir)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
