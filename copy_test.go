package unpkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unpkg/testutil"
)

func copyFixture(t *testing.T) *Session {
	t.Helper()
	b := testutil.NewBuilder().
		AddFile("package.json", []byte(`{"main":"index.js"}`), CompressionNone).
		AddFile("index.js", []byte("require('./lib/util')"), CompressionGzip).
		AddFile("lib/util.js", []byte("exports.x = 1"), CompressionBrotli).
		AddFile("../../etc/passwd", []byte("root:x:0:0"), CompressionNone).
		AddFile("lib/util.js", []byte("shadow"), CompressionNone).
		AddFile("node_modules/dep/index.js", []byte("module.exports = {}"), CompressionZstd)
	overrun := b.AddData(nil)
	b.AddRawFile([]string{"overrun.js"}, overrun, 1<<20, CompressionNone)

	s, err := New(b.MustBuild())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCopyDir(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{-1, 0, 3} {
		parent := t.TempDir()
		dest := filepath.Join(parent, "out")
		s := copyFixture(t)

		stats, err := s.CopyDir(t.Context(), dest, CopyWithWorkers(workers), CopyWithReadAheadBytes(64))
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Written)
		assert.Zero(t, stats.Skipped)
		assert.Equal(t, 4, stats.Tally.Succeeded)
		assert.Equal(t, 3, stats.Tally.Failed)

		require.Len(t, stats.Tally.Failures, 3)
		assert.ErrorIs(t, stats.Tally.Failures[0], ErrDuplicatePath)
		assert.ErrorIs(t, stats.Tally.Failures[1], ErrUnsafePath)
		assert.ErrorIs(t, stats.Tally.Failures[2], ErrEntryRangeInvalid)

		for path, want := range map[string]string{
			"package.json":              `{"main":"index.js"}`,
			"index.js":                  "require('./lib/util')",
			"lib/util.js":               "exports.x = 1",
			"node_modules/dep/index.js": "module.exports = {}",
		} {
			got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(path)))
			require.NoError(t, err, path)
			assert.Equal(t, want, string(got), path)
		}

		_, err = os.Stat(filepath.Join(parent, "etc"))
		assert.True(t, os.IsNotExist(err), "unsafe entry must not be written")
		_, err = os.Stat(filepath.Join(dest, "overrun.js"))
		assert.True(t, os.IsNotExist(err))
	}
}

func TestCopyDir_Overwrite(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "index.js"), []byte("local"), 0o600))
	s := copyFixture(t)

	stats, err := s.CopyDir(t.Context(), dest)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 3, stats.Written)
	got, err := os.ReadFile(filepath.Join(dest, "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "local", string(got))

	stats, err = s.CopyDir(t.Context(), dest, CopyWithOverwrite(true))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Written)
	got, err = os.ReadFile(filepath.Join(dest, "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "require('./lib/util')", string(got))
}

func TestCopyDir_DirectWritesAndMode(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	stats, err := copyFixture(t).CopyDir(t.Context(), dest,
		CopyWithDirectWrites(true), CopyWithFileMode(0o600))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Written)

	info, err := os.Stat(filepath.Join(dest, "lib", "util.js"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".unpkg-")
	}
}

func TestCopyDir_FileDirectoryConflict(t *testing.T) {
	t.Parallel()

	b := testutil.NewBuilder().
		AddFile("a", []byte("file"), CompressionNone).
		AddFile("a/b", []byte("nested"), CompressionNone).
		AddFile("z.js", []byte("z"), CompressionNone)
	s, err := New(b.MustBuild())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dest := t.TempDir()
	stats, err := s.CopyDir(t.Context(), dest)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Written)
	require.Len(t, stats.Tally.Failures, 1)
	assert.Equal(t, "a/b", stats.Tally.Failures[0].Path)
	assert.ErrorIs(t, stats.Tally.Failures[0], ErrDuplicatePath)

	got, err := os.ReadFile(filepath.Join(dest, "z.js"))
	require.NoError(t, err)
	assert.Equal(t, "z", string(got))
}

func TestCopyDir_DestinationIsFile(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(dest, nil, 0o600))

	_, err := copyFixture(t).CopyDir(t.Context(), dest)
	assert.Error(t, err)
}
