package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const tempPrefix = ".unpkg-"

// FileSink writes entries beneath a destination directory.
//
// All filesystem access goes through an os.Root, so no entry path can
// resolve outside the destination, including through symlinks planted there.
// By default, files are written to a temporary file in the same directory
// and renamed to the final path on Commit.
type FileSink struct {
	root        *os.Root
	destDir     string
	overwrite   bool
	directWrite bool
	fileMode    fs.FileMode
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithDirectWrites disables temp files and writes directly to the final path.
func WithDirectWrites(enabled bool) FileSinkOption {
	return func(s *FileSink) {
		s.directWrite = enabled
	}
}

// WithFileMode sets the permission bits of written files (default 0o644).
func WithFileMode(mode fs.FileMode) FileSinkOption {
	return func(s *FileSink) {
		s.fileMode = mode.Perm()
	}
}

// NewFileSink creates a FileSink that writes to destDir, creating it if needed.
func NewFileSink(destDir string, opts ...FileSinkOption) (*FileSink, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", destDir, err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", destDir, err)
	}
	s := &FileSink{
		root:     root,
		destDir:  destDir,
		fileMode: 0o644,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the destination root.
func (s *FileSink) Close() error {
	return s.root.Close()
}

// ShouldProcess returns false if the file already exists and overwrite is disabled.
func (s *FileSink) ShouldProcess(path string) bool {
	if s.overwrite {
		return true
	}
	if !fs.ValidPath(path) {
		return false
	}
	_, err := s.root.Lstat(filepath.FromSlash(path))
	return errors.Is(err, fs.ErrNotExist)
}

// Writer returns a Committer for path, creating parent directories.
func (s *FileSink) Writer(path string) (Committer, error) {
	if !fs.ValidPath(path) || path == "." {
		return nil, &fs.PathError{Op: "copy", Path: path, Err: fs.ErrInvalid}
	}
	destRel := filepath.FromSlash(path)
	destPath := filepath.Join(s.destDir, destRel)

	if err := s.root.MkdirAll(filepath.Dir(destRel), 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(destPath), err)
	}

	if s.directWrite {
		file, err := s.root.OpenFile(destRel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, s.fileMode)
		if err != nil {
			return nil, fmt.Errorf("create file %s: %w", destPath, err)
		}
		return &directCommitter{root: s.root, file: file, destRel: destRel}, nil
	}

	tempFile, tempRel, err := createTempFile(s.root, filepath.Dir(destRel), s.fileMode)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &fileCommitter{
		root:     s.root,
		tempFile: tempFile,
		tempRel:  tempRel,
		destRel:  destRel,
		destPath: destPath,
	}, nil
}

// fileCommitter writes to a temp file and renames on Commit.
type fileCommitter struct {
	root     *os.Root
	tempFile *os.File
	tempRel  string
	destRel  string
	destPath string
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit closes the temp file and renames it to the final path.
func (c *fileCommitter) Commit() error {
	if err := c.tempFile.Close(); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := c.root.Rename(c.tempRel, c.destRel); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destPath, err)
	}
	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	return c.root.Remove(c.tempRel)
}

// directCommitter writes directly to the final path.
type directCommitter struct {
	root    *os.Root
	file    *os.File
	destRel string
}

// Write implements io.Writer.
func (c *directCommitter) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

// Commit closes the file.
func (c *directCommitter) Commit() error {
	if err := c.file.Close(); err != nil {
		_ = c.root.Remove(c.destRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// Discard closes and removes the file.
func (c *directCommitter) Discard() error {
	_ = c.file.Close() //nolint:errcheck // best-effort cleanup
	return c.root.Remove(c.destRel)
}

func createTempFile(root *os.Root, dir string, mode fs.FileMode) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, tempPrefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
