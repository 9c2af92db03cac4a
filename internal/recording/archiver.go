// Package recording archives the artifacts of recorded sessions when they
// close.
package recording

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SafeName turns a session id into a single path element
func SafeName(sessionID string) string {
	name := unsafeChars.ReplaceAllString(sessionID, "_")
	if name == "" || name == "." || name == ".." {
		name = strings.Repeat("_", max(len(name), 1))
	}
	return name
}

// SessionDir is where a session's screenshots are written by default
func SessionDir(artifactsDir, sessionID string) string {
	return filepath.Join(artifactsDir, SafeName(sessionID))
}

// Archiver compresses a session's artifact directory into a tar.gz
type Archiver struct {
	artifactsDir string
	storePath    string
	now          func() time.Time
}

// NewArchiver creates an archiver reading from artifactsDir and writing
// archives into storePath
func NewArchiver(artifactsDir, storePath string) (*Archiver, error) {
	if err := os.MkdirAll(storePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	return &Archiver{
		artifactsDir: artifactsDir,
		storePath:    storePath,
		now:          time.Now,
	}, nil
}

// Archive packs the session's artifacts and returns the archive path. A
// session with no artifacts yields an empty path and no error.
func (a *Archiver) Archive(sessionID string) (string, error) {
	source := SessionDir(a.artifactsDir, sessionID)
	if _, err := os.Stat(source); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%d.tar.gz", SafeName(sessionID), a.now().Unix())
	target := filepath.Join(a.storePath, name)

	if err := compressDirectory(source, target); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to compress recording: %w", err)
	}
	return target, nil
}

// List returns the archives stored for sessionID, oldest first
func (a *Archiver) List(sessionID string) ([]string, error) {
	pattern := filepath.Join(a.storePath, SafeName(sessionID)+"-*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

// compressDirectory creates a tar.gz archive of a directory
func compressDirectory(source, target string) error {
	file, err := os.Create(target)
	if err != nil {
		return err
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzWriter)

	walkErr := filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tarWriter, f)
		return err
	})

	return errors.Join(walkErr, tarWriter.Close(), gzWriter.Close())
}

// Extract unpacks an archive into target
func Extract(source, target string) error {
	file, err := os.Open(source)
	if err != nil {
		return err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	root := filepath.Clean(target) + string(os.PathSeparator)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		targetPath := filepath.Join(target, header.Name)
		if !strings.HasPrefix(targetPath, root) {
			return fmt.Errorf("archive entry %q escapes %s", header.Name, target)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return err
			}

			outFile, err := os.Create(targetPath)
			if err != nil {
				return err
			}
			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return err
			}
			outFile.Close()
		}
	}
}
