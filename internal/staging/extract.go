package staging

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractZip unpacks the verified archive into targetDir, preserving file
// modes so executables stay executable.
func extractZip(ctx context.Context, archivePath string, targetDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}

	defer func() { _ = zr.Close() }()

	err = os.MkdirAll(targetDir, 0o700)
	if err != nil {
		return err
	}

	for _, file := range zr.File {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		target, err := entryPath(targetDir, file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			err = os.MkdirAll(target, 0o755)
			if err != nil {
				return err
			}

			continue
		}

		err = os.MkdirAll(filepath.Dir(target), 0o755)
		if err != nil {
			return err
		}

		err = extractFile(file, target)
		if err != nil {
			return err
		}
	}

	return nil
}

// entryPath resolves an archive entry name below targetDir, rejecting
// absolute names and traversal outside the target.
func entryPath(targetDir string, name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") {
		return "", errors.New("invalid path in package: " + name)
	}

	target := filepath.Join(targetDir, filepath.FromSlash(name))
	if target != targetDir && !strings.HasPrefix(target, targetDir+string(os.PathSeparator)) {
		return "", errors.New("invalid path in package: " + name)
	}

	return target, nil
}

func extractFile(f *zip.File, target string) error {
	// Open the file.
	rc, err := f.Open()
	if err != nil {
		return err
	}

	defer func() { _ = rc.Close() }()

	// Archives written without permission bits would otherwise yield unreadable files.
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	// Create the target path.
	// #nosec G304
	fd, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	defer func() { _ = fd.Close() }()

	// Read from the decompressor in chunks to avoid excessive memory consumption.
	for {
		_, err := io.CopyN(fd, rc, 4*1024*1024)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return err
		}
	}

	return fd.Close()
}

// findSourceRoot locates the application tree inside the extracted archive.
// Packages conventionally wrap everything in a single top-level directory; a
// flat archive is taken as-is.
func findSourceRoot(extractedDir string) (string, error) {
	entries, err := os.ReadDir(extractedDir)
	if err != nil {
		return "", err
	}

	if len(entries) == 0 {
		return "", errors.New("package archive is empty")
	}

	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extractedDir, entries[0].Name()), nil
	}

	return extractedDir, nil
}
