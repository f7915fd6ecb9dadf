package main

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// formatSection properly indents a text section.
func formatSection(header string, content string) string {
	var out strings.Builder

	// Add section header
	if header != "" {
		_, _ = out.WriteString(header + ":\n")
	}

	// Indent the content
	for line := range strings.SplitSeq(content, "\n") {
		if line != "" {
			_, _ = out.WriteString("  ")
		}

		_, _ = out.WriteString(line + "\n")
	}

	if header != "" {
		// Section separator (when rendering a full section
		_, _ = out.WriteString("\n")

		return out.String()
	}

	// Remove last newline when rendering partial section
	return strings.TrimSuffix(out.String(), "\n")
}

// digestOf returns the hex encoded SHA-256 digest of a byte slice.
func digestOf(body []byte) string {
	sum := sha256.Sum256(body)

	return hex.EncodeToString(sum[:])
}

// hashFile returns the hex encoded SHA-256 digest and the size of a file.
func hashFile(path string) (string, int64, error) {
	// #nosec G304
	fd, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}

	defer func() { _ = fd.Close() }()

	// Setup a hashing reader.
	h := sha256.New()
	r := io.TeeReader(fd, h)

	// Read in chunks to avoid excessive memory consumption.
	var size int64

	for {
		n, err := io.CopyN(io.Discard, r, 4*1024*1024)
		size += n

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return "", 0, err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// zipDirectory packages srcDir into a zip archive at zipPath, wrapping all
// entries in the single top-level directory rootName. File modes are kept so
// executables stay executable after extraction.
func zipDirectory(srcDir string, zipPath string, rootName string) error {
	fd, err := os.Create(zipPath) //nolint:gosec
	if err != nil {
		return err
	}

	defer func() { _ = fd.Close() }()

	zw := zip.NewWriter(fd)

	err = filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		name := rootName + "/" + filepath.ToSlash(rel)

		if entry.IsDir() {
			_, err := zw.Create(name + "/")

			return err
		}

		if !entry.Type().IsRegular() {
			// Symlinks and special files don't survive a zip round-trip.
			return errors.New("unsupported file type in build tree: " + rel)
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		header.Name = name
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		// #nosec G304
		src, err := os.Open(path)
		if err != nil {
			return err
		}

		defer func() { _ = src.Close() }()

		for {
			_, err := io.CopyN(w, src, 4*1024*1024)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}

				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = zw.Close()
	if err != nil {
		return err
	}

	return fd.Close()
}
