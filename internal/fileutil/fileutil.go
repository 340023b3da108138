// Package fileutil reads and writes annotated documents, handling
// xz and gzip compression transparently.
package fileutil

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperTimex/internal/validation"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// ReadDocument reads the document at path, decompressing xz or gzip
// content detected from its magic bytes. The decompressed size is capped
// at validation.MaxFileSize.
func ReadDocument(path string) ([]byte, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	fileType, header, err := validation.ValidateFileType(f, path)
	if err != nil {
		return nil, err
	}
	src := io.MultiReader(bytes.NewReader(header), f)

	var r io.Reader
	switch fileType {
	case validation.FileTypeXZ:
		xzr, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		r = xzr
	case validation.FileTypeGzip:
		gzr, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gzr.Close()
		r = gzr
	default:
		r = src
	}

	data, err := io.ReadAll(io.LimitReader(r, validation.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) > validation.MaxFileSize {
		return nil, fmt.Errorf("document %s exceeds %d bytes", path, validation.MaxFileSize)
	}
	return data, nil
}

// WriteFile writes data to path atomically, creating parent directories
// as needed. Paths ending in .xz or .gz are compressed accordingly.
func WriteFile(path string, data []byte) error {
	if err := validation.ValidatePath(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".annotate-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if err := writeCompressed(tempFile, path, data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return err
	}

	// CreateTemp uses 0600; outputs get the usual file mode.
	if err := tempFile.Chmod(0644); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to set output mode: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Rename to final path (atomic on POSIX)
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename output: %w", err)
	}
	return nil
}

func writeCompressed(w io.Writer, path string, data []byte) error {
	var wc io.WriteCloser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		xzw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("xz writer: %w", err)
		}
		wc = xzw
	case ".gz":
		wc = gzip.NewWriter(w)
	default:
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to flush compressor: %w", err)
	}
	return nil
}
