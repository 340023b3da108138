// Package validation provides input validation for the paths and files the
// annotator reads and writes, guarding against malformed paths and resource
// exhaustion.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// Security limits to prevent DoS attacks (CWE-400).
const (
	// MaxFileSize is the maximum allowed document size after decompression (256 MB).
	MaxFileSize = 256 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrTypeMismatch     = errors.New("file type mismatch")
)

// ValidatePath checks a path for length limits and invalid characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}

	// Check for null bytes
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}

	return nil
}

// FileType represents a detected document container.
type FileType string

const (
	FileTypeXZ      FileType = "xz"
	FileTypeGzip    FileType = "gzip"
	FileTypeXML     FileType = "xml"
	FileTypeUnknown FileType = "unknown"
)

// magicBytes defines magic byte signatures for compressed containers.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeGzip, []byte{0x1f, 0x8b}},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
}

// HeaderSize is the number of leading bytes DetectFileType inspects.
const HeaderSize = 512

// DetectFileType classifies a document from its leading bytes: a
// compressed container, plain XML text, or unknown.
func DetectFileType(header []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(header, sig.magic) {
			return sig.fileType
		}
	}
	if isLikelyText(header) {
		return FileTypeXML
	}
	return FileTypeUnknown
}

// ValidateFileType reads the header of r and checks it against the
// compression suffix of filename (.xz, .gz or none). The header is
// returned so the caller can replay it.
func ValidateFileType(r io.Reader, filename string) (FileType, []byte, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, nil, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	detected := DetectFileType(buf)
	expected := fileTypeFromExtension(filename)

	switch {
	case detected == FileTypeUnknown:
		return FileTypeUnknown, buf, fmt.Errorf("%w: %s does not look like XML", ErrTypeMismatch, filename)
	case expected != FileTypeXML && detected != expected:
		return FileTypeUnknown, buf, fmt.Errorf("%w: extension suggests %s but content is %s", ErrTypeMismatch, expected, detected)
	}
	return detected, buf, nil
}

// fileTypeFromExtension determines the expected container from the
// filename suffix. Anything without a compression suffix is treated as XML.
func fileTypeFromExtension(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xz":
		return FileTypeXZ
	case ".gz", ".tgz":
		return FileTypeGzip
	default:
		return FileTypeXML
	}
}

// isLikelyText checks if the buffer contains likely text content.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}

	// Null bytes are a strong indicator of binary content
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
		// UTF-8 lead and continuation bytes are neutral
	}

	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
