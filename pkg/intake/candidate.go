package intake

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Content gives access to the bytes behind a candidate
type Content interface {
	Open() (io.ReadCloser, error)
}

// FileContent reads a candidate from disk
type FileContent string

// Open opens the file
func (p FileContent) Open() (io.ReadCloser, error) {
	return os.Open(string(p))
}

// BytesContent serves a candidate held in memory
type BytesContent []byte

// Open returns a reader over the bytes
func (b BytesContent) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Candidate is a file the user picked but has not submitted yet
type Candidate struct {
	Name     string
	MIMEType string
	Size     int64
	Content  Content
}

// FromPath describes the file at path. The declared type comes from the
// extension, the same way a browser fills File.type; content sniffing is
// only the fallback for unknown extensions.
func FromPath(path string) (Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return Candidate{}, fmt.Errorf("%s is a directory", path)
	}

	mimeType, err := DetectMIMEType(path)
	if err != nil {
		return Candidate{}, err
	}

	return Candidate{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     info.Size(),
		Content:  FileContent(path),
	}, nil
}

// FromBytes builds a candidate from an in-memory upload
func FromBytes(name, mimeType string, data []byte) Candidate {
	return Candidate{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Content:  BytesContent(data),
	}
}

// DetectMIMEType returns the declared type of the file at path
func DetectMIMEType(path string) (string, error) {
	if ext := filepath.Ext(path); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			return t, nil
		}
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect file type: %w", err)
	}
	return mt.String(), nil
}

// Path returns the on-disk location, if the candidate has one
func (c Candidate) Path() (string, bool) {
	p, ok := c.Content.(FileContent)
	return string(p), ok
}
