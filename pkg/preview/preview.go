// Package preview keeps a session-local copy of each analyzed image so the
// results screen can show it without touching the original file again.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pdxmph/huskytrace/pkg/intake"
)

// ErrForeignPreview is returned for references outside the session directory
var ErrForeignPreview = errors.New("preview does not belong to this session")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Previews manages the preview files of one session
type Previews struct {
	mu   sync.Mutex
	root string
}

// New creates a new Previews rooted at dir
func New(dir string) *Previews {
	return &Previews{root: dir}
}

// DefaultDir returns the temp directory used for a session's previews
func DefaultDir(session string) string {
	return filepath.Join(os.TempDir(), "huskytrace", "previews", unsafeChars.ReplaceAllString(session, "_"))
}

// Dir returns the session directory
func (p *Previews) Dir() string {
	return p.root
}

// Create copies the candidate's bytes into the session directory and
// returns a file:// reference to the copy. Earlier previews of the session
// are removed once the new one is in place.
func (p *Previews) Create(ctx context.Context, c intake.Candidate) (string, error) {
	if c.Content == nil {
		return "", fmt.Errorf("candidate %s has no content", c.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(p.root, 0700); err != nil {
		return "", fmt.Errorf("create preview directory: %w", err)
	}

	src, err := c.Content.Open()
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer src.Close()

	name := "preview-" + uuid.NewString() + strings.ToLower(filepath.Ext(c.Name))
	path := filepath.Join(p.root, name)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("copy preview: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write preview: %w", err)
	}

	p.removeAllExcept(name)

	return FileURL(path), nil
}

// Release removes one preview
func (p *Previews) Release(ref string) error {
	path, err := p.own(ref)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove preview: %w", err)
	}
	return nil
}

// Purge removes the whole session directory
func (p *Previews) Purge() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return os.RemoveAll(p.root)
}

func (p *Previews) own(ref string) (string, error) {
	path, err := PathFromURL(ref)
	if err != nil {
		return "", err
	}
	root, err := filepath.Abs(p.root)
	if err != nil {
		return "", err
	}
	if filepath.Dir(path) != root {
		return "", ErrForeignPreview
	}
	return path, nil
}

func (p *Previews) removeAllExcept(keep string) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.Name() != keep && strings.HasPrefix(e.Name(), "preview-") {
			os.Remove(filepath.Join(p.root, e.Name()))
		}
	}
}

// FileURL turns a local path into a file:// reference
func FileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// PathFromURL resolves a file:// reference back to a local path
func PathFromURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse preview reference: %w", err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("not a local preview reference: %s", ref)
	}
	return filepath.Clean(filepath.FromSlash(u.Path)), nil
}

// ctxReader stops a copy when the context is cancelled
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
