package intake

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxSize is the largest file accepted for analysis
const MaxSize int64 = 25 * 1024 * 1024

// AcceptedTypes are the declared types the analysis service handles
var AcceptedTypes = []string{"image/png", "image/jpeg", "image/jpg"}

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFileTooLarge      = errors.New("file too large")
)

// ValidationError explains why a candidate was rejected. Kind is one of
// ErrUnsupportedFormat or ErrFileTooLarge.
type ValidationError struct {
	Kind     error
	Name     string
	MIMEType string
	Size     int64
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrFileTooLarge:
		return fmt.Sprintf("%s is too large (%s); the limit is %s",
			e.Name, humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(MaxSize)))
	default:
		mimeType := e.MIMEType
		if mimeType == "" {
			mimeType = "unknown type"
		}
		return fmt.Sprintf("%s has an unsupported format (%s); choose a PNG or JPEG image", e.Name, mimeType)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// Validate checks a candidate against the accepted types and the size
// ceiling. The type is checked first.
func Validate(c Candidate) error {
	if !IsAcceptedType(c.MIMEType) {
		return &ValidationError{Kind: ErrUnsupportedFormat, Name: c.Name, MIMEType: c.MIMEType, Size: c.Size}
	}
	if c.Size > MaxSize {
		return &ValidationError{Kind: ErrFileTooLarge, Name: c.Name, MIMEType: c.MIMEType, Size: c.Size}
	}
	return nil
}

// IsAcceptedType reports whether a declared type is one of AcceptedTypes.
// Case and media type parameters are ignored.
func IsAcceptedType(mimeType string) bool {
	mt := mimeType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mt = parsed
	} else {
		mt, _, _ = strings.Cut(mt, ";")
	}
	mt = strings.ToLower(strings.TrimSpace(mt))

	for _, accepted := range AcceptedTypes {
		if mt == accepted {
			return true
		}
	}
	return false
}
