package intake

import (
	"errors"
	"net/url"
	"strings"
)

// ErrEmptyDrop is returned when a drop carries no path
var ErrEmptyDrop = errors.New("nothing was dropped")

// ParseDrop extracts the first file path from text a terminal pastes when a
// file is dragged onto it. Terminals quote the path, escape spaces with
// backslashes, or send a file:// URI depending on the emulator.
func ParseDrop(text string) (string, error) {
	paths := splitDrop(strings.TrimSpace(text))
	if len(paths) == 0 {
		return "", ErrEmptyDrop
	}

	p := paths[0]
	if strings.HasPrefix(p, "file://") {
		u, err := url.Parse(p)
		if err != nil {
			return "", err
		}
		p = u.Path
	}
	if p == "" {
		return "", ErrEmptyDrop
	}
	return p, nil
}

func splitDrop(text string) []string {
	var (
		paths   []string
		current strings.Builder
		quote   rune
		escaped bool
		inToken bool
	)

	flush := func() {
		if inToken {
			paths = append(paths, current.String())
			current.Reset()
			inToken = false
		}
	}

	for _, r := range text {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inToken = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	flush()

	return paths
}
