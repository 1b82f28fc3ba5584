package templates

import (
	"regexp"
	"sort"
	"strings"
)

// Variables holds all the available template variables
type Variables struct {
	// Basic info
	FileName   string
	Stem       string // file name without extension
	Format     string
	Size       string
	Dimensions string
	PreviewURL string

	// EXIF
	Camera      string
	DateTaken   string
	Orientation string
	Software    string

	// Location
	Latitude    string
	Longitude   string
	Coordinates string
	Altitude    string
	Address     string
	MapURL      string

	Summary string
}

var (
	// Match %variable% or %var1|var2|var3%
	templatePattern = regexp.MustCompile(`%([^%]+)%`)
)

// Process renders a template with the given variables
func Process(template string, vars Variables) string {
	return templatePattern.ReplaceAllStringFunc(template, func(match string) string {
		// Remove the % delimiters
		content := strings.Trim(match, "%")

		// First non-empty value of a fallback chain wins
		for _, part := range strings.Split(content, "|") {
			if value := getVariable(strings.TrimSpace(part), vars); value != "" {
				return value
			}
		}
		return ""
	})
}

var lookups = map[string]func(Variables) string{
	"file_name":   func(v Variables) string { return v.FileName },
	"filename":    func(v Variables) string { return v.Stem },
	"format":      func(v Variables) string { return v.Format },
	"size":        func(v Variables) string { return v.Size },
	"dimensions":  func(v Variables) string { return v.Dimensions },
	"preview_url": func(v Variables) string { return v.PreviewURL },
	"camera":      func(v Variables) string { return v.Camera },
	"date_taken":  func(v Variables) string { return v.DateTaken },
	"orientation": func(v Variables) string { return v.Orientation },
	"software":    func(v Variables) string { return v.Software },
	"latitude":    func(v Variables) string { return v.Latitude },
	"longitude":   func(v Variables) string { return v.Longitude },
	"coordinates": func(v Variables) string { return v.Coordinates },
	"altitude":    func(v Variables) string { return v.Altitude },
	"address":     func(v Variables) string { return v.Address },
	"map_url":     func(v Variables) string { return v.MapURL },
	"summary":     func(v Variables) string { return v.Summary },
}

// getVariable returns the value of a single variable
func getVariable(name string, vars Variables) string {
	if fn, ok := lookups[name]; ok {
		return fn(vars)
	}
	return ""
}

// Names lists the known variable names
func Names() []string {
	names := make([]string, 0, len(lookups))
	for name := range lookups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
