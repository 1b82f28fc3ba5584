package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyResult is returned when an analysis payload is missing or null
var ErrEmptyResult = errors.New("analysis result is empty")

// AnalysisResult is the metadata the analysis service extracts from one image.
// Optional values are pointers so that "not present in the image" stays
// distinguishable from a zero value.
type AnalysisResult struct {
	FileName          string     `json:"fileName"`
	FileSize          int64      `json:"fileSize"`
	FileSizeFormatted string     `json:"fileSizeFormatted"`
	Format            string     `json:"format"`
	Dimensions        Dimensions `json:"dimensions"`
	EXIF              *EXIF      `json:"exif,omitempty"`
	Location          *Location  `json:"location,omitempty"`
}

// Dimensions in pixels
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EXIF holds the embedded capture metadata
type EXIF struct {
	DateTaken   *string   `json:"dateTaken,omitempty"`
	Camera      *Camera   `json:"camera,omitempty"`
	Settings    *Settings `json:"settings,omitempty"`
	Software    *string   `json:"software,omitempty"`
	Orientation *int      `json:"orientation,omitempty"`

	// keys counts the members of the decoded object, null ones included
	keys int
}

// UnmarshalJSON decodes the group and remembers how many keys it carried
func (e *EXIF) UnmarshalJSON(data []byte) error {
	type plain EXIF
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*e = EXIF(p)
	e.keys = len(members)
	return nil
}

// Camera identifies the capture device
type Camera struct {
	Make  *string `json:"make,omitempty"`
	Model *string `json:"model,omitempty"`
}

// Settings are the exposure settings at capture time
type Settings struct {
	ISO          *int     `json:"iso,omitempty"`
	Aperture     *float64 `json:"aperture,omitempty"`
	ShutterSpeed *string  `json:"shutterSpeed,omitempty"`
	FocalLength  *float64 `json:"focalLength,omitempty"`
	Flash        *bool    `json:"flash,omitempty"`
}

// Location is the GPS position recorded in the image
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Address   *string  `json:"address,omitempty"`
}

// Decode parses a serialized analysis result
func Decode(raw []byte) (AnalysisResult, error) {
	var result AnalysisResult
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return result, ErrEmptyResult
	}
	if trimmed[0] != '{' {
		return result, fmt.Errorf("analysis result is not an object")
	}
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return result, fmt.Errorf("failed to parse analysis result: %w", err)
	}
	return result, nil
}

// Populated reports whether at least one EXIF key is present, even one
// whose value is null
func (e *EXIF) Populated() bool {
	if e == nil {
		return false
	}
	return e.keys > 0 || e.DateTaken != nil || e.Camera != nil || e.Settings != nil ||
		e.Software != nil || e.Orientation != nil
}

// HasEXIF reports whether the EXIF group has anything to show
func (r AnalysisResult) HasEXIF() bool {
	return r.EXIF.Populated()
}

// HasLocation reports whether a usable GPS position is present
func (r AnalysisResult) HasLocation() bool {
	return r.Location != nil && r.Location.Latitude != nil && r.Location.Longitude != nil
}

var orientationLabels = map[int]string{
	1: "Normal",
	2: "Flipped horizontally",
	3: "Rotated 180°",
	4: "Flipped vertically",
	5: "Mirrored and rotated 270° CW",
	6: "Rotated 90° CW",
	7: "Mirrored and rotated 90° CW",
	8: "Rotated 270° CW",
}

// OrientationLabel describes an EXIF orientation code. Codes outside 1-8
// come back as "Value n".
func OrientationLabel(code int) string {
	if label, ok := orientationLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("Value %d", code)
}
