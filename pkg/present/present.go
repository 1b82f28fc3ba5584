// Package present turns a stored analysis into the results screen.
package present

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/pdxmph/huskytrace/pkg/handoff"
	"github.com/pdxmph/huskytrace/pkg/logging"
	"github.com/pdxmph/huskytrace/pkg/metadata"
)

// ErrNoResult means there is nothing to show and the caller should go back
// to the intake screen without reporting an error
var ErrNoResult = errors.New("no analysis result for this session")

// Screen text
const (
	ReportBadge    = "ANALYSIS REPORT"
	ReportTitle    = "Complete Image Analysis"
	ReportSubtitle = "All metadata and information extracted from the image"
	PreviewTitle   = "Original image"
	BasicTitle     = "Basic information"
	EXIFTitle      = "EXIF metadata"
	LocationTitle  = "GPS location"
	MapLinkLabel   = "View on Google Maps"

	NoEXIFMessage = "No EXIF metadata available for this image."
	NoEXIFHint    = "Remember: social networks strip metadata from photos after upload."

	SummaryWithEXIF    = "Detected metadata processed successfully."
	SummaryWithoutEXIF = "This image contains no additional metadata."
)

const mapsBaseURL = "https://www.google.com/maps?q="

// Row is one label/value line
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section is a titled group of rows. When Present is false the section is
// shown with the Empty lines instead.
type Section struct {
	Title   string   `json:"title"`
	Present bool     `json:"present"`
	Rows    []Row    `json:"rows,omitempty"`
	Empty   []string `json:"empty,omitempty"`
}

// LocationSection is the GPS group with its map link
type LocationSection struct {
	Title       string  `json:"title"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Coordinates string  `json:"coordinates"`
	MapURL      string  `json:"mapUrl"`
	Rows        []Row   `json:"rows"`
}

// View is everything the results screen shows
type View struct {
	PreviewURL string                  `json:"previewUrl"`
	Result     metadata.AnalysisResult `json:"-"`
	Basic      Section                 `json:"basic"`
	EXIF       Section                 `json:"exif"`
	Location   *LocationSection        `json:"location,omitempty"`
	HasEXIF    bool                    `json:"hasExif"`
	Summary    string                  `json:"summary"`
}

// Presenter reads the session's record on entry to the results screen
type Presenter struct {
	reader handoff.Reader
	logger *zap.Logger
}

// New creates a new Presenter
func New(reader handoff.Reader, logger *zap.Logger) *Presenter {
	return &Presenter{reader: reader, logger: logging.OrNop(logger).Named("present")}
}

// Load builds the view, or returns ErrNoResult when the session holds no
// complete, readable record. It never writes to the store.
func (p *Presenter) Load(ctx context.Context) (*View, error) {
	rec, ok, err := p.reader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	if !ok {
		return nil, ErrNoResult
	}

	result, err := rec.Result()
	if err != nil {
		p.logger.Debug("stored result unreadable", zap.Error(err))
		return nil, ErrNoResult
	}

	return Build(rec.PreviewURL, result), nil
}

// Build projects an analysis result into a view
func Build(previewURL string, r metadata.AnalysisResult) *View {
	v := &View{
		PreviewURL: previewURL,
		Result:     r,
		Basic:      basicSection(r),
		HasEXIF:    r.HasEXIF(),
	}

	v.EXIF = Section{Title: EXIFTitle, Present: v.HasEXIF}
	if v.HasEXIF {
		v.EXIF.Rows = exifRows(r.EXIF)
	} else {
		v.EXIF.Empty = []string{NoEXIFMessage, NoEXIFHint}
	}

	if r.HasLocation() {
		v.Location = locationSection(r.Location)
	}

	if v.HasEXIF {
		v.Summary = SummaryWithEXIF
	} else {
		v.Summary = SummaryWithoutEXIF
	}
	return v
}

func basicSection(r metadata.AnalysisResult) Section {
	size := r.FileSizeFormatted
	if size == "" {
		size = humanize.Bytes(uint64(r.FileSize))
	}
	return Section{
		Title:   BasicTitle,
		Present: true,
		Rows: []Row{
			{"File name", r.FileName},
			{"Size", size},
			{"Format", r.Format},
			{"Dimensions", fmt.Sprintf("%d x %d", r.Dimensions.Width, r.Dimensions.Height)},
		},
	}
}

// fieldRule renders one EXIF field, or reports it absent
type fieldRule struct {
	label  string
	render func(e *metadata.EXIF) (string, bool)
}

var exifFields = []fieldRule{
	{"Date taken", func(e *metadata.EXIF) (string, bool) {
		return nonEmpty(e.DateTaken)
	}},
	{"Camera", func(e *metadata.EXIF) (string, bool) {
		if e.Camera == nil {
			return "", false
		}
		maker, _ := nonEmpty(e.Camera.Make)
		model, _ := nonEmpty(e.Camera.Model)
		if maker == "" && model == "" {
			return "", false
		}
		return strings.TrimSpace(maker + " " + model), true
	}},
	{"Orientation", func(e *metadata.EXIF) (string, bool) {
		if e.Orientation == nil {
			return "", false
		}
		return metadata.OrientationLabel(*e.Orientation), true
	}},
	{"ISO", func(e *metadata.EXIF) (string, bool) {
		if e.Settings == nil || e.Settings.ISO == nil || *e.Settings.ISO == 0 {
			return "", false
		}
		return strconv.Itoa(*e.Settings.ISO), true
	}},
	{"Aperture", func(e *metadata.EXIF) (string, bool) {
		if e.Settings == nil || e.Settings.Aperture == nil || *e.Settings.Aperture == 0 {
			return "", false
		}
		return fmt.Sprintf("f/%.1f", *e.Settings.Aperture), true
	}},
	{"Shutter speed", func(e *metadata.EXIF) (string, bool) {
		if e.Settings == nil {
			return "", false
		}
		return nonEmpty(e.Settings.ShutterSpeed)
	}},
	{"Focal length", func(e *metadata.EXIF) (string, bool) {
		if e.Settings == nil || e.Settings.FocalLength == nil || *e.Settings.FocalLength == 0 {
			return "", false
		}
		return formatNumber(*e.Settings.FocalLength) + "mm", true
	}},
	{"Flash", func(e *metadata.EXIF) (string, bool) {
		if e.Settings == nil || e.Settings.Flash == nil {
			return "", false
		}
		if *e.Settings.Flash {
			return "Fired", true
		}
		return "Did not fire", true
	}},
	{"Software", func(e *metadata.EXIF) (string, bool) {
		return nonEmpty(e.Software)
	}},
}

func exifRows(e *metadata.EXIF) []Row {
	var rows []Row
	for _, f := range exifFields {
		if value, ok := f.render(e); ok {
			rows = append(rows, Row{f.label, value})
		}
	}
	return rows
}

func locationSection(l *metadata.Location) *LocationSection {
	lat, lon := *l.Latitude, *l.Longitude
	coords := fmt.Sprintf("%.6f, %.6f", lat, lon)

	rows := []Row{{"Coordinates", coords}}
	if l.Altitude != nil {
		rows = append(rows, Row{"Altitude", fmt.Sprintf("%.1fm", *l.Altitude)})
	}
	if address, ok := nonEmpty(l.Address); ok {
		rows = append(rows, Row{"Address", address})
	}

	return &LocationSection{
		Title:       LocationTitle,
		Latitude:    lat,
		Longitude:   lon,
		Coordinates: coords,
		MapURL:      MapURL(lat, lon),
		Rows:        rows,
	}
}

// MapURL links to the position on Google Maps using the raw coordinates
func MapURL(lat, lon float64) string {
	return mapsBaseURL + formatNumber(lat) + "," + formatNumber(lon)
}

// formatNumber prints the shortest representation, as JSON numbers are written
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func nonEmpty(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	return *s, true
}
