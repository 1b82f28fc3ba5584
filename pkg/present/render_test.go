package present

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdxmph/huskytrace/pkg/testutil"
)

func TestRenderText_Full(t *testing.T) {
	v := Build("file:///p.jpg", decode(t, testutil.SampleResult))

	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, v, false))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, ReportBadge+"\n"+ReportTitle+"\n"))
	assert.Contains(t, out, "  file:///p.jpg\n")
	assert.Contains(t, out, "  File name       IMG_0042.jpg\n")
	assert.Contains(t, out, "  Orientation     Rotated 90° CW\n")
	assert.Contains(t, out, "  Coordinates     37.422000, -122.084000\n")
	assert.Contains(t, out, "View on Google Maps: https://www.google.com/maps?q=37.422,-122.084\n")
	assert.True(t, strings.HasSuffix(out, "✓ "+SummaryWithEXIF+"\n"))
	assert.NotContains(t, out, NoEXIFMessage)
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderText_NoEXIF(t *testing.T) {
	v := Build("file:///p.png", decode(t, testutil.BareResult))

	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, v, false))
	out := buf.String()

	assert.Contains(t, out, NoEXIFMessage)
	assert.Contains(t, out, NoEXIFHint)
	assert.NotContains(t, out, LocationTitle)
	assert.NotContains(t, out, "Orientation")
	assert.Contains(t, out, SummaryWithoutEXIF)
}

func TestRenderMarkdown(t *testing.T) {
	v := Build("file:///p.jpg", decode(t, testutil.SampleResult))

	var buf bytes.Buffer
	require.NoError(t, RenderMarkdown(&buf, v))
	out := buf.String()

	assert.Contains(t, out, "# "+ReportTitle+"\n")
	assert.Contains(t, out, "![Original image](file:///p.jpg)")
	assert.Contains(t, out, "| Camera | Apple iPhone 13 |")
	assert.Contains(t, out, "[View on Google Maps](https://www.google.com/maps?q=37.422,-122.084)")
	assert.Contains(t, out, "> "+SummaryWithEXIF)
}

func TestRenderMarkdown_EscapesPipes(t *testing.T) {
	v := Build("", decode(t, `{"fileName":"a|b.png"}`))

	var buf bytes.Buffer
	require.NoError(t, RenderMarkdown(&buf, v))
	assert.Contains(t, buf.String(), `| File name | a\|b.png |`)
	assert.Contains(t, buf.String(), "_"+NoEXIFMessage+"_")
}

func TestRenderJSON(t *testing.T) {
	v := Build("file:///p.jpg", decode(t, testutil.SampleResult))

	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, v))

	var got struct {
		PreviewURL string `json:"previewUrl"`
		HasEXIF    bool   `json:"hasExif"`
		Summary    string `json:"summary"`
		Location   struct {
			MapURL string `json:"mapUrl"`
		} `json:"location"`
		Metadata struct {
			FileName string `json:"fileName"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "file:///p.jpg", got.PreviewURL)
	assert.True(t, got.HasEXIF)
	assert.Equal(t, SummaryWithEXIF, got.Summary)
	assert.Equal(t, "https://www.google.com/maps?q=37.422,-122.084", got.Location.MapURL)
	assert.Equal(t, "IMG_0042.jpg", got.Metadata.FileName)
}

func TestRender_Dispatch(t *testing.T) {
	v := Build("file:///p.jpg", decode(t, testutil.SampleResult))
	opts := RenderOptions{Templates: map[string]string{"url": "%map_url|preview_url%"}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, v, "url", opts))
	assert.Equal(t, "https://www.google.com/maps?q=37.422,-122.084\n", buf.String())

	buf.Reset()
	require.NoError(t, Render(&buf, v, "", opts))
	assert.Contains(t, buf.String(), ReportTitle)

	assert.Error(t, Render(&buf, v, "yaml", opts))
}

func TestVariables(t *testing.T) {
	vars := Variables(Build("file:///p.jpg", decode(t, testutil.SampleResult)))

	assert.Equal(t, "IMG_0042.jpg", vars.FileName)
	assert.Equal(t, "IMG_0042", vars.Stem)
	assert.Equal(t, "2.37 MB", vars.Size)
	assert.Equal(t, "Apple iPhone 13", vars.Camera)
	assert.Equal(t, "37.422", vars.Latitude)
	assert.Equal(t, "-122.084", vars.Longitude)
	assert.Equal(t, "12.3m", vars.Altitude)
	assert.Empty(t, vars.Address)

	bare := Variables(Build("file:///s.png", decode(t, testutil.BareResult)))
	assert.Empty(t, bare.MapURL)
	assert.Empty(t, bare.Camera)
}
