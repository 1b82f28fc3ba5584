package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdxmph/huskytrace/pkg/intake"
	"github.com/pdxmph/huskytrace/pkg/testutil"
)

func candidate() intake.Candidate {
	return intake.FromBytes("IMG_0042.jpg", "image/jpeg", []byte("jpeg-bytes"))
}

func TestNew_Endpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:3333/api/v1/analyze", New("http://localhost:3333", Options{}).Endpoint())
	assert.Equal(t, "http://host/api/v1/analyze", New("http://host/", Options{}).Endpoint())
}

func TestAnalyze_Success(t *testing.T) {
	svc := testutil.NewFakeAnalysisService(t)
	client := New(svc.URL, Options{})

	data, err := client.Analyze(context.Background(), candidate())
	require.NoError(t, err)
	assert.JSONEq(t, testutil.SampleResult, string(data))
	assert.Equal(t, testutil.SampleResult, string(data), "payload is passed through verbatim")

	uploads := svc.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "IMG_0042.jpg", uploads[0].FileName)
	assert.Equal(t, "image/jpeg", uploads[0].ContentType)
	assert.Equal(t, int64(len("jpeg-bytes")), uploads[0].Size)
	assert.Equal(t, []string{"file"}, uploads[0].Fields)
}

func TestAnalyze_Failures(t *testing.T) {
	tests := []struct {
		name        string
		reply       testutil.Reply
		wantService bool
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "success false with message",
			reply:       testutil.Failure(http.StatusOK, "Unsupported image"),
			wantService: true, wantStatus: 200, wantMessage: "Unsupported image",
		},
		{
			name:        "success false without message",
			reply:       testutil.Reply{Status: http.StatusOK, Body: `{"success":false}`},
			wantService: true, wantStatus: 200, wantMessage: FallbackMessage,
		},
		{
			name:        "non-2xx with message",
			reply:       testutil.Failure(http.StatusUnprocessableEntity, "Corrupt file"),
			wantService: true, wantStatus: 422, wantMessage: "Corrupt file",
		},
		{
			name:        "non-2xx with html body",
			reply:       testutil.Reply{Status: http.StatusBadGateway, Body: "<html>bad gateway</html>"},
			wantService: true, wantStatus: 502, wantMessage: FallbackMessage,
		},
		{
			name:        "non-2xx claiming success",
			reply:       testutil.Reply{Status: http.StatusInternalServerError, Body: `{"success":true,"data":{}}`},
			wantService: true, wantStatus: 500, wantMessage: FallbackMessage,
		},
		{
			name:        "malformed json",
			reply:       testutil.Reply{Status: http.StatusOK, Body: `{"success":tru`},
			wantMessage: FallbackMessage,
		},
		{
			name:        "success without data",
			reply:       testutil.Reply{Status: http.StatusOK, Body: `{"success":true}`},
			wantMessage: FallbackMessage,
		},
		{
			name:        "success with non-object data",
			reply:       testutil.Reply{Status: http.StatusOK, Body: `{"success":true,"data":"oops"}`},
			wantMessage: FallbackMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeAnalysisService(t)
			svc.Respond(tt.reply)

			data, err := New(svc.URL, Options{}).Analyze(context.Background(), candidate())
			require.Error(t, err)
			assert.Nil(t, data)
			assert.Equal(t, tt.wantMessage, UserMessage(err))

			var svcErr *ServiceError
			var trErr *TransportError
			if tt.wantService {
				require.True(t, errors.As(err, &svcErr))
				assert.Equal(t, tt.wantStatus, svcErr.StatusCode)
			} else {
				require.True(t, errors.As(err, &trErr))
			}
			assert.Equal(t, 1, svc.Requests())
		})
	}
}

func TestAnalyze_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, Options{Timeout: time.Second}).Analyze(context.Background(), candidate())
	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, FallbackMessage, UserMessage(err))
	assert.NotContains(t, UserMessage(err), "connection refused")
}

func TestAnalyze_MissingContent(t *testing.T) {
	svc := testutil.NewFakeAnalysisService(t)
	_, err := New(svc.URL, Options{}).Analyze(context.Background(), intake.Candidate{Name: "x.png"})

	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, 0, svc.Requests())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "nope", UserMessage(&ServiceError{StatusCode: 400, Message: "nope"}))
	assert.Equal(t, FallbackMessage, UserMessage(&ServiceError{StatusCode: 400}))
	assert.Equal(t, FallbackMessage, UserMessage(&TransportError{Err: errors.New("dial tcp: refused")}))
	assert.Equal(t, FallbackMessage, UserMessage(errors.New("anything")))
}
