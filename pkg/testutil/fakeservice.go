// Package testutil provides a scripted stand-in for the analysis service.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

// SampleResult is a complete analysis payload
const SampleResult = `{"fileName":"IMG_0042.jpg","fileSize":2483027,"fileSizeFormatted":"2.37 MB","format":"jpeg","dimensions":{"width":4032,"height":3024},"exif":{"dateTaken":"2024-05-01T10:22:03","camera":{"make":"Apple","model":"iPhone 13"},"settings":{"iso":64,"aperture":1.6,"shutterSpeed":"1/120","focalLength":5.1,"flash":false},"software":"17.4.1","orientation":6},"location":{"latitude":37.422,"longitude":-122.084,"altitude":12.34}}`

// BareResult is a payload without EXIF or location data
const BareResult = `{"fileName":"screenshot.png","fileSize":51234,"fileSizeFormatted":"50.03 KB","format":"png","dimensions":{"width":1280,"height":720}}`

// Reply is one scripted answer
type Reply struct {
	Status int
	Body   string
}

// Success wraps data in a successful envelope
func Success(data string) Reply {
	return Reply{Status: http.StatusOK, Body: `{"success":true,"data":` + data + `}`}
}

// Failure is a success:false envelope with the given message
func Failure(status int, message string) Reply {
	return Reply{Status: status, Body: `{"success":false,"error":"` + message + `"}`}
}

// Upload records what one request carried
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Fields      []string
}

// FakeAnalysisService serves POST /api/v1/analyze with scripted replies
type FakeAnalysisService struct {
	*httptest.Server

	mu       sync.Mutex
	queue    []Reply
	fallback Reply
	uploads  []Upload
	hold     chan struct{}
	arrived  chan struct{}
}

// NewFakeAnalysisService starts a fake service that answers with
// SampleResult until told otherwise. It is closed when the test ends.
func NewFakeAnalysisService(t testing.TB) *FakeAnalysisService {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeAnalysisService{
		fallback: Success(SampleResult),
		arrived:  make(chan struct{}, 16),
	}

	router := gin.New()
	router.POST("/api/v1/analyze", f.handleAnalyze)

	f.Server = httptest.NewServer(router)
	t.Cleanup(func() {
		f.mu.Lock()
		f.releaseLocked()
		f.mu.Unlock()
		f.Close()
	})
	return f
}

// Respond sets the reply used once the queue is empty
func (f *FakeAnalysisService) Respond(r Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = r
}

// Enqueue adds one-shot replies served before the fallback
func (f *FakeAnalysisService) Enqueue(replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, replies...)
}

// Hold makes requests block until the returned release func is called
func (f *FakeAnalysisService) Hold() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseLocked()
	hold := make(chan struct{})
	f.hold = hold
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.hold == hold {
			f.releaseLocked()
		}
	}
}

func (f *FakeAnalysisService) releaseLocked() {
	if f.hold != nil {
		close(f.hold)
		f.hold = nil
	}
}

// Arrived signals each request as it reaches the handler
func (f *FakeAnalysisService) Arrived() <-chan struct{} {
	return f.arrived
}

// Requests returns how many analyze requests were received
func (f *FakeAnalysisService) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// Uploads returns what each request carried
func (f *FakeAnalysisService) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

func (f *FakeAnalysisService) handleAnalyze(c *gin.Context) {
	upload := Upload{}
	if form, err := c.MultipartForm(); err == nil {
		for name := range form.Value {
			upload.Fields = append(upload.Fields, name)
		}
		for name := range form.File {
			upload.Fields = append(upload.Fields, name)
		}
	}
	if header, err := c.FormFile("file"); err == nil {
		upload.FileName = header.Filename
		upload.ContentType = header.Header.Get("Content-Type")
		upload.Size = header.Size
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, upload)
	reply := f.fallback
	if len(f.queue) > 0 {
		reply = f.queue[0]
		f.queue = f.queue[1:]
	}
	hold := f.hold
	f.mu.Unlock()

	select {
	case f.arrived <- struct{}{}:
	default:
	}

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			return
		}
	}

	c.Data(reply.Status, "application/json", []byte(reply.Body))
}
