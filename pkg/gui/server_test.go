package gui

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdxmph/huskytrace/pkg/analyzer"
	"github.com/pdxmph/huskytrace/pkg/config"
	"github.com/pdxmph/huskytrace/pkg/handoff"
	"github.com/pdxmph/huskytrace/pkg/session"
	"github.com/pdxmph/huskytrace/pkg/testutil"
	"github.com/pdxmph/huskytrace/pkg/upload"
)

// guiClient plays the GUI side of the pipe
type guiClient struct {
	t      *testing.T
	enc    *json.Encoder
	msgs   chan Message
	events []Message
	nextID int
}

func startServer(t *testing.T, svc *testutil.FakeAnalysisService) *guiClient {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	slots := handoff.NewMemorySlots()
	previews := t.TempDir()

	factory := func(id string, onChange func(upload.State)) *session.Session {
		return session.New(session.Deps{
			ID:         id,
			Analyzer:   analyzer.New(svc.URL, analyzer.Options{}),
			Slots:      slots,
			PreviewDir: filepath.Join(previews, id),
			OnChange:   onChange,
		})
	}
	srv := NewServer(inR, outW, config.Defaults(), factory, nil)

	c := &guiClient{t: t, enc: json.NewEncoder(inW), msgs: make(chan Message, 256)}
	go func() {
		dec := json.NewDecoder(outR)
		for {
			var m Message
			if err := dec.Decode(&m); err != nil {
				close(c.msgs)
				return
			}
			c.msgs <- m
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(context.Background())
		outW.Close()
	}()
	t.Cleanup(func() {
		inW.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return c
}

func (c *guiClient) send(command string, data interface{}) string {
	c.t.Helper()
	c.nextID++
	id := strconv.Itoa(c.nextID)
	require.NoError(c.t, c.enc.Encode(Message{Type: TypeRequest, Command: command, Data: data, ID: id}))
	return id
}

// await reads until the response to id, keeping events seen on the way
func (c *guiClient) await(id string) Message {
	c.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-c.msgs:
			require.True(c.t, ok, "server closed output")
			if m.Type == TypeEvent {
				c.events = append(c.events, m)
				continue
			}
			if m.ID == id {
				return m
			}
		case <-timeout:
			c.t.Fatalf("no response to %s", id)
		}
	}
}

func (c *guiClient) call(command string, data interface{}, target interface{}) Message {
	c.t.Helper()
	m := c.await(c.send(command, data))
	if target != nil {
		require.NoError(c.t, decodeData(m.Data, target))
	}
	return m
}

func (c *guiClient) open() string {
	c.t.Helper()
	var resp OpenResponse
	c.call(CmdOpen, nil, &resp)
	require.NotEmpty(c.t, resp.SessionID)
	assert.Equal(c.t, string(session.ScreenIntake), resp.Screen)
	return resp.SessionID
}

func (c *guiClient) eventsOf(kind string) []Message {
	var out []Message
	for _, e := range c.events {
		if e.Command == kind {
			out = append(out, e)
		}
	}
	return out
}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0644))
	return path
}

func TestServer_UploadAndResults(t *testing.T) {
	svc := testutil.NewFakeAnalysisService(t)
	c := startServer(t, svc)
	id := c.open()

	var intakeResp IntakeResponse
	c.call(CmdSelect, SelectRequest{SessionID: id, Path: writePNG(t)}, &intakeResp)
	require.NotNil(t, intakeResp.Candidate)
	assert.Equal(t, "shot.png", intakeResp.Candidate.Name)
	assert.Equal(t, "image/png", intakeResp.Candidate.MIMEType)
	assert.Equal(t, "idle", intakeResp.State)

	var result SubmitResult
	c.call(CmdSubmit, SessionRequest{SessionID: id}, &result)
	assert.True(t, result.Success)
	assert.Equal(t, "succeeded", result.State)

	var states []string
	for _, e := range c.eventsOf(EventState) {
		var ev StateEvent
		require.NoError(t, decodeData(e.Data, &ev))
		states = append(states, ev.State)
	}
	assert.Equal(t, []string{"uploading", "succeeded"}, states)

	nav := c.eventsOf(EventNavigate)
	require.Len(t, nav, 1)
	var navEvent NavigateEvent
	require.NoError(t, decodeData(nav[0].Data, &navEvent))
	assert.Equal(t, "results", navEvent.Screen)

	var results ResultsResponse
	c.call(CmdResults, ResultsRequest{SessionID: id, Format: "summary"}, &results)
	assert.Empty(t, results.Redirect)
	require.NotNil(t, results.View)
	assert.Contains(t, results.View.PreviewURL, "file://")
	assert.True(t, results.View.HasEXIF)
	require.NotNil(t, results.View.Location)
	assert.Equal(t, "37.422000, -122.084000", results.View.Location.Coordinates)
	assert.Contains(t, results.Output, "IMG_0042.jpg")

	var back IntakeResponse
	c.call(CmdBack, SessionRequest{SessionID: id}, &back)
	assert.Equal(t, "idle", back.State)
	assert.Nil(t, back.Candidate)
}

func TestServer_ResultsWithoutRecordRedirects(t *testing.T) {
	c := startServer(t, testutil.NewFakeAnalysisService(t))
	id := c.open()

	var results ResultsResponse
	c.call(CmdResults, ResultsRequest{SessionID: id}, &results)
	assert.Equal(t, "intake", results.Redirect)
	assert.Nil(t, results.View)
	require.Len(t, c.eventsOf(EventNavigate), 1)
}

func TestServer_ValidationErrors(t *testing.T) {
	svc := testutil.NewFakeAnalysisService(t)
	c := startServer(t, svc)
	id := c.open()

	var errResp ErrorResponse
	c.call(CmdSelect, SelectRequest{SessionID: id, Name: "anim.gif", MIMEType: "image/gif", Data: []byte("GIF89a")}, &errResp)
	assert.Equal(t, CodeUnsupportedFormat, errResp.Code)
	assert.Contains(t, errResp.Error, "anim.gif")

	c.call(CmdDrop, DropRequest{SessionID: id, Text: "   "}, &errResp)
	assert.Equal(t, CodeEmptyDrop, errResp.Code)

	c.call(CmdSelect, SelectRequest{SessionID: id}, &errResp)
	assert.Equal(t, CodeInvalidRequest, errResp.Code)

	c.call(CmdSubmit, SessionRequest{SessionID: id}, &errResp)
	assert.Equal(t, CodeNoFileSelected, errResp.Code)
	assert.Equal(t, 0, svc.Requests())
}

func TestServer_DropAndDrag(t *testing.T) {
	c := startServer(t, testutil.NewFakeAnalysisService(t))
	id := c.open()

	var resp IntakeResponse
	c.call(CmdDragEnter, SessionRequest{SessionID: id}, &resp)
	assert.True(t, resp.Dragging)

	c.call(CmdDrop, DropRequest{SessionID: id, Text: "file://" + writePNG(t)}, &resp)
	require.NotNil(t, resp.Candidate)
	assert.Equal(t, "shot.png", resp.Candidate.Name)

	var left IntakeResponse
	c.call(CmdDragLeave, SessionRequest{SessionID: id}, &left)
	assert.False(t, left.Dragging)
	assert.NotNil(t, left.Candidate)

	var reset IntakeResponse
	c.call(CmdReset, SessionRequest{SessionID: id}, &reset)
	assert.Nil(t, reset.Candidate)
}

func TestServer_ServiceFailure(t *testing.T) {
	svc := testutil.NewFakeAnalysisService(t)
	svc.Respond(testutil.Failure(422, "Not a photo"))
	c := startServer(t, svc)
	id := c.open()

	c.call(CmdSelect, SelectRequest{SessionID: id, Name: "a.jpg", MIMEType: "image/jpeg", Data: []byte("x")}, nil)

	var result SubmitResult
	c.call(CmdSubmit, SessionRequest{SessionID: id}, &result)
	assert.False(t, result.Success)
	assert.Equal(t, "failed", result.State)
	assert.Equal(t, "Not a photo", result.Error)
	assert.Empty(t, c.eventsOf(EventNavigate))
}

func TestServer_SubmitWhileUploading(t *testing.T) {
	svc := testutil.NewFakeAnalysisService(t)
	release := svc.Hold()
	c := startServer(t, svc)
	id := c.open()

	c.call(CmdSelect, SelectRequest{SessionID: id, Name: "a.jpg", MIMEType: "image/jpeg", Data: []byte("x")}, nil)
	first := c.send(CmdSubmit, SessionRequest{SessionID: id})

	select {
	case <-svc.Arrived():
	case <-time.After(5 * time.Second):
		t.Fatal("upload never reached the service")
	}

	var errResp ErrorResponse
	c.call(CmdSubmit, SessionRequest{SessionID: id}, &errResp)
	assert.Equal(t, CodeUploadInProgress, errResp.Code)

	c.call(CmdSelect, SelectRequest{SessionID: id, Name: "b.jpg", MIMEType: "image/jpeg", Data: []byte("y")}, &errResp)
	assert.Equal(t, CodeUploadInProgress, errResp.Code)

	release()
	var result SubmitResult
	require.NoError(t, decodeData(c.await(first).Data, &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, svc.Requests())

	c.call(CmdSubmit, SessionRequest{SessionID: id}, &errResp)
	assert.Equal(t, CodeNoFileSelected, errResp.Code)
}

func TestServer_BackToBackSubmits(t *testing.T) {
	svc := testutil.NewFakeAnalysisService(t)
	release := svc.Hold()
	c := startServer(t, svc)
	id := c.open()

	c.call(CmdSelect, SelectRequest{SessionID: id, Name: "a.jpg", MIMEType: "image/jpeg", Data: []byte("x")}, nil)

	// The second submit is read before the first request reaches the service
	first := c.send(CmdSubmit, SessionRequest{SessionID: id})
	second := c.send(CmdSubmit, SessionRequest{SessionID: id})

	var errResp ErrorResponse
	require.NoError(t, decodeData(c.await(second).Data, &errResp))
	assert.Equal(t, CodeUploadInProgress, errResp.Code)

	release()
	var result SubmitResult
	require.NoError(t, decodeData(c.await(first).Data, &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, svc.Requests())
}

func TestServer_ParseErrorIsAnEvent(t *testing.T) {
	var out bytes.Buffer
	srv := NewServer(strings.NewReader("{not json\n"), &out, config.Defaults(), nil, nil)

	err := srv.Run(context.Background())
	require.Error(t, err)

	var msg Message
	require.NoError(t, json.NewDecoder(&out).Decode(&msg))
	assert.Equal(t, TypeEvent, msg.Type)
	assert.Equal(t, EventError, msg.Command)

	var errResp ErrorResponse
	require.NoError(t, decodeData(msg.Data, &errResp))
	assert.Equal(t, CodeParse, errResp.Code)
}

func TestServer_CloseForgetsSession(t *testing.T) {
	c := startServer(t, testutil.NewFakeAnalysisService(t))
	id := c.open()

	var closed SessionRequest
	c.call(CmdClose, SessionRequest{SessionID: id}, &closed)
	assert.Equal(t, id, closed.SessionID)

	var errResp ErrorResponse
	c.call(CmdResults, ResultsRequest{SessionID: id}, &errResp)
	assert.Equal(t, CodeSessionNotFound, errResp.Code)
}

func TestServer_UnknownCommand(t *testing.T) {
	c := startServer(t, testutil.NewFakeAnalysisService(t))

	var errResp ErrorResponse
	c.call("upload", nil, &errResp)
	assert.Equal(t, CodeUnknownCommand, errResp.Code)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeAlreadyCompleted, errorCode(upload.ErrCompleted))
	assert.Equal(t, CodeUploadInProgress, errorCode(upload.ErrInFlight))
	assert.Equal(t, CodeNoFileSelected, errorCode(session.ErrNoCandidate))
	assert.Equal(t, CodeInvalidFile, errorCode(os.ErrNotExist))
}
