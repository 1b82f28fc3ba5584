package gui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/pdxmph/huskytrace/pkg/config"
	"github.com/pdxmph/huskytrace/pkg/intake"
	"github.com/pdxmph/huskytrace/pkg/logging"
	"github.com/pdxmph/huskytrace/pkg/present"
	"github.com/pdxmph/huskytrace/pkg/preview"
	"github.com/pdxmph/huskytrace/pkg/session"
	"github.com/pdxmph/huskytrace/pkg/thumbnail"
	"github.com/pdxmph/huskytrace/pkg/upload"
)

// SessionFactory builds the session for a newly opened tab
type SessionFactory func(id string, onChange func(upload.State)) *session.Session

// Server handles GUI protocol communication
type Server struct {
	input      io.Reader
	output     io.Writer
	config     *config.Config
	newSession SessionFactory
	logger     *zap.Logger

	encMu   sync.Mutex
	encoder *json.Encoder

	// Session management
	sessions sync.Map // sessionID -> *session.Session
	inFlight sync.WaitGroup
}

// NewServer creates a new GUI protocol server
func NewServer(input io.Reader, output io.Writer, cfg *config.Config, factory SessionFactory, logger *zap.Logger) *Server {
	return &Server{
		input:      input,
		output:     output,
		config:     cfg,
		newSession: factory,
		logger:     logging.OrNop(logger).Named("gui"),
		encoder:    json.NewEncoder(output),
	}
}

// Run starts the server loop. It returns when input ends, after running
// uploads have finished.
func (s *Server) Run(ctx context.Context) error {
	decoder := json.NewDecoder(s.input)
	defer s.inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			var msg Message
			if err := decoder.Decode(&msg); err != nil {
				if err == io.EOF {
					return nil
				}
				s.sendError("", fmt.Sprintf("Invalid JSON: %v", err), CodeParse)
				// The decoder cannot recover from a syntax error
				return fmt.Errorf("decode message: %w", err)
			}

			s.handleMessage(ctx, &msg)
		}
	}
}

// handleMessage routes messages to appropriate handlers
func (s *Server) handleMessage(ctx context.Context, msg *Message) {
	s.logger.Debug("request", zap.String("command", msg.Command), zap.String("id", msg.ID))

	switch msg.Command {
	case CmdOpen:
		s.handleOpen(msg)
	case CmdSelect:
		s.handleSelect(msg)
	case CmdDrop:
		s.handleDrop(msg)
	case CmdDragEnter, CmdDragLeave:
		s.handleDrag(msg)
	case CmdReset:
		s.handleReset(msg)
	case CmdSubmit:
		s.handleSubmit(ctx, msg)
	case CmdResults:
		s.handleResults(ctx, msg)
	case CmdBack:
		s.handleBack(msg)
	case CmdClose:
		s.handleClose(ctx, msg)
	default:
		s.sendError(msg.ID, fmt.Sprintf("Unknown command: %s", msg.Command), CodeUnknownCommand)
	}
}

// handleOpen creates the session of a new tab
func (s *Server) handleOpen(msg *Message) {
	id := session.NewID()
	sess := s.newSession(id, func(st upload.State) {
		s.sendEvent(EventState, stateEvent(id, st))
	})
	s.sessions.Store(id, sess)

	s.sendResponse(msg.ID, OpenResponse{SessionID: id, Screen: string(sess.Screen())})
}

// handleSelect validates a picked file
func (s *Server) handleSelect(msg *Message) {
	var req SelectRequest
	if err := decodeData(msg.Data, &req); err != nil {
		s.sendError(msg.ID, "Invalid select request", CodeInvalidRequest)
		return
	}
	sess, ok := s.session(msg.ID, req.SessionID)
	if !ok {
		return
	}

	var err error
	switch {
	case req.Path != "":
		_, err = sess.SelectPath(req.Path)
	case req.Data != nil:
		_, err = sess.Select(intake.FromBytes(req.Name, req.MIMEType, req.Data))
	default:
		s.sendError(msg.ID, "Select needs a path or file data", CodeInvalidRequest)
		return
	}
	if err != nil {
		s.sendFailure(msg.ID, err)
		return
	}

	s.sendResponse(msg.ID, intakeResponse(sess))
}

// handleDrop validates a dropped file
func (s *Server) handleDrop(msg *Message) {
	var req DropRequest
	if err := decodeData(msg.Data, &req); err != nil {
		s.sendError(msg.ID, "Invalid drop request", CodeInvalidRequest)
		return
	}
	sess, ok := s.session(msg.ID, req.SessionID)
	if !ok {
		return
	}

	if _, err := sess.Drop(req.Text); err != nil {
		s.sendFailure(msg.ID, err)
		return
	}
	s.sendResponse(msg.ID, intakeResponse(sess))
}

// handleDrag toggles the drop highlight
func (s *Server) handleDrag(msg *Message) {
	sess, ok := s.sessionFromRequest(msg)
	if !ok {
		return
	}
	sess.SetDragging(msg.Command == CmdDragEnter)
	s.sendResponse(msg.ID, intakeResponse(sess))
}

// handleReset clears the selection
func (s *Server) handleReset(msg *Message) {
	sess, ok := s.sessionFromRequest(msg)
	if !ok {
		return
	}
	if err := sess.Reset(); err != nil {
		s.sendFailure(msg.ID, err)
		return
	}
	s.sendResponse(msg.ID, intakeResponse(sess))
}

// handleSubmit accepts the upload before reading the next message; the
// response is sent when it ends
func (s *Server) handleSubmit(ctx context.Context, msg *Message) {
	sess, ok := s.sessionFromRequest(msg)
	if !ok {
		return
	}
	finish, err := sess.Begin(ctx)
	if err != nil {
		s.sendFailure(msg.ID, err)
		return
	}

	s.inFlight.Add(1)
	go s.performSubmit(sess, finish, msg.ID)
}

// performSubmit runs one accepted upload and reports its outcome
func (s *Server) performSubmit(sess *session.Session, finish func() upload.State, messageID string) {
	defer s.inFlight.Done()

	state := finish()

	result := SubmitResult{SessionID: sess.ID, State: state.Name()}
	switch st := state.(type) {
	case upload.Succeeded:
		result.Success = true
		s.sendEvent(EventNavigate, NavigateEvent{SessionID: sess.ID, Screen: string(session.ScreenResults)})
	case upload.Failed:
		result.Error = st.Reason
	}
	s.sendResponse(messageID, result)
}

// handleResults loads the results screen or redirects to intake
func (s *Server) handleResults(ctx context.Context, msg *Message) {
	var req ResultsRequest
	if err := decodeData(msg.Data, &req); err != nil {
		s.sendError(msg.ID, "Invalid results request", CodeInvalidRequest)
		return
	}
	sess, ok := s.session(msg.ID, req.SessionID)
	if !ok {
		return
	}

	view, err := sess.Results(ctx)
	if errors.Is(err, present.ErrNoResult) {
		s.sendEvent(EventNavigate, NavigateEvent{SessionID: sess.ID, Screen: string(session.ScreenIntake)})
		s.sendResponse(msg.ID, ResultsResponse{SessionID: sess.ID, Redirect: string(session.ScreenIntake)})
		return
	}
	if err != nil {
		s.logger.Error("failed to load results", zap.Error(err))
		s.sendError(msg.ID, "Could not load the results", CodeInternal)
		return
	}

	resp := ResultsResponse{SessionID: sess.ID, View: view, Thumbnail: s.thumbnail(view.PreviewURL)}
	if req.Format != "" {
		var buf bytes.Buffer
		if err := present.Render(&buf, view, req.Format, present.RenderOptions{Templates: s.config.Templates}); err != nil {
			s.sendError(msg.ID, err.Error(), CodeInvalidRequest)
			return
		}
		resp.Output = buf.String()
	}
	s.sendResponse(msg.ID, resp)
}

// handleBack returns to the intake screen
func (s *Server) handleBack(msg *Message) {
	sess, ok := s.sessionFromRequest(msg)
	if !ok {
		return
	}
	if err := sess.Back(); err != nil {
		s.sendFailure(msg.ID, err)
		return
	}
	s.sendResponse(msg.ID, intakeResponse(sess))
}

// handleClose forgets a tab and everything it stored
func (s *Server) handleClose(ctx context.Context, msg *Message) {
	sess, ok := s.sessionFromRequest(msg)
	if !ok {
		return
	}
	if err := sess.Discard(ctx); err != nil {
		s.sendFailure(msg.ID, err)
		return
	}
	s.sessions.Delete(sess.ID)
	s.sendResponse(msg.ID, SessionRequest{SessionID: sess.ID})
}

// Helper methods

func (s *Server) sessionFromRequest(msg *Message) (*session.Session, bool) {
	var req SessionRequest
	if err := decodeData(msg.Data, &req); err != nil {
		s.sendError(msg.ID, "Invalid request", CodeInvalidRequest)
		return nil, false
	}
	return s.session(msg.ID, req.SessionID)
}

func (s *Server) session(messageID, sessionID string) (*session.Session, bool) {
	v, ok := s.sessions.Load(sessionID)
	if !ok {
		s.sendError(messageID, "Session not found", CodeSessionNotFound)
		return nil, false
	}
	return v.(*session.Session), true
}

func (s *Server) thumbnail(previewURL string) string {
	path, err := preview.PathFromURL(previewURL)
	if err != nil {
		return ""
	}
	thumb, err := thumbnail.Generate(path, thumbnail.DefaultMaxSize)
	if err != nil {
		s.logger.Debug("no thumbnail for preview", zap.String("preview", previewURL), zap.Error(err))
		return ""
	}
	return thumb.DataURL()
}

func (s *Server) sendResponse(id string, data interface{}) {
	s.send(Message{
		Type: TypeResponse,
		Data: data,
		ID:   id,
	})
}

func (s *Server) sendEvent(eventType string, data interface{}) {
	s.send(Message{
		Type:    TypeEvent,
		Command: eventType,
		Data:    data,
	})
}

func (s *Server) send(msg Message) {
	s.encMu.Lock()
	defer s.encMu.Unlock()
	if err := s.encoder.Encode(&msg); err != nil {
		s.logger.Warn("failed to write message", zap.Error(err))
	}
}

// sendError answers request id. Errors no request can own go out as events.
func (s *Server) sendError(id string, message string, code string) {
	resp := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if id == "" {
		s.sendEvent(EventError, resp)
		return
	}
	s.sendResponse(id, resp)
}

// sendFailure reports a domain error with its code
func (s *Server) sendFailure(id string, err error) {
	code := errorCode(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if code == CodeInvalidFile {
		resp.Error = "Could not read the selected file"
		resp.Details = err.Error()
	}
	s.sendResponse(id, resp)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, intake.ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, intake.ErrFileTooLarge):
		return CodeFileTooLarge
	case errors.Is(err, intake.ErrEmptyDrop):
		return CodeEmptyDrop
	case errors.Is(err, intake.ErrLocked), errors.Is(err, upload.ErrInFlight):
		return CodeUploadInProgress
	case errors.Is(err, upload.ErrCompleted):
		return CodeAlreadyCompleted
	case errors.Is(err, session.ErrNoCandidate):
		return CodeNoFileSelected
	default:
		return CodeInvalidFile
	}
}

func intakeResponse(sess *session.Session) IntakeResponse {
	resp := IntakeResponse{
		SessionID: sess.ID,
		Dragging:  sess.Dragging(),
		State:     sess.State().Name(),
	}
	if c, ok := sess.Candidate(); ok {
		path, _ := c.Path()
		resp.Candidate = &CandidateInfo{
			Name:          c.Name,
			MIMEType:      c.MIMEType,
			Size:          c.Size,
			SizeFormatted: humanize.IBytes(uint64(c.Size)),
			Path:          path,
		}
	}
	return resp
}

func stateEvent(sessionID string, st upload.State) StateEvent {
	ev := StateEvent{SessionID: sessionID, State: st.Name()}
	switch st := st.(type) {
	case upload.Uploading:
		ev.FileName = st.Candidate.Name
	case upload.Failed:
		ev.Reason = st.Reason
	}
	return ev
}

func decodeData(data interface{}, target interface{}) error {
	// Re-encode and decode to handle interface{} -> struct conversion
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
