package gui

import "github.com/pdxmph/huskytrace/pkg/present"

// Message types
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Commands
const (
	CmdOpen      = "open"      // GUI → CLI: new tab, give me a session
	CmdSelect    = "select"    // GUI → CLI: file picked
	CmdDrop      = "drop"      // GUI → CLI: file dropped on the drop area
	CmdDragEnter = "dragenter" // GUI → CLI: something hovers the drop area
	CmdDragLeave = "dragleave" // GUI → CLI: hover ended
	CmdReset     = "reset"     // GUI → CLI: clear the selection
	CmdSubmit    = "submit"    // GUI → CLI: analyze the selection
	CmdResults   = "results"   // GUI → CLI: entering the results screen
	CmdBack      = "back"      // GUI → CLI: leaving the results screen
	CmdClose     = "close"     // GUI → CLI: tab closed
)

// Event types
const (
	EventState    = "state"
	EventNavigate = "navigate"
	EventError    = "error"
)

// Error codes
const (
	CodeParse             = "PARSE_ERROR"
	CodeUnknownCommand    = "UNKNOWN_COMMAND"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeInvalidFile       = "INVALID_FILE"
	CodeEmptyDrop         = "EMPTY_DROP"
	CodeNoFileSelected    = "NO_FILE_SELECTED"
	CodeUploadInProgress  = "UPLOAD_IN_PROGRESS"
	CodeAlreadyCompleted  = "ALREADY_COMPLETED"
	CodeInternal          = "INTERNAL"
)

// Message wraps all communication
type Message struct {
	Type    string      `json:"type"`    // request, response, event
	Command string      `json:"command"` // command or event type
	Data    interface{} `json:"data"`
	ID      string      `json:"id,omitempty"`
}

// SessionRequest addresses a session; most commands carry nothing else
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

// OpenResponse - A new session on the intake screen
type OpenResponse struct {
	SessionID string `json:"sessionId"`
	Screen    string `json:"screen"`
}

// SelectRequest - Either a path or the file bytes with name and type
type SelectRequest struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path,omitempty"`
	Name      string `json:"name,omitempty"`
	MIMEType  string `json:"mimeType,omitempty"`
	Data      []byte `json:"data,omitempty"` // base64 in JSON
}

// DropRequest - Text a drop delivered (path, quoted path or file:// URI)
type DropRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// CandidateInfo describes the selected file
type CandidateInfo struct {
	Name          string `json:"name"`
	MIMEType      string `json:"mimeType"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
	Path          string `json:"path,omitempty"`
}

// IntakeResponse - State of the intake screen after a command
type IntakeResponse struct {
	SessionID string         `json:"sessionId"`
	Candidate *CandidateInfo `json:"candidate,omitempty"`
	Dragging  bool           `json:"dragging"`
	State     string         `json:"state"`
}

// StateEvent - Upload state transition
type StateEvent struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"` // idle, uploading, succeeded, failed
	FileName  string `json:"fileName,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// NavigateEvent - The GUI should show another screen
type NavigateEvent struct {
	SessionID string `json:"sessionId"`
	Screen    string `json:"screen"`
}

// SubmitResult - Final result of a submit
type SubmitResult struct {
	SessionID string `json:"sessionId"`
	Success   bool   `json:"success"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

// ResultsRequest - Entering the results screen, optionally asking for a
// rendered output format
type ResultsRequest struct {
	SessionID string `json:"sessionId"`
	Format    string `json:"format,omitempty"`
}

// ResultsResponse - The results screen, or a redirect
type ResultsResponse struct {
	SessionID string        `json:"sessionId"`
	Redirect  string        `json:"redirect,omitempty"`
	View      *present.View `json:"view,omitempty"`
	Thumbnail string        `json:"thumbnail,omitempty"` // data: URL
	Output    string        `json:"output,omitempty"`
}

// ErrorResponse - Error response for any command
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // Error code for GUI handling
	Details string `json:"details,omitempty"` // Technical details
}
