package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdxmph/huskytrace/pkg/intake"
	"github.com/pdxmph/huskytrace/pkg/logging"
	"github.com/pdxmph/huskytrace/pkg/metadata"
)

// AnalyzePath is the endpoint path below the service base URL
const AnalyzePath = "/api/v1/analyze"

// FormField is the multipart field carrying the image
const FormField = "file"

const maxResponseSize = 8 << 20

// Response is the envelope every analysis answer is wrapped in
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Options configures a Client
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client talks to the remote analysis service
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a new analysis client for the service at baseURL
func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + AnalyzePath,
		httpClient: httpClient,
		logger:     logging.OrNop(opts.Logger).Named("analyzer"),
	}
}

// Endpoint returns the full analyze URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze uploads the candidate and returns the result payload exactly as
// the service sent it. Failures are *ServiceError or *TransportError.
func (c *Client) Analyze(ctx context.Context, candidate intake.Candidate) (json.RawMessage, error) {
	body, contentType, err := encodeForm(candidate)
	if err != nil {
		return nil, c.transportFailure(candidate, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, c.transportFailure(candidate, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(body.Len())

	c.logger.Debug("uploading for analysis",
		zap.String("endpoint", c.endpoint),
		zap.String("file", candidate.Name),
		zap.Int64("size", candidate.Size))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportFailure(candidate, fmt.Errorf("upload failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.transportFailure(candidate, fmt.Errorf("failed to read response: %w", err))
	}

	var envelope Response
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		svcErr := &ServiceError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			svcErr.Message = envelope.Error
		}
		c.logger.Info("analysis rejected",
			zap.String("file", candidate.Name),
			zap.Int("status", resp.StatusCode),
			zap.String("reason", svcErr.Message))
		return nil, svcErr
	}

	if decodeErr != nil {
		return nil, c.transportFailure(candidate, fmt.Errorf("failed to parse response: %w", decodeErr))
	}

	if !envelope.Success {
		c.logger.Info("analysis rejected",
			zap.String("file", candidate.Name),
			zap.Int("status", resp.StatusCode),
			zap.String("reason", envelope.Error))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if _, err := metadata.Decode(envelope.Data); err != nil {
		return nil, c.transportFailure(candidate, fmt.Errorf("malformed result: %w", err))
	}

	return envelope.Data, nil
}

func (c *Client) transportFailure(candidate intake.Candidate, err error) error {
	c.logger.Warn("analysis request failed",
		zap.String("endpoint", c.endpoint),
		zap.String("file", candidate.Name),
		zap.Error(err))
	return &TransportError{Err: err}
}

// encodeForm builds the multipart body. The part carries the declared type
// of the file, as a browser form would.
func encodeForm(candidate intake.Candidate) (*bytes.Buffer, string, error) {
	if candidate.Content == nil {
		return nil, "", fmt.Errorf("candidate %s has no content", candidate.Name)
	}

	file, err := candidate.Content.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FormField, escapeQuotes(candidate.Name)))
	contentType := candidate.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to copy file: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
