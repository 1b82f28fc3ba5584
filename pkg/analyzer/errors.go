package analyzer

import (
	"errors"
	"fmt"
)

// FallbackMessage is shown whenever the service gives no usable reason
const FallbackMessage = "Could not analyze the image. Please try again."

// ServiceError means the analysis service answered and reported a failure,
// either with success false or a non-2xx status
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no reason given"
	}
	return fmt.Sprintf("analysis failed (status %d): %s", e.StatusCode, msg)
}

// TransportError means no usable answer came back: the request did not
// complete or the body could not be parsed
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("analysis request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text to show for a failed analysis. Only a
// message the service supplied is shown verbatim; transport detail never is.
func UserMessage(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return FallbackMessage
}
