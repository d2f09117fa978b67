package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNoProvider is returned when neither provider has credentials.
var ErrNoProvider = errors.New("no extraction provider configured")

// Provider sends a single system + user exchange to a language model and
// returns the raw text of the reply.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete runs one request. Implementations must honor ctx.
	Complete(ctx context.Context, req Request) (string, error)
}

// Operation labels a request for logging and metrics.
type Operation string

const (
	OperationText      Operation = "text"
	OperationVision    Operation = "vision"
	OperationTranslate Operation = "translate"
)

// Request is a provider-agnostic model request.
type Request struct {
	Operation Operation
	System    string
	Text      string
	Image     *Image
}

// Image is an inline base64 image.
type Image struct {
	MediaType string
	Data      string
}

// NewImage encodes raw bytes for inline transport.
func NewImage(mediaType string, raw []byte) *Image {
	return &Image{MediaType: mediaType, Data: base64.StdEncoding.EncodeToString(raw)}
}

// DataURL renders the image as a data: URL.
func (i *Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MediaType, i.Data)
}

// StatusError is a provider failure carrying an HTTP status.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is a provider throttling response.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || fmt.Sprint(apiErr.Code) == "rate_limit_exceeded"
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode == http.StatusTooManyRequests
	}

	return strings.Contains(err.Error(), "rate_limit_exceeded")
}
