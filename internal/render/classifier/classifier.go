// internal/render/classifier/classifier.go
package classifier

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	apperrors "render-workers/internal/common/errors"
)

// Signal is a raw failure observation: an HTTP status, an API-level message,
// a transport error, or any combination of them.
type Signal struct {
	StatusCode int
	Message    string
	Err        error
	// TimedOut marks failures the caller already knows to be timeouts, such
	// as a job that never reached a terminal status within its poll budget.
	TimedOut bool
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

var (
	quotaKeywords = []string{
		"quota", "credit", "rate limit", "rate-limit", "ratelimit", "too many requests", "insufficient balance",
	}
	timeoutKeywords = []string{"timed out", "timeout", "deadline exceeded"}
	// Reachability phrases only. Element nouns such as "image" or "video"
	// also appear in template errors.
	assetKeywords = []string{
		"download", "fetch", "unreachable", "not reachable", "could not load", "failed to load",
		"empty source", "empty body", "empty file", "zero bytes",
		"file not found", "media not found", "source not found", "asset",
	}
	templateKeywords = []string{
		"template", "schema", "validation", "invalid", "unsupported", "property", "malformed", "parse",
	}
	networkKeywords = []string{
		"connection refused", "connection reset", "broken pipe", "no such host", "network", "eof", "tls handshake",
	}
)

// FromError builds a signal from an error, extracting the HTTP status when
// the error chain carries one.
func FromError(err error) Signal {
	if err == nil {
		return Signal{}
	}
	s := Signal{Err: err, Message: err.Error()}
	var sc StatusCoder
	if stderrors.As(err, &sc) {
		s.StatusCode = sc.HTTPStatus()
	}
	return s
}

// FromStatus builds a signal from a status code and response message.
func FromStatus(code int, message string) Signal {
	return Signal{StatusCode: code, Message: message}
}

// Classify maps a signal to exactly one category. It is total: anything not
// recognised is UNKNOWN_ERROR.
func Classify(s Signal) apperrors.Category {
	msg := strings.ToLower(s.Message)

	if s.TimedOut {
		return apperrors.CategoryTimeout
	}

	if s.StatusCode == 429 || containsAny(msg, quotaKeywords) {
		return apperrors.CategoryQuota
	}

	var stdErr *apperrors.StandardError
	if s.Err != nil && stderrors.As(s.Err, &stdErr) && stdErr.Category.Valid() {
		return stdErr.Category
	}

	if isTimeout(s.Err) || containsAny(msg, timeoutKeywords) {
		return apperrors.CategoryTimeout
	}

	if s.StatusCode == 0 && isTransport(s.Err) {
		return apperrors.CategoryNetwork
	}

	switch {
	case s.StatusCode >= 500 && s.StatusCode <= 599:
		return apperrors.CategoryNetwork
	case s.StatusCode >= 400 && s.StatusCode <= 499:
		if !containsAny(msg, templateKeywords) && containsAny(msg, assetKeywords) {
			return apperrors.CategoryAsset
		}
		return apperrors.CategoryTemplate
	}

	switch {
	case msg == "":
		return apperrors.CategoryUnknown
	case containsAny(msg, templateKeywords):
		return apperrors.CategoryTemplate
	case containsAny(msg, assetKeywords):
		return apperrors.CategoryAsset
	case containsAny(msg, networkKeywords):
		return apperrors.CategoryNetwork
	}

	return apperrors.CategoryUnknown
}

// ClassifyError is shorthand for Classify(FromError(err)).
func ClassifyError(err error) apperrors.Category {
	if err == nil {
		return apperrors.CategoryUnknown
	}
	return Classify(FromError(err))
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}

func isTransport(err error) bool {
	if err == nil {
		return false
	}
	var (
		ne net.Error
		ue *url.Error
		oe *net.OpError
	)
	switch {
	case stderrors.As(err, &oe), stderrors.As(err, &ue), stderrors.As(err, &ne):
		return true
	case stderrors.Is(err, io.EOF), stderrors.Is(err, io.ErrUnexpectedEOF):
		return true
	case stderrors.Is(err, syscall.ECONNREFUSED), stderrors.Is(err, syscall.ECONNRESET), stderrors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
