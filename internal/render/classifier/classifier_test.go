package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "render-workers/internal/common/errors"
)

type statusErr struct {
	code int
	msg  string
}

func (e *statusErr) Error() string   { return e.msg }
func (e *statusErr) HTTPStatus() int { return e.code }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		signal Signal
		want   apperrors.Category
	}{
		{name: "explicit timeout wins", signal: Signal{TimedOut: true, StatusCode: 429}, want: apperrors.CategoryTimeout},
		{name: "429", signal: FromStatus(429, "slow down"), want: apperrors.CategoryQuota},
		{name: "credits exhausted payload", signal: FromStatus(200, "Not enough credits to render"), want: apperrors.CategoryQuota},
		{name: "rate limit on 403", signal: FromStatus(403, "Rate limit exceeded for key"), want: apperrors.CategoryQuota},
		{name: "503", signal: FromStatus(503, "service unavailable"), want: apperrors.CategoryNetwork},
		{name: "500 empty", signal: FromStatus(500, ""), want: apperrors.CategoryNetwork},
		{name: "400 unsupported style", signal: FromStatus(400, "unsupported style property 'glow'"), want: apperrors.CategoryTemplate},
		{name: "422 no message", signal: FromStatus(422, ""), want: apperrors.CategoryTemplate},
		{name: "400 media download", signal: FromStatus(400, "could not download media from source"), want: apperrors.CategoryAsset},
		{name: "404 asset", signal: FromStatus(404, "Asset not reachable"), want: apperrors.CategoryAsset},
		{name: "422 template error naming an element", signal: FromStatus(422, "unsupported style property on image element"), want: apperrors.CategoryTemplate},
		{name: "400 invalid video resolution", signal: FromStatus(400, "invalid video resolution"), want: apperrors.CategoryTemplate},
		{name: "400 audio url unreachable", signal: FromStatus(400, "audio url unreachable"), want: apperrors.CategoryAsset},
		{name: "payload mentions video only", signal: Signal{Message: "video element has bad property 'blur'"}, want: apperrors.CategoryTemplate},
		{name: "payload failed to fetch image", signal: Signal{Message: "failed to fetch image for scene 2"}, want: apperrors.CategoryAsset},
		{name: "408 timeout message", signal: FromStatus(408, "request timeout"), want: apperrors.CategoryTimeout},
		{name: "payload empty image", signal: Signal{Message: "scene 3: image URL returned empty body"}, want: apperrors.CategoryAsset},
		{name: "payload schema", signal: Signal{Message: "schema validation failed"}, want: apperrors.CategoryTemplate},
		{name: "payload connection reset", signal: Signal{Message: "read: connection reset by peer"}, want: apperrors.CategoryNetwork},
		{name: "unrecognised", signal: Signal{Message: "something odd happened"}, want: apperrors.CategoryUnknown},
		{name: "empty signal", signal: Signal{}, want: apperrors.CategoryUnknown},
		{name: "2xx without keywords", signal: FromStatus(200, "render aborted"), want: apperrors.CategoryUnknown},
		{name: "418 falls to template", signal: FromStatus(418, "teapot"), want: apperrors.CategoryTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.signal))
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Category
	}{
		{name: "nil", err: nil, want: apperrors.CategoryUnknown},
		{name: "deadline", err: fmt.Errorf("poll: %w", context.DeadlineExceeded), want: apperrors.CategoryTimeout},
		{name: "net timeout", err: timeoutErr{}, want: apperrors.CategoryTimeout},
		{name: "dial refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, want: apperrors.CategoryNetwork},
		{name: "url error", err: &url.Error{Op: "Get", URL: "http://render", Err: io.EOF}, want: apperrors.CategoryNetwork},
		{name: "unexpected eof", err: fmt.Errorf("decode: %w", io.ErrUnexpectedEOF), want: apperrors.CategoryNetwork},
		{name: "wrapped status 429", err: fmt.Errorf("poll: %w", &statusErr{code: 429, msg: "too many"}), want: apperrors.CategoryQuota},
		{name: "wrapped status 502", err: fmt.Errorf("submit: %w", &statusErr{code: 502, msg: "bad gateway"}), want: apperrors.CategoryNetwork},
		{name: "status 400 template", err: &statusErr{code: 400, msg: "unsupported transition"}, want: apperrors.CategoryTemplate},
		{name: "standard error keeps category", err: apperrors.NewPlanInvalidError("scene 2 missing duration"), want: apperrors.CategoryTemplate},
		{name: "store error is network", err: apperrors.NewRecordStoreFailedError("get", errors.New("boom")), want: apperrors.CategoryNetwork},
		{name: "plain error", err: errors.New("boom"), want: apperrors.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestClassify_Total(t *testing.T) {
	for code := 0; code < 700; code++ {
		for _, msg := range []string{"", "x", "timeout", "quota", "asset", "schema"} {
			assert.True(t, Classify(FromStatus(code, msg)).Valid(), "code=%d msg=%q", code, msg)
		}
	}
}

func TestFromError(t *testing.T) {
	s := FromError(fmt.Errorf("wrap: %w", &statusErr{code: 404, msg: "gone"}))
	assert.Equal(t, 404, s.StatusCode)
	assert.Equal(t, "wrap: gone", s.Message)
	assert.Equal(t, Signal{}, FromError(nil))
}
