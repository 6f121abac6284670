package resilience

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped", fmt.Errorf("fetch headlines: %w", NewTransientError(errors.New("rate limited"), 429)), true},
		{"plain", errors.New("invalid api key"), false},
		{"connection reset", fmt.Errorf("read tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"tls timeout text", errors.New("net/http: TLS handshake timeout"), true},
		{"unexpected eof text", errors.New("unexpected EOF"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 425, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be permanent", code)
		}
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError("oracle", 502, []byte("  bad gateway \n"))
	if !IsTransient(err) {
		t.Error("502 should be transient")
	}
	if !strings.Contains(err.Error(), "oracle: unexpected status 502: bad gateway") {
		t.Errorf("unexpected message %q", err.Error())
	}

	err = StatusError("oracle", 400, []byte(strings.Repeat("x", 1000)))
	if IsTransient(err) {
		t.Error("400 should be permanent")
	}
	if len(err.Error()) > 300 {
		t.Errorf("body should be truncated, got %d bytes", len(err.Error()))
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	if !errors.Is(te, inner) {
		t.Error("Unwrap should expose the inner error")
	}
	if te.Error() != "root cause" {
		t.Errorf("expected inner message, got %q", te.Error())
	}
	if te.StatusCode != 500 {
		t.Errorf("expected StatusCode 500, got %d", te.StatusCode)
	}
}
