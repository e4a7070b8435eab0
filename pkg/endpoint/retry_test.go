package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestShouldRetry(t *testing.T) {
	dial := &url.Error{Op: "Post", URL: "http://x/", Err: &net.OpError{
		Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}}
	dns := &url.Error{Op: "Get", URL: "http://x/", Err: &net.OpError{
		Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "server misbehaving", Name: "x"},
	}}
	reset := &url.Error{Op: "Get", URL: "http://x/", Err: &net.OpError{
		Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET),
	}}
	eof := &url.Error{Op: "Get", URL: "http://x/", Err: io.EOF}
	scheme := &url.Error{Op: "Get", URL: "foo://x/", Err: errors.New(`unsupported protocol scheme "foo"`)}

	tests := []struct {
		name   string
		method string
		err    error
		want   bool
	}{
		{name: "nil", method: http.MethodGet, err: nil, want: false},
		{name: "dial refused get", method: http.MethodGet, err: dial, want: true},
		{name: "dial refused post", method: http.MethodPost, err: dial, want: true},
		{name: "dns put", method: http.MethodPut, err: dns, want: true},
		{name: "bare refused", method: http.MethodPost, err: syscall.ECONNREFUSED, want: true},
		{name: "reset get", method: http.MethodGet, err: reset, want: true},
		{name: "reset delete", method: http.MethodDelete, err: reset, want: true},
		{name: "reset post", method: http.MethodPost, err: reset, want: false},
		{name: "eof get", method: http.MethodGet, err: eof, want: true},
		{name: "eof post", method: http.MethodPost, err: eof, want: false},
		{name: "eof put", method: http.MethodPut, err: eof, want: false},
		{name: "bad scheme", method: http.MethodGet, err: scheme, want: false},
		{name: "unknown error", method: http.MethodGet, err: errors.New("boom"), want: false},
		{name: "timeout", method: http.MethodGet, err: fmt.Errorf("%w: deadline", ErrTimeout), want: false},
		{name: "canceled", method: http.MethodGet, err: fmt.Errorf("get: %w", context.Canceled), want: false},
		{name: "deadline", method: http.MethodGet, err: context.DeadlineExceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.method, tt.err); got != tt.want {
				t.Errorf("shouldRetry(%s, %v) = %v, want %v", tt.method, tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryConnection(t *testing.T) {
	noSleep(t)

	connErr := fmt.Errorf("read: %w", syscall.ECONNRESET)
	errUnknown := errors.New("boom")
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 2}

	tests := []struct {
		name          string
		failures      int
		failWith      error
		wantAttempts  int
		wantErr       error
		wantExhausted bool
	}{
		{name: "first try", failures: 0, wantAttempts: 1},
		{name: "recovers", failures: 2, failWith: connErr, wantAttempts: 3},
		{name: "exhausted", failures: 5, failWith: connErr, wantAttempts: 3, wantErr: connErr, wantExhausted: true},
		{name: "timeout is final", failures: 5, failWith: ErrTimeout, wantAttempts: 1, wantErr: ErrTimeout},
		{name: "unknown error is final", failures: 5, failWith: errUnknown, wantAttempts: 1, wantErr: errUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := retryConnection(context.Background(), cfg, http.MethodGet, zerolog.Nop(), func() error {
				attempts++
				if attempts <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrRetryExhausted); got != tt.wantExhausted {
				t.Errorf("errors.Is(err, ErrRetryExhausted) = %v, want %v", got, tt.wantExhausted)
			}
		})
	}
}

func TestRetryConnection_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	_ = retryConnection(context.Background(), RetryConfig{}, http.MethodGet, zerolog.Nop(), func() error {
		attempts++
		return syscall.ECONNREFUSED
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryConnection_ContextCancelledDuringBackoff(t *testing.T) {
	noSleep(t)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := retryConnection(ctx, DefaultRetryConfig(), http.MethodGet, zerolog.Nop(), func() error {
		attempts++
		cancel()
		return syscall.ECONNREFUSED
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
