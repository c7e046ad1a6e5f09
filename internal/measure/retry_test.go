package measure

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"google.golang.org/api/googleapi"
)

func TestDefaultRetryConfigHasSensibleValues(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts <= 0 {
		t.Fatalf("MaxAttempts should be positive, got %d", config.MaxAttempts)
	}
	if config.InitialDelay <= 0 {
		t.Fatalf("InitialDelay should be positive, got %v", config.InitialDelay)
	}
	if config.MaxDelay <= 0 {
		t.Fatalf("MaxDelay should be positive, got %v", config.MaxDelay)
	}
	if config.BackoffMultiplier <= 0 {
		t.Fatalf("BackoffMultiplier should be positive, got %v", config.BackoffMultiplier)
	}
	if config.InitialDelay >= config.MaxDelay {
		t.Fatalf("InitialDelay (%v) should be less than MaxDelay (%v)", config.InitialDelay, config.MaxDelay)
	}
}

func TestExecuteWithRetrySuccessOnFirstAttempt(t *testing.T) {
	callCount := 0
	result := ExecuteWithRetry(context.Background(), DefaultRetryConfig(), func() error {
		callCount++
		return nil
	})

	if !result.Success {
		t.Fatal("expected success")
	}
	if callCount != 1 {
		t.Fatalf("expected exactly 1 call for successful operation, got %d", callCount)
	}
	if result.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", result.Attempts)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected 0 errors for successful operation, got %d", len(result.Errors))
	}
}

func TestExecuteWithRetryZeroConfigAppliesDefaults(t *testing.T) {
	callCount := 0
	result := ExecuteWithRetry(context.Background(), RetryConfig{}, func() error {
		callCount++
		return nil
	})

	if !result.Success {
		t.Fatal("expected success")
	}
	if callCount != 1 {
		t.Fatalf("expected 1 call, got %d", callCount)
	}
}

func TestExecuteWithRetryNonRetryableErrorStopsImmediately(t *testing.T) {
	callCount := 0
	sentinel := context.DeadlineExceeded
	result := ExecuteWithRetry(context.Background(), DefaultRetryConfig(), func() error {
		callCount++
		return sentinel
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if callCount != 1 {
		t.Fatalf("a non-retryable error must not be retried, got %d calls", callCount)
	}
	if result.LastError != sentinel {
		t.Fatalf("expected LastError to be the sentinel, got %v", result.LastError)
	}
}

func TestExecuteWithRetryCompletesQuickly(t *testing.T) {
	start := time.Now()

	result := ExecuteWithRetry(context.Background(), DefaultRetryConfig(), func() error {
		return nil
	})

	elapsed := time.Since(start)
	if !result.Success {
		t.Fatal("expected success")
	}
	if elapsed > 100*time.Millisecond {
		t.Fatalf("ExecuteWithRetry took too long for success: %v", elapsed)
	}
}

func TestRetryResultStringDescribesSuccess(t *testing.T) {
	result := RetryResult{Attempts: 1, Success: true}
	str := result.String()
	if str == "" {
		t.Fatal("String() should not return empty string")
	}
	if !strings.Contains(str, "first") {
		t.Fatalf("expected success string to mention the first attempt, got %q", str)
	}
}

func TestRetryResultStringDescribesFailure(t *testing.T) {
	result := RetryResult{Attempts: 3, Success: false, LastError: context.DeadlineExceeded}
	str := result.String()
	if !strings.Contains(str, "3") || !strings.Contains(str, "failed") {
		t.Fatalf("expected failure string to mention attempt count and failure, got %q", str)
	}
}

func TestIsRetryableRejectsContextErrors(t *testing.T) {
	if IsRetryable(context.Canceled) {
		t.Fatal("context.Canceled must not be retryable")
	}
	if IsRetryable(context.DeadlineExceeded) {
		t.Fatal("context.DeadlineExceeded must not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
}

// fakeTimeoutError is a minimal net.Error whose Timeout() is fixed at
// construction, standing in for a dial or read timeout surfaced by a
// database/sql-backed counter's driver.
type fakeTimeoutError struct{ timeout bool }

func (e fakeTimeoutError) Error() string   { return "fake network error" }
func (e fakeTimeoutError) Timeout() bool   { return e.timeout }
func (e fakeTimeoutError) Temporary() bool { return e.timeout }

var _ net.Error = fakeTimeoutError{}

func TestIsRetryableAcceptsNetworkTimeout(t *testing.T) {
	if !IsRetryable(fakeTimeoutError{timeout: true}) {
		t.Fatal("a timing-out net.Error must be retryable")
	}
	if IsRetryable(fakeTimeoutError{timeout: false}) {
		t.Fatal("a non-timeout net.Error must not be retryable")
	}
}

func TestIsRetryableAcceptsBadConn(t *testing.T) {
	if !IsRetryable(driver.ErrBadConn) {
		t.Fatal("driver.ErrBadConn must be retryable: the statement never ran")
	}
	if !IsRetryable(fmt.Errorf("query failed: %w", driver.ErrBadConn)) {
		t.Fatal("a wrapped driver.ErrBadConn must still be retryable")
	}
}

func TestIsRetryablePostgresConnectionExceptionClass(t *testing.T) {
	connException := &pq.Error{Code: "08006"} // connection_failure
	if !IsRetryable(connException) {
		t.Fatal("pq.Error class 08 (connection exception) must be retryable")
	}

	syntaxError := &pq.Error{Code: "42601"} // syntax_error
	if IsRetryable(syntaxError) {
		t.Fatal("pq.Error class 42 (syntax error) must not be retryable")
	}
}

func TestIsRetryableBigQueryTransientStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryable(&googleapi.Error{Code: code}) {
			t.Fatalf("googleapi.Error with status %d must be retryable", code)
		}
	}
	if IsRetryable(&googleapi.Error{Code: 400}) {
		t.Fatal("googleapi.Error with status 400 (bad request) must not be retryable")
	}
	if IsRetryable(&googleapi.Error{Code: 403}) {
		t.Fatal("googleapi.Error with status 403 (permission denied) must not be retryable")
	}
}

func TestRetryableErrorUnwrapsToLastError(t *testing.T) {
	sentinel := context.DeadlineExceeded
	err := &RetryableError{Result: RetryResult{Attempts: 2, LastError: sentinel}}
	if err.Unwrap() != sentinel {
		t.Fatalf("expected Unwrap to return the last error")
	}
	if err.Error() == "" {
		t.Fatal("Error() should not return empty string")
	}
}
