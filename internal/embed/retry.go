package embed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// statusError classifies a non-2xx provider response. 429 and 5xx are
// retryable; other statuses are not.
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := fmt.Sprintf("%s returned %d: %s", provider, resp.StatusCode, string(body))

	var e *ierrors.IngestError
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e = ierrors.New(ierrors.ErrCodeRateLimited, msg, nil)
		if after := resp.Header.Get("Retry-After"); after != "" {
			e.WithDetail("retry_after", after)
		}
	case resp.StatusCode >= 500:
		e = ierrors.New(ierrors.ErrCodeNetworkUnavailable, msg, nil)
	default:
		e = ierrors.New(ierrors.ErrCodeEmbeddingFailed, msg, nil)
	}
	return e.WithDetail("provider", provider).WithDetail("status", strconv.Itoa(resp.StatusCode))
}

// transportError classifies a failed round trip. Timeouts and refused
// connections are retryable; cancellation is returned as-is.
func transportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ierrors.New(ierrors.ErrCodeNetworkTimeout, fmt.Sprintf("%s request timed out", provider), err)
	}
	return ierrors.New(ierrors.ErrCodeNetworkUnavailable, fmt.Sprintf("%s unreachable: %v", provider, err), err).
		WithDetail("provider", provider)
}

// retryRequest runs fn with the default backoff, bounding each attempt by
// timeout. Errors left after the last attempt are reported as ERR_502.
func retryRequest[T any](ctx context.Context, cfg ierrors.RetryConfig, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	out, err := ierrors.RetryWithResult(ctx, cfg, func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(attemptCtx)
	})
	if err != nil && ctx.Err() == nil && ierrors.GetCode(err) != ierrors.ErrCodeEmbeddingFailed {
		return out, ierrors.New(ierrors.ErrCodeEmbeddingFailed, err.Error(), err)
	}
	return out, err
}

func countMismatch(want, got int) error {
	return ierrors.New(ierrors.ErrCodeEmbeddingFailed,
		fmt.Sprintf("provider returned %d embeddings for %d texts", got, want), nil)
}
