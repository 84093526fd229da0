package fetch

import (
	"fmt"
	"net/http"
	"time"
)

// retryDo issues req, retrying on network errors, 429, and 5xx responses
// with exponential backoff starting at 1s and doubling, up to maxAttempts
// total tries. Grounded on the teacher's pkg/remote/retry.go; simplified
// since GET requests here carry no body to replay between attempts.
func retryDo(client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := client.Do(req)
		if err == nil {
			if !isRetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			lastErr = fmt.Errorf("retryable status %s", resp.Status)
			resp.Body.Close()
		} else {
			lastErr = err
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
