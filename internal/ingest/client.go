package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AngelCh415/buyer-rollup/internal/utils"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{Timeout: timeout}
}

// StatusError is a non-2xx answer from a collaborator.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx: %d body=%s", e.Code, e.Body)
}

func getJSON(ctx context.Context, c HTTPClient, url string, v any) error {
	if url == "" {
		return errors.New("empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// GetJSONWithRetry retries transport errors, 429 and 5xx with backoff.
// 401/403 come back marked fatal; other 4xx are returned at once.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, b utils.Backoff, url string, dst any) error {
	return b.Do(ctx, func(int) (bool, error) {
		err := getJSON(ctx, c, url, dst)
		if err == nil {
			return false, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		var se *StatusError
		if errors.As(err, &se) {
			switch {
			case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
				return false, Fatal(err)
			case se.Code == http.StatusTooManyRequests || se.Code >= 500:
				return true, err
			default:
				return false, err
			}
		}
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return false, err
		}
		return true, err
	})
}
