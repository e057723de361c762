package sheetfeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const atomContentType = "application/atom+xml"

// feedRequest describes one HTTP exchange with the feed service.
type feedRequest struct {
	Method      string
	URL         string
	Query       url.Values
	Body        []byte
	IfMatch     string
	IfNoneMatch string
}

// roundTrip builds the request with the current credentials for audience and
// executes it. Non-2xx responses are returned as *HTTPError with the body closed.
func (e *Executor) roundTrip(ctx context.Context, audience Audience, fr feedRequest) (*http.Response, error) {
	target, err := url.Parse(fr.URL)
	if err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("invalid feed url %q", fr.URL), Err: err}
	}
	if len(fr.Query) > 0 {
		q := target.Query()
		for k, vs := range fr.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if fr.Body != nil {
		body = bytes.NewReader(fr.Body)
	}
	req, err := http.NewRequestWithContext(ctx, fr.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	token, err := e.creds.Token(ctx, audience)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("GData-Version", e.cfg.GDataVersion)
	if e.cfg.ApplicationName != "" {
		req.Header.Set("User-Agent", e.cfg.ApplicationName)
	}
	if fr.Body != nil {
		req.Header.Set("Content-Type", atomContentType)
	}
	if fr.IfMatch != "" {
		req.Header.Set("If-Match", fr.IfMatch)
	}
	if fr.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", fr.IfNoneMatch)
	}

	res, err := e.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("feed exchange",
		zap.String("method", fr.Method),
		zap.String("url", target.String()),
		zap.Int("status", res.StatusCode))

	if err := checkResponse(res); err != nil {
		return nil, err
	}
	return res, nil
}

// checkResponse converts a non-2xx response into *HTTPError.
func checkResponse(res *http.Response) error {
	err := googleapi.CheckResponse(res)
	if err == nil {
		return nil
	}
	defer res.Body.Close()

	httpErr := &HTTPError{
		StatusCode:    res.StatusCode,
		StatusMessage: statusText(res),
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		httpErr.Body = apiErr.Body
		httpErr.err = apiErr
	}
	return httpErr
}

// statusText returns the reason phrase the server sent, e.g. "Token expired".
func statusText(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text == "" {
		text = http.StatusText(res.StatusCode)
	}
	return text
}

// drain discards the rest of a body so the connection can be reused.
func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
