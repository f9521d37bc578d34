package renderstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"animatic/pkg/types"
)

// NoResultLog is the synthetic message for a stream that ended without a
// terminal result event.
const NoResultLog = "No result received"

// Client drives one streaming render request at a time against the backend.
// Each Stream call owns an independent decode buffer, so independent render
// requests may run concurrently on the same Client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient builds a stream client for the backend at baseURL.
// The HTTP client carries no global timeout: stream lifetime is bounded by
// the caller's context, not a per-request deadline.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 0},
		log:        log.With().Str("component", "renderstream").Logger(),
	}
}

// Stream renders code at the given quality, invoking onLog for every log
// line in arrival order before the stream completes, and returns the
// terminal result. Transport failures and premature stream ends are folded
// into an ok=false result: the caller never sees a second error path.
func (c *Client) Stream(ctx context.Context, code string, quality types.Quality, onLog func(string)) types.RenderResult {
	body, err := json.Marshal(types.RenderRequest{SceneCode: code, Quality: quality})
	if err != nil {
		return failure(fmt.Sprintf("Network error: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/render/stream", bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Sprintf("Network error: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("render stream open failed")
		renderStreamsTotal.WithLabelValues("transport_error").Inc()
		return failure(fmt.Sprintf("Network error: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		renderStreamsTotal.WithLabelValues("transport_error").Inc()
		return failure(fmt.Sprintf("Render request failed: %s: %s", resp.Status, tail))
	}

	res := Decode(resp.Body, onLog)
	if res.OK {
		renderStreamsTotal.WithLabelValues("ok").Inc()
	} else {
		renderStreamsTotal.WithLabelValues("failed").Inc()
	}
	return res
}

// Decode drains a stream body, forwarding log lines and returning the
// terminal result. Exposed separately so callers holding a raw body (tests,
// replays) share the exact semantics of Stream.
func Decode(r io.Reader, onLog func(string)) types.RenderResult {
	dec := NewDecoder(r)
	for {
		ev, err := dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return failure(fmt.Sprintf("Network error: %v", err))
			}
			return failure(NoResultLog)
		}
		switch e := ev.(type) {
		case LogEvent:
			if onLog != nil {
				onLog(e.Line)
			}
		case ResultEvent:
			// Exactly one result per stream; the body is drained by the
			// deferred close.
			return e.Result
		}
	}
}

func failure(msg string) types.RenderResult {
	return types.RenderResult{OK: false, Log: msg}
}
