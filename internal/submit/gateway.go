// Package submit reports study rows to a remote append-only sink on a
// best-effort basis. Send never fails the caller: a network error or a
// timeout is logged and the row is dropped. There is no retry and no
// acknowledgement of persistence.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pavelanni/trustgate/internal/model"
)

// DefaultTimeout bounds how long Send waits for the sink.
const DefaultTimeout = 1500 * time.Millisecond

// requestCeiling caps the detached request after Send has stopped waiting.
const requestCeiling = 30 * time.Second

// Mirror keeps a local copy of every row handed to the gateway.
type Mirror interface {
	RecordSubmission(kind model.SubmissionKind, participantID, body string) error
}

// Gateway posts JSON rows to the sink URL.
type Gateway struct {
	sinkURL string
	timeout time.Duration
	client  *http.Client
	mirror  Mirror
	now     func() time.Time
}

// New creates a gateway. An empty sinkURL disables remote delivery; rows are
// still mirrored. A zero timeout means DefaultTimeout.
func New(sinkURL string, timeout time.Duration, mirror Mirror) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		sinkURL: sinkURL,
		timeout: timeout,
		client:  &http.Client{Timeout: requestCeiling},
		mirror:  mirror,
		now:     time.Now,
	}
}

// Send serializes row and fires it at the sink. It returns when the request
// settles, the timeout elapses or ctx is done, whichever comes first. The
// request itself is never cancelled.
func (g *Gateway) Send(ctx context.Context, kind model.SubmissionKind, participantID string, row any) {
	body, err := json.Marshal(row)
	if err != nil {
		slog.Error("marshal submission", "kind", kind, "participant_id", participantID, "error", err)
		return
	}

	if g.mirror != nil {
		if err := g.mirror.RecordSubmission(kind, participantID, string(body)); err != nil {
			slog.Warn("mirror submission", "kind", kind, "participant_id", participantID, "error", err)
		}
	}

	if g.sinkURL == "" {
		slog.Debug("no submission sink configured", "kind", kind)
		return
	}

	target, err := g.target()
	if err != nil {
		slog.Error("submission unavailable", "kind", kind, "error", err)
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- g.post(target, body)
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			slog.Warn("submission unavailable", "kind", kind, "participant_id", participantID, "error", err)
			return
		}
		slog.Debug("submission sent", "kind", kind, "participant_id", participantID)
	case <-timer.C:
		slog.Warn("submission unavailable", "kind", kind, "participant_id", participantID,
			"error", fmt.Sprintf("no response within %s", g.timeout))
	case <-ctx.Done():
		slog.Warn("submission unavailable", "kind", kind, "participant_id", participantID, "error", ctx.Err())
	}
}

// target appends the cache-busting timestamp parameter to the sink URL.
func (g *Gateway) target() (string, error) {
	u, err := url.Parse(g.sinkURL)
	if err != nil {
		return "", fmt.Errorf("parse sink URL: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(g.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (g *Gateway) post(target string, body []byte) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sink returned %s", resp.Status)
	}
	return nil
}
