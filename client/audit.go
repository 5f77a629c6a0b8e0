package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ErrStreamClosed is returned by Tail when the server ends the stream, for
// example on shutdown. Callers may reconnect.
var ErrStreamClosed = errors.New("audit stream closed by server")

// AuditService handles audit log operations.
type AuditService struct {
	c *Client
}

// List queries the audit log. Entries come back newest first.
func (s *AuditService) List(ctx context.Context, opts *AuditQueryOptions) (*AuditQueryResult, error) {
	var resp AuditQueryResult
	if err := s.c.get(ctx, "/api/v1/audit", opts.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (o *AuditQueryOptions) values() url.Values {
	params := url.Values{}
	if o == nil {
		return params
	}
	for k, v := range map[string]string{
		"type":        o.Type,
		"action":      o.Action,
		"name":        o.Name,
		"user":        o.User,
		"project":     o.Project,
		"environment": o.Environment,
		"parameter":   o.Parameter,
		"before":      o.Before,
		"after":       o.After,
	} {
		if v != "" {
			params.Set(k, v)
		}
	}
	if o.MaxEntries != nil {
		params.Set("max_entries", strconv.Itoa(*o.MaxEntries))
	}
	if o.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(o.PageSize))
	}
	return params
}

// Get returns a single audit entry by its sequence id.
func (s *AuditService) Get(ctx context.Context, id int64) (*AuditEntry, error) {
	var e AuditEntry
	if err := s.c.get(ctx, "/api/v1/audit/"+strconv.FormatInt(id, 10), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Summary returns the audit log size, time span, and retention policy.
func (s *AuditService) Summary(ctx context.Context) (*AuditSummary, error) {
	var sum AuditSummary
	if err := s.c.get(ctx, "/api/v1/audit/summary", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// Purge applies the retention policy now, optionally with overrides.
func (s *AuditService) Purge(ctx context.Context, opts *PurgeOptions) (*PruneResult, error) {
	params := url.Values{}
	if opts != nil {
		if opts.MaxDays != nil {
			params.Set("max_days", strconv.Itoa(*opts.MaxDays))
		}
		if opts.MaxRecords != nil {
			params.Set("max_records", strconv.Itoa(*opts.MaxRecords))
		}
	}

	var res PruneResult
	if err := s.c.del(ctx, "/api/v1/audit", params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Record submits entries for asynchronous ingest and returns their event ids.
func (s *AuditService) Record(ctx context.Context, entries []NewAuditEntry) ([]string, error) {
	body := struct {
		Entries []NewAuditEntry `json:"entries"`
	}{Entries: entries}

	var resp struct {
		EventIDs []string `json:"event_ids"`
	}
	if err := s.c.post(ctx, "/api/v1/audit/events", body, &resp); err != nil {
		return nil, err
	}
	return resp.EventIDs, nil
}

// Tail streams newly committed audit entries matching filter and calls fn for
// each one until ctx is cancelled, fn fails, or the server closes the stream.
// Cancellation returns nil.
func (s *AuditService) Tail(ctx context.Context, filter StreamFilter, fn func(StreamEvent) error) error {
	u, err := s.streamURL(filter)
	if err != nil {
		return err
	}

	header := http.Header{}
	if s.c.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.c.apiKey)
	}

	conn, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Code: "stream_rejected", Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("connecting to audit stream: %w", err)
	}
	defer conn.CloseNow() //nolint:errcheck // close after normal shutdown is a no-op.

	for {
		var ev StreamEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // best-effort close.
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusGoingAway, websocket.StatusNormalClosure:
				return ErrStreamClosed
			}
			return fmt.Errorf("reading audit stream: %w", err)
		}

		if ev.Type == "shutdown" {
			return ErrStreamClosed
		}
		if err := fn(ev); err != nil {
			conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // best-effort close.
			return err
		}
	}
}

func (s *AuditService) streamURL(filter StreamFilter) (string, error) {
	u, err := url.Parse(s.c.baseURL + "/api/v1/audit/stream")
	if err != nil {
		return "", fmt.Errorf("parsing stream URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	params := url.Values{}
	if filter.Type != "" {
		params.Set("type", filter.Type)
	}
	if filter.Action != "" {
		params.Set("action", filter.Action)
	}
	if filter.Name != "" {
		params.Set("name", filter.Name)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}
