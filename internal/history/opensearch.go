package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eekfonky/healthcore/internal/alert"
)

// OpenSearchSink indexes alerts as documents. DSN form:
// opensearch://host:9200/index (http assumed; use opensearchs:// for TLS).
type OpenSearchSink struct {
	baseURL string
	index   string
	client  *http.Client
}

func NewOpenSearchSink(dsn string) (*OpenSearchSink, error) {
	d := strings.TrimSpace(dsn)
	scheme := "http"
	switch {
	case strings.HasPrefix(d, "opensearchs://"):
		scheme = "https"
		d = strings.TrimPrefix(d, "opensearchs://")
	case strings.HasPrefix(d, "opensearch://"):
		d = strings.TrimPrefix(d, "opensearch://")
	default:
		return nil, fmt.Errorf("unsupported opensearch DSN: %s", dsn)
	}
	host, index := d, "healthcore-alerts"
	if i := strings.IndexByte(d, '/'); i >= 0 {
		host = d[:i]
		if rest := strings.Trim(d[i+1:], "/"); rest != "" {
			index = rest
		}
	}
	if host == "" {
		return nil, fmt.Errorf("opensearch DSN missing host: %s", dsn)
	}
	return &OpenSearchSink{
		baseURL: scheme + "://" + host,
		index:   index,
		client:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (s *OpenSearchSink) Send(ctx context.Context, a alert.Alert) error {
	doc := map[string]any{
		"occurred_at": a.OccurredAt.UTC().Format(time.RFC3339Nano),
		"level":       string(a.Level),
		"type":        string(a.Type),
		"message":     a.Message,
		"value":       a.Value,
		"threshold":   a.Threshold,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	url := s.baseURL + "/" + s.index + "/_doc"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("opensearch index failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}

func (s *OpenSearchSink) Close() error { return nil }
