// Package opensearch ships audit events to an OpenSearch (or Elasticsearch)
// cluster by POSTing one JSON document per event.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/rdhost/internal/history"
)

// DefaultIndex receives events when the DSN names no index.
const DefaultIndex = "session-history"

// Sink indexes events under baseURL + "/" + index + "/_doc".
type Sink struct {
	client   *http.Client
	baseURL  string
	index    string
	username string
	password string
}

func New(baseURL, index, username, password string) *Sink {
	if index == "" {
		index = DefaultIndex
	}
	return &Sink{
		client:   &http.Client{Timeout: 5 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		index:    index,
		username: username,
		password: password,
	}
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, s.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode)
	}
	return nil
}
