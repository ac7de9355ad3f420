package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/uireg/internal/errors"
)

const maxResponseBody = 4 << 20

// RemoteClient calls a search_components RPC:
//
//	POST {base}/rpc/search_components  {"search_query": "..."}
//
// Responses are decoded loosely and validated row by row; a row missing a
// required field fails the whole call with E210.
type RemoteClient struct {
	base   string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// NewRemoteClient creates a client for the RPC service at base.
func NewRemoteClient(base, apiKey string, logger *slog.Logger) *RemoteClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteClient{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "remote_search"),
	}
}

// Search implements Searcher.
func (c *RemoteClient) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}

	body, err := json.Marshal(map[string]string{"search_query": query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/rpc/search_components", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New("E203").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.New("E203").Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.New("E203").Wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("E203").
			WithDetailf("search service returned %s", resp.Status)
	}

	results, err := decodeResults(data)
	if err != nil {
		c.logger.Warn("search response rejected", "error", err)
		return nil, err
	}
	return results, nil
}

// decodeResults validates the RPC rows against the fields a Result needs.
func decodeResults(data []byte) ([]Result, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.New("E210").WithDetailf("expected an array of objects: %v", err)
	}

	results := make([]Result, 0, len(rows))
	for i, row := range rows {
		r, err := decodeRow(row)
		if err != nil {
			return nil, errors.New("E210").WithDetailf("row %d: %v", i, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func decodeRow(row map[string]any) (Result, error) {
	var r Result
	var err error
	if r.ID, err = requiredID(row, "id"); err != nil {
		return r, err
	}
	if r.Slug, err = requiredString(row, "component_slug"); err != nil {
		return r, err
	}
	if r.Name, err = requiredString(row, "name"); err != nil {
		return r, err
	}
	if r.UserID, err = requiredString(row, "user_id"); err != nil {
		return r, err
	}
	if r.Description, err = optionalString(row, "description"); err != nil {
		return r, err
	}
	if r.PreviewURL, err = optionalString(row, "preview_url"); err != nil {
		return r, err
	}
	if r.CodeURL, err = optionalString(row, "code"); err != nil {
		return r, err
	}

	user, ok := row["user_data"].(map[string]any)
	if !ok {
		return r, fmt.Errorf("user_data: expected object, got %T", row["user_data"])
	}
	if r.Username, err = requiredString(user, "username"); err != nil {
		return r, fmt.Errorf("user_data.%w", err)
	}
	return r, nil
}

func requiredString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s: missing", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", key, v)
	}
	if s == "" {
		return "", fmt.Errorf("%s: empty", key)
	}
	return s, nil
}

// requiredID accepts string or integral numeric ids.
func requiredID(m map[string]any, key string) (string, error) {
	if n, ok := m[key].(float64); ok && n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10), nil
	}
	return requiredString(m, key)
}

func optionalString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", key, v)
	}
	return s, nil
}
