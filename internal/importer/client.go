package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mitre-shield/internal/schema"
)

// Client submits rule batches to a remote mitre-shield server. It
// implements BulkCreator so the CLI import session works against a
// running API the same way the server works against its store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a bulk-import client for the given server base URL.
// The token, when set, is sent as a bearer credential.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type bulkRequest struct {
	Items       []schema.DetectionRule `json:"items"`
	AllowUpdate bool                   `json:"allowUpdate"`
}

type bulkResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Stats   BulkStats `json:"stats"`
	Error   string    `json:"error"`
}

// BulkCreate posts the batch to /api/rules/bulk and returns the server's
// import stats.
func (c *Client) BulkCreate(ctx context.Context, rules []schema.DetectionRule, allowUpdate bool) (BulkStats, error) {
	body, err := json.Marshal(bulkRequest{Items: rules, AllowUpdate: allowUpdate})
	if err != nil {
		return BulkStats{}, fmt.Errorf("failed to encode bulk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rules/bulk", bytes.NewReader(body))
	if err != nil {
		return BulkStats{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return BulkStats{}, fmt.Errorf("bulk import request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return BulkStats{}, fmt.Errorf("failed to read bulk response: %w", err)
	}

	var decoded bulkResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return BulkStats{}, fmt.Errorf("server returned status %d with unreadable body", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := decoded.Error
		if msg == "" {
			msg = decoded.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return BulkStats{}, fmt.Errorf("bulk import rejected: %s", msg)
	}

	return decoded.Stats, nil
}
