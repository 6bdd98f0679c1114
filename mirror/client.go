package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/summarizer"
)

// UpstreamAssistant is the wire shape returned by the upstream engine for
// a single assistant.
type UpstreamAssistant struct {
	ID          string                 `json:"id"`
	GraphID     string                 `json:"graph_id"`
	Name        string                 `json:"name"`
	Config      map[string]interface{} `json:"config"`
	Metadata    map[string]interface{} `json:"metadata"`
	Description string                 `json:"description"`
	Context     string                 `json:"context"`
	Version     int                    `json:"version"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

type UpstreamSchemas struct {
	InputSchema  map[string]interface{} `json:"input_schema"`
	ConfigSchema map[string]interface{} `json:"config_schema"`
	StateSchema  map[string]interface{} `json:"state_schema"`
}

type SearchPage struct {
	Assistants []UpstreamAssistant `json:"assistants"`
	NextCursor string              `json:"next_cursor"`
}

// EngineClient is the external collaborator: the upstream engine owning
// the source-of-truth Graph/Assistant/Schema entities.
type EngineClient interface {
	GetAssistant(ctx context.Context, id string) (*UpstreamAssistant, error)
	SearchAssistants(ctx context.Context, graphID, cursor string, limit int) (*SearchPage, error)
	GetSchemas(ctx context.Context, assistantID string) (*UpstreamSchemas, error)
	ApplyAssistantUpdate(ctx context.Context, assistantID string, name, description string, config, metadata map[string]interface{}) (newVersion int, err error)
}

// HTTPEngineClient is a retrying JSON HTTP implementation of EngineClient,
// grounded on the teacher's execute-with-backoff request loop.
type HTTPEngineClient struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	authToken  string
}

func NewHTTPEngineClient(baseURL, authToken string) *HTTPEngineClient {
	return &HTTPEngineClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retries:    3,
		backoff:    500 * time.Millisecond,
		authToken:  authToken,
	}
}

func (c *HTTPEngineClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperr.WrapInternal(err, "encoding request body")
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return apperr.WrapInternal(err, "building upstream request")
		}
		if c.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.authToken)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return apperr.WrapTimeout(err, "upstream request to %s", path)
			}
			time.Sleep(c.backoff * time.Duration(1<<attempt))
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return apperr.WrapUpstream(fmt.Errorf("status %d: %s", resp.StatusCode, data), "upstream %s", path)
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, data)
			time.Sleep(c.backoff * time.Duration(1<<attempt))
			continue
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return apperr.WrapInternal(err, "decoding upstream response from %s", path)
			}
		}
		return nil
	}
	return apperr.WrapUpstream(lastErr, "upstream %s failed after %d attempts", path, c.retries+1)
}

func (c *HTTPEngineClient) GetAssistant(ctx context.Context, id string) (*UpstreamAssistant, error) {
	var a UpstreamAssistant
	if err := c.do(ctx, http.MethodGet, "/v1/assistants/"+id, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPEngineClient) SearchAssistants(ctx context.Context, graphID, cursor string, limit int) (*SearchPage, error) {
	path := fmt.Sprintf("/v1/assistants/search?limit=%d&cursor=%s", limit, cursor)
	if graphID != "" {
		path += "&graph_id=" + graphID
	}
	var page SearchPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPEngineClient) GetSchemas(ctx context.Context, assistantID string) (*UpstreamSchemas, error) {
	var s UpstreamSchemas
	if err := c.do(ctx, http.MethodGet, "/v1/assistants/"+assistantID+"/schemas", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPEngineClient) ApplyAssistantUpdate(ctx context.Context, assistantID string, name, description string, config, metadata map[string]interface{}) (int, error) {
	body := map[string]interface{}{
		"name":        name,
		"description": description,
		"config":      config,
		"metadata":    metadata,
	}
	var resp struct {
		Version int `json:"version"`
	}
	if err := c.do(ctx, http.MethodPatch, "/v1/assistants/"+assistantID, body, &resp); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

// History implements summarizer.HistoryProvider against the upstream
// engine's GET /threads/{id}/history contract.
func (c *HTTPEngineClient) History(ctx context.Context, threadID string) ([]summarizer.Message, error) {
	var resp struct {
		Messages []summarizer.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}
