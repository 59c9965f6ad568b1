package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// modelsTimeout bounds a /v1/models request. A shorter ctx deadline still applies.
var modelsTimeout = 5 * time.Second

// ModelStatus represents one entry of the /v1/models listing.
type ModelStatus struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ModelsResponse represents the response from the /v1/models endpoint.
type ModelsResponse struct {
	Data []ModelStatus `json:"data"`
}

// listModels returns the IDs of the models served at baseURL.
func listModels(ctx context.Context, client *http.Client, baseURL, apiKey string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, modelsTimeout)
	defer cancel()

	modelsURL := fmt.Sprintf("%s/v1/models", baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", modelsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create models request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	ids := make([]string, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// modelServed reports whether model appears in the listing.
// Names are compared without their tag, so "llama3.1:8b" matches "llama3.1:latest".
func modelServed(ctx context.Context, client *http.Client, baseURL, apiKey, model string) (bool, error) {
	ids, err := listModels(ctx, client, baseURL, apiKey)
	if err != nil {
		return false, err
	}
	want := baseModelName(model)
	for _, id := range ids {
		if baseModelName(id) == want {
			return true, nil
		}
	}
	return false, nil
}

func baseModelName(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		return name[:i]
	}
	return name
}
