package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider talks to an ad gateway that fronts the mobile SDK.
//
//	POST {BaseURL}/load  {"ad_group_id": "..."}  -> {"events": [...]}
//	POST {BaseURL}/show  {"ad_group_id": "..."}  -> {"events": [...]}
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Supported() bool {
	return p.BaseURL != ""
}

func (p *HTTPProvider) Load(ctx context.Context, groupID string) error {
	events, err := p.call(ctx, "/load", groupID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Type == EventLoaded {
			return nil
		}
	}
	return fmt.Errorf("ad gateway did not report %q", EventLoaded)
}

func (p *HTTPProvider) Show(ctx context.Context, groupID string) ([]Event, error) {
	return p.call(ctx, "/show", groupID)
}

func (p *HTTPProvider) call(ctx context.Context, path, groupID string) ([]Event, error) {
	payload, err := json.Marshal(map[string]string{"ad_group_id": groupID})
	if err != nil {
		return nil, fmt.Errorf("marshaling ad request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ad gateway: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ad gateway returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing ad gateway response: %w", err)
	}
	return result.Events, nil
}
