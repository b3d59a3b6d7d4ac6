// Package maps checks that the map-rendering SDK can be loaded.
package maps

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const DefaultScriptURL = "https://openapi.map.naver.com/openapi/v3/maps.js"

// Failure is shown to the user in place of the app when the map cannot load.
type Failure struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (f *Failure) Error() string {
	return f.Title + ": " + f.Description
}

// Checker verifies the map SDK script is reachable for the configured client id.
// A successful check is remembered; failures are retried on the next call.
type Checker struct {
	ClientID  string
	ScriptURL string
	Client    *http.Client

	mu sync.Mutex
	ok bool
}

func NewChecker(clientID, scriptURL string) *Checker {
	if scriptURL == "" {
		scriptURL = DefaultScriptURL
	}
	return &Checker{
		ClientID:  clientID,
		ScriptURL: scriptURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ScriptSrc is the script URL the front-end should load.
func (c *Checker) ScriptSrc() string {
	u, err := url.Parse(c.ScriptURL)
	if err != nil {
		return c.ScriptURL
	}
	q := u.Query()
	q.Set("ncpKeyId", c.ClientID)
	u.RawQuery = q.Encode()
	return u.String()
}

// Check returns a *Failure when the map cannot be used.
func (c *Checker) Check(ctx context.Context) error {
	if c.ClientID == "" {
		return &Failure{
			Title:       "Map API key required",
			Description: "Set NAVER_CLIENT_ID to the map client id.",
		}
	}

	c.mu.Lock()
	ok := c.ok
	c.mu.Unlock()
	if ok {
		return nil
	}

	if err := c.fetch(ctx); err != nil {
		slog.Error("Map script check failed", "error", err)
		return &Failure{
			Title:       "Map API failed to load",
			Description: err.Error(),
		}
	}

	c.mu.Lock()
	c.ok = true
	c.mu.Unlock()
	return nil
}

func (c *Checker) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ScriptSrc(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching map script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("map script returned %d", resp.StatusCode)
	}
	return nil
}
