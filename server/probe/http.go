package probe

import (
	"context"
	"fmt"
	"net/http"
)

// HTTP checks readiness by making an HTTP GET request.
// Any response with status < 500 is considered ready.
type HTTP struct {
	Address string // host:port
	Path    string // default "/"

	// Client overrides the HTTP client. Nil means http.DefaultClient.
	Client *http.Client
}

func (c *HTTP) Check(ctx context.Context) error {
	path := c.Path
	if path == "" {
		path = "/"
	}

	url := fmt.Sprintf("http://%s%s", c.Address, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
