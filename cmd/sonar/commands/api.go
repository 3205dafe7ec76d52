package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/server"
)

// apiClient talks to a running daemon's operator API.
type apiClient struct {
	baseURL string
	user    string
	http    *http.Client
}

// newAPIClient resolves the daemon address from --api, SONAR_API, then
// server.port.
func newAPIClient(cmd *cobra.Command) *apiClient {
	base, _ := cmd.Flags().GetString("api")
	if base == "" {
		base = os.Getenv("SONAR_API")
	}
	if base == "" {
		port := am.DefaultServerPort
		if cfg, err := am.Load(); err == nil && cfg.Server.Port > 0 {
			port = cfg.Server.Port
		}
		base = fmt.Sprintf("http://localhost:%d", port)
	}

	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		user = os.Getenv("USER")
	}

	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		user:    user,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, out)
}

func (c *apiClient) post(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodPost, path, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if c.user != "" {
		req.Header.Set("X-Sonar-User", c.user)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WithHint(errors.Wrapf(err, "%s %s", method, path),
			"is the daemon running? start it with: sonar pulse start")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode >= 300 {
		var apiErr server.ErrorResponse
		if json.Unmarshal(body, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(body))
		}
		err := errors.Newf("%s %s: %s (HTTP %d)", method, path, apiErr.Error, resp.StatusCode)
		for _, d := range apiErr.Details {
			err = errors.WithDetail(err, d)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func addAPIFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("api", "", "Operator API base URL (default: http://localhost:<server.port>)")
	cmd.PersistentFlags().String("user", "", "Reviewer id sent with apply/dismiss (default: $USER)")
}
