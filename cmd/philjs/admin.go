package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

func revalidateCmd() *cobra.Command {
	var (
		server string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "revalidate <path>",
		Short: "Queue a page for regeneration on a running server",
		Long: `Ask a running server to regenerate a cached page.

Examples:
  philjs revalidate /blog/post-1
  philjs revalidate /blog/post-1 --force
  philjs revalidate / --server=http://prod:3000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"path": {args[0]}}
			if force {
				q.Set("force", "true")
			}
			body, err := postAdmin(server, "/_philjs/revalidate", q)
			if err != nil {
				return err
			}
			success("queued %s", args[0])
			info("%s", body)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:3000", "Server base URL")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Regenerate even if still fresh")

	return cmd
}

func invalidateCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "invalidate <tag>",
		Short: "Invalidate every page carrying a tag",
		Long: `Drop all cached pages registered under a tag. A trailing *
matches multiple tags.

Examples:
  philjs invalidate blog
  philjs invalidate "product-*"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := postAdmin(server, "/_philjs/invalidate", url.Values{"tag": {args[0]}})
			if err != nil {
				return err
			}
			success("invalidated %s", args[0])
			info("%s", body)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:3000", "Server base URL")

	return cmd
}

// postAdmin POSTs to an admin endpoint and returns the response body.
func postAdmin(server, endpoint string, q url.Values) (string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(server+endpoint+"?"+q.Encode(), "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("is the server running at %s? %w", server, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	return string(body), nil
}
