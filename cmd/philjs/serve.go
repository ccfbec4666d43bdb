package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/philjs-dev/philjs"
	"github.com/philjs-dev/philjs/internal/config"
	"github.com/philjs-dev/philjs/pkg/render"
)

func serveCmd() *cobra.Command {
	var (
		port int
		host string
		root string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a site directory with incremental regeneration",
		Long: `Serve HTML fragments from a site directory through the ISR cache.

A request for /blog/post renders <root>/blog/post.html into a page
shell, caches it, and revalidates it on the configured interval. The
fragment file is re-read on every regeneration, so edits show up after
the next revalidation without a restart.

Examples:
  philjs serve
  philjs serve --root=site --port=8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host, root)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from philjs.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from philjs.json)")
	cmd.Flags().StringVarP(&root, "root", "r", "site", "Directory with HTML fragments")

	return cmd
}

func runServe(port int, host, root string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}
	if host != "" {
		cfg.Host = host
	}

	app, err := philjs.New(philjs.Config{
		Settings: cfg,
		Render:   siteRenderer(root),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app.Start(ctx)
	defer app.Shutdown()

	srv := &http.Server{
		Addr:              app.Addr(),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	success("serving %s on http://%s", root, app.Addr())
	info("admin API at http://%s/_philjs", app.Addr())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// siteRenderer renders <root>/<path>.html fragments into a page shell.
// "/" maps to index.html, "/blog/" to blog/index.html.
func siteRenderer(root string) philjs.RenderFunc {
	return func(_ context.Context, path string, _ map[string]any) (string, error) {
		// Strip the query string; cached variants share the fragment.
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		rel := strings.TrimPrefix(path, "/")
		if rel == "" || strings.HasSuffix(rel, "/") {
			rel += "index"
		}
		rel = filepath.Clean(rel) + ".html"
		if strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("path escapes site root: %s", path)
		}

		body, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			return "", fmt.Errorf("read fragment for %s: %w", path, err)
		}
		page := render.Page{
			Title: strings.TrimSuffix(filepath.Base(rel), ".html"),
			Body:  string(body),
		}
		return page.String(), nil
	}
}
