// Package dashboard serves a read-only JSON API over the pipeline's output.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/pulse/internal/bus"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Store   bus.Store
	DataDir string
	Port    int
	Out     io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("dashboard: store is required")
	}
	if opts.DataDir == "" {
		return fmt.Errorf("dashboard: dataDir is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := newRouter(opts.Store, opts.DataDir)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// newRouter sets up the Gin router with all API routes.
func newRouter(store bus.Store, dataDir string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", handleHealth())
	router.GET("/api/rankings", handleDataFile(dataDir, "platform_rankings.json"))
	router.GET("/api/rankings/history", handleDataFile(dataDir, "platform_rankings.prev.json"))
	router.GET("/api/snapshot", handleDataFile(dataDir, "snapshots.json"))
	router.GET("/api/bus", handleBusStats(store))
	return router
}
