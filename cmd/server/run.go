package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shehryarbajwa/browserbase-mcp/internal/api"
	"github.com/shehryarbajwa/browserbase-mcp/internal/browser"
	"github.com/shehryarbajwa/browserbase-mcp/internal/config"
	"github.com/shehryarbajwa/browserbase-mcp/internal/mcp"
	"github.com/shehryarbajwa/browserbase-mcp/internal/proxy"
	"github.com/shehryarbajwa/browserbase-mcp/internal/ratelimit"
	"github.com/shehryarbajwa/browserbase-mcp/internal/recording"
	"github.com/shehryarbajwa/browserbase-mcp/internal/region"
	"github.com/shehryarbajwa/browserbase-mcp/internal/remote"
	"github.com/shehryarbajwa/browserbase-mcp/internal/session"
	"github.com/shehryarbajwa/browserbase-mcp/internal/tools"
)

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout belongs to the MCP transport
	log.SetOutput(os.Stderr)
	log.Println("Starting browserbase-mcp...")

	controlPlane, closeControlPlane, err := newControlPlane(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeControlPlane()

	archiver, err := recording.NewArchiver(cfg.ScreenshotsDir, cfg.RecordingsDir)
	if err != nil {
		return err
	}
	log.Printf("✓ Recordings archived to %s", cfg.RecordingsDir)

	connector := remote.NewPlaywright(cfg.InstallBrowsers)
	defer func() {
		if err := connector.Stop(); err != nil {
			log.Printf("⚠️  Failed to stop playwright: %v", err)
		}
	}()

	registry := session.NewRegistry(controlPlane, connector, session.Options{
		DefaultRegion:  cfg.DefaultRegion,
		DefaultTimeout: cfg.SessionTimeout,
		ReleaseTimeout: cfg.ReleaseTimeout,
		Archiver:       archiver,
	})
	dispatcher := session.NewDispatcher(registry, session.DispatcherOptions{
		OperationTimeout:  cfg.OperationTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
	})
	toolServer := tools.NewServer(registry, dispatcher, tools.Options{ScreenshotsDir: cfg.ScreenshotsDir})
	log.Println("✓ Session registry initialized")

	go session.NewSweeper(registry, cfg.SweepInterval).Run(ctx)

	var mcpServer *mcp.Server
	if cfg.Transport == config.TransportStdio {
		mcpServer, err = mcp.NewServer(toolServer, mcp.Implementation{Name: "browserbase-mcp", Version: version})
		if err != nil {
			return err
		}
	}

	var srv *http.Server
	httpErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		handler := api.NewHandler(toolServer, registry)
		router := handler.SetupRoutes(proxy.NewServer(registry), ratelimit.NewLimiter(cfg.RateLimit, cfg.RateBurst))

		// No write timeout: live view connections stay open for the session's lifetime
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			log.Printf("🚀 HTTP API listening on %s", cfg.HTTPAddr)
			log.Printf("📍 Tools at %s/v1/tools, live view at /v1/sessions/{id}/live", cfg.HTTPAddr)
			if cfg.RateLimit > 0 {
				log.Printf("⏱️  Rate Limit: %d requests/minute per client", cfg.RateLimit)
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	var serveErr error
	switch cfg.Transport {
	case config.TransportStdio:
		log.Println("🚀 Serving MCP on stdio")

		done := make(chan error, 1)
		go func() { done <- mcpServer.Serve(ctx, os.Stdin, os.Stdout) }()

		select {
		case serveErr = <-done:
		case serveErr = <-httpErr:
		}
	default:
		select {
		case <-ctx.Done():
		case serveErr = <-httpErr:
		}
	}
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}

	log.Println("⏳ Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ReleaseTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  HTTP server forced to shutdown: %v", err)
		}
	}
	if err := registry.CloseAll(shutdownCtx); err != nil {
		log.Printf("⚠️  Some sessions closed with errors: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
	return serveErr
}

// newControlPlane connects to a fixed CDP endpoint when one is configured,
// otherwise it launches browser containers per region
func newControlPlane(ctx context.Context, cfg *config.Config) (session.ControlPlane, func(), error) {
	if cfg.CDPEndpoint != "" {
		log.Printf("✓ Using CDP endpoint %s", cfg.CDPEndpoint)
		return &region.Endpoint{
			ConnectURL: cfg.CDPEndpoint,
			Headers:    cfg.CDPHeaders,
			PublicURL:  cfg.PublicURL,
		}, func() {}, nil
	}

	regions := make([]region.Region, 0, len(cfg.Regions))
	for _, r := range cfg.Regions {
		regions = append(regions, region.Region(r))
	}

	regionMgr, err := region.NewManager(regions, browser.Config{
		Image:        cfg.BrowserImage,
		Host:         cfg.BrowserHost,
		ReadyTimeout: cfg.BrowserReady,
	}, region.Options{
		Fallback:  region.Region(cfg.DefaultRegion),
		Capacity:  cfg.RegionCapacity,
		PublicURL: cfg.PublicURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create region manager: %w", err)
	}
	log.Printf("✓ Region manager initialized (%d regions)", len(regions))

	imageCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	log.Println("⏳ Ensuring browser images are available...")
	if err := regionMgr.EnsureImages(imageCtx); err != nil {
		regionMgr.Close()
		return nil, nil, fmt.Errorf("failed to ensure images: %w", err)
	}
	log.Println("✓ Browser images ready in all regions")

	return regionMgr, func() {
		if err := regionMgr.Close(); err != nil {
			log.Printf("⚠️  Failed to close region manager: %v", err)
		}
	}, nil
}
