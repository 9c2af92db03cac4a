// Package browser runs remote Chrome instances as docker containers and
// hands back their CDP endpoints.
package browser

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	DefaultImage        = "browserless/chrome:latest"
	DefaultHost         = "localhost"
	DefaultReadyTimeout = 10 * time.Second

	cdpPort       = nat.Port("3000/tcp")
	readyInterval = 500 * time.Millisecond
	stopTimeout   = 10
)

// Instance is one running browser container
type Instance struct {
	ContainerID string
	LeaseID     string
	SessionID   string
	ConnectURL  string
	Region      string
	Port        string
}

// LaunchSpec describes the browser a session needs
type LaunchSpec struct {
	LeaseID   string
	SessionID string
	Recording bool
}

// Config tunes a Pool
type Config struct {
	Image        string
	Host         string
	ReadyTimeout time.Duration
}

// Pool launches browser containers for one region
type Pool struct {
	client *client.Client
	region string
	cfg    Config
}

// NewPool connects to the docker daemon configured in the environment
func NewPool(region string, cfg Config) (*Pool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Pool{
		client: cli,
		region: region,
		cfg:    cfg.withDefaults(),
	}, nil
}

func (c Config) withDefaults() Config {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	return c
}

// containerSpec builds the container and host config for spec
func (p *Pool) containerSpec(spec LaunchSpec) (*container.Config, *container.HostConfig) {
	recording := "false"
	if spec.Recording {
		recording = "true"
	}

	cfg := &container.Config{
		Image: p.cfg.Image,
		Labels: map[string]string{
			"session-id": spec.SessionID,
			"lease-id":   spec.LeaseID,
			"region":     p.region,
			"recording":  recording,
			"managed-by": "browserbase-mcp",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"KEEP_ALIVE=true",
			"EXIT_ON_HEALTH_FAILURE=false",
		},
		ExposedPorts: nat.PortSet{cdpPort: struct{}{}},
	}

	host := &container.HostConfig{
		PortBindings: nat.PortMap{
			cdpPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "0"}},
		},
		AutoRemove: false,
	}
	return cfg, host
}

func containerName(leaseID string) string {
	if len(leaseID) > 8 {
		leaseID = leaseID[:8]
	}
	return "browser-" + leaseID
}

// Launch starts a container and waits until its CDP endpoint answers
func (p *Pool) Launch(ctx context.Context, spec LaunchSpec) (*Instance, error) {
	cfg, host := p.containerSpec(spec)

	resp, err := p.client.ContainerCreate(ctx, cfg, host, nil, nil, containerName(spec.LeaseID))
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	instance, err := p.start(ctx, resp.ID, spec)
	if err != nil {
		if rmErr := p.remove(context.WithoutCancel(ctx), resp.ID); rmErr != nil {
			log.Printf("⚠️ Failed to clean up container %s: %v", resp.ID[:12], rmErr)
		}
		return nil, err
	}

	log.Printf("🐳 Browser container %s ready for session %s on port %s", resp.ID[:12], spec.SessionID, instance.Port)
	return instance, nil
}

func (p *Pool) start(ctx context.Context, containerID string, spec LaunchSpec) (*Instance, error) {
	if err := p.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := inspect.NetworkSettings.Ports[cdpPort]
	if len(bindings) == 0 {
		return nil, fmt.Errorf("container %s has no port binding for %s", containerID[:12], cdpPort)
	}
	port := bindings[0].HostPort

	base := fmt.Sprintf("http://%s:%s", p.cfg.Host, port)
	if err := waitForBrowserReady(ctx, base, p.cfg.ReadyTimeout); err != nil {
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	return &Instance{
		ContainerID: containerID,
		LeaseID:     spec.LeaseID,
		SessionID:   spec.SessionID,
		ConnectURL:  fmt.Sprintf("ws://%s:%s", p.cfg.Host, port),
		Region:      p.region,
		Port:        port,
	}, nil
}

// StopBrowser stops and removes a container
func (p *Pool) StopBrowser(ctx context.Context, containerID string) error {
	timeout := stopTimeout
	if err := p.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return p.remove(ctx, containerID)
}

func (p *Pool) remove(ctx context.Context, containerID string) error {
	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// IsHealthy reports whether the container is still running
func (p *Pool) IsHealthy(ctx context.Context, containerID string) bool {
	inspect, err := p.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return false
	}
	return inspect.State != nil && inspect.State.Running
}

// EnsureImage pulls the browser image unless it is already present
func (p *Pool) EnsureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == p.cfg.Image {
				return nil
			}
		}
	}

	log.Printf("⏳ Pulling %s...", p.cfg.Image)
	reader, err := p.client.ImagePull(ctx, p.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (p *Pool) Close() error {
	return p.client.Close()
}

// waitForBrowserReady polls {base}/json/version until it answers 200
func waitForBrowserReady(ctx context.Context, base string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyInterval)
	defer ticker.Stop()

	url := base + "/json/version"
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("browser at %s did not become ready within %s", base, timeout)
		case <-ticker.C:
		}
	}
}
