// Package region routes browser launches to per-region pools and implements
// the session control plane on top of them.
package region

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/browserbase-mcp/internal/browser"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

// Region represents a geographical region
type Region string

const (
	RegionUSWest2    Region = "us-west-2"
	RegionUSEast1    Region = "us-east-1"
	RegionEUCentral1 Region = "eu-central-1"
)

// DefaultRegions are served when no region list is configured
var DefaultRegions = []Region{RegionUSWest2, RegionUSEast1, RegionEUCentral1}

// ErrCapacity is returned when a region has no free browser slots
var ErrCapacity = errors.New("region at capacity")

// Launcher starts and stops browsers in one region
type Launcher interface {
	Launch(ctx context.Context, spec browser.LaunchSpec) (*browser.Instance, error)
	StopBrowser(ctx context.Context, containerID string) error
	EnsureImage(ctx context.Context) error
	Close() error
}

// RegionalPool wraps a launcher with its region and capacity
type RegionalPool struct {
	Region   Region
	Pool     Launcher
	Capacity int64
	slots    *semaphore.Weighted
}

// Options tunes a Manager
type Options struct {
	// Fallback receives sessions that ask for an unknown region
	Fallback Region
	// Capacity caps concurrent browsers per region; 0 means unlimited
	Capacity int64
	// PublicURL is the externally reachable base of the HTTP server, used
	// to build live-view URLs
	PublicURL string
}

// Manager manages browser pools across multiple regions
type Manager struct {
	pools  map[Region]*RegionalPool
	leases map[string]Region
	mu     sync.RWMutex
	opts   Options
}

// NewManager creates docker-backed pools for regions
func NewManager(regions []Region, cfg browser.Config, opts Options) (*Manager, error) {
	if len(regions) == 0 {
		regions = DefaultRegions
	}

	pools := make(map[Region]Launcher, len(regions))
	for _, r := range regions {
		pool, err := browser.NewPool(string(r), cfg)
		if err != nil {
			for _, created := range pools {
				created.Close()
			}
			return nil, fmt.Errorf("failed to create pool for %s: %w", r, err)
		}
		pools[r] = pool
	}

	return NewManagerWithPools(pools, opts), nil
}

// NewManagerWithPools creates a manager over existing launchers
func NewManagerWithPools(pools map[Region]Launcher, opts Options) *Manager {
	m := &Manager{
		pools:  make(map[Region]*RegionalPool, len(pools)),
		leases: make(map[string]Region),
		opts:   opts,
	}

	for r, pool := range pools {
		rp := &RegionalPool{Region: r, Pool: pool, Capacity: opts.Capacity}
		if opts.Capacity > 0 {
			rp.slots = semaphore.NewWeighted(opts.Capacity)
		}
		m.pools[r] = rp
	}

	if _, ok := m.pools[m.opts.Fallback]; !ok {
		m.opts.Fallback = m.firstRegion()
	}
	return m
}

func (m *Manager) firstRegion() Region {
	if _, ok := m.pools[RegionUSWest2]; ok {
		return RegionUSWest2
	}
	regions := m.GetRegions()
	if len(regions) == 0 {
		return ""
	}
	return regions[0]
}

// GetPool returns the pool for a specific region
func (m *Manager) GetPool(region Region) (*RegionalPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	regionalPool, exists := m.pools[region]
	if !exists {
		return nil, fmt.Errorf("unsupported region: %s", region)
	}

	return regionalPool, nil
}

// RouteSession determines the region for a session, falling back when the
// requested one is not served
func (m *Manager) RouteSession(requestedRegion string) Region {
	region := Region(requestedRegion)

	m.mu.RLock()
	_, exists := m.pools[region]
	m.mu.RUnlock()

	if exists {
		return region
	}
	if requestedRegion != "" {
		log.Printf("🌍 Region %s not served, routing to %s", requestedRegion, m.opts.Fallback)
	}
	return m.opts.Fallback
}

// Start launches a browser for req and returns its lease
func (m *Manager) Start(ctx context.Context, req models.LaunchRequest) (*models.Lease, error) {
	region := m.RouteSession(req.Region)
	rp, err := m.GetPool(region)
	if err != nil {
		return nil, err
	}

	if rp.slots != nil && !rp.slots.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s has %d browsers running", ErrCapacity, region, rp.Capacity)
	}

	leaseID := uuid.NewString()
	instance, err := rp.Pool.Launch(ctx, browser.LaunchSpec{
		LeaseID:   leaseID,
		SessionID: req.SessionID,
		Recording: req.Recording,
	})
	if err != nil {
		if rp.slots != nil {
			rp.slots.Release(1)
		}
		return nil, err
	}

	m.mu.Lock()
	m.leases[leaseID] = region
	m.mu.Unlock()

	return &models.Lease{
		ID:          leaseID,
		Region:      string(region),
		ConnectURL:  instance.ConnectURL,
		LiveViewURL: LiveViewURL(m.opts.PublicURL, req.SessionID),
		ContainerID: instance.ContainerID,
		StartedAt:   time.Now(),
	}, nil
}

// Stop tears down the lease's browser and frees its slot
func (m *Manager) Stop(ctx context.Context, lease *models.Lease) error {
	m.mu.Lock()
	region, tracked := m.leases[lease.ID]
	delete(m.leases, lease.ID)
	m.mu.Unlock()

	if !tracked {
		region = Region(lease.Region)
	}
	rp, err := m.GetPool(region)
	if err != nil {
		return err
	}

	if tracked && rp.slots != nil {
		defer rp.slots.Release(1)
	}
	if lease.ContainerID == "" {
		return nil
	}
	return rp.Pool.StopBrowser(ctx, lease.ContainerID)
}

// Running returns the number of leases currently held
func (m *Manager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leases)
}

// EnsureImages ensures the browser image is available in all regions
func (m *Manager) EnsureImages(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for region, regionalPool := range m.pools {
		if err := regionalPool.Pool.EnsureImage(ctx); err != nil {
			return fmt.Errorf("failed to ensure image in %s: %w", region, err)
		}
	}

	return nil
}

// GetRegions returns all served regions, sorted
func (m *Manager) GetRegions() []Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	regions := make([]Region, 0, len(m.pools))
	for region := range m.pools {
		regions = append(regions, region)
	}
	slices.Sort(regions)

	return regions
}

// Close closes all browser pools
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, regionalPool := range m.pools {
		if err := regionalPool.Pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LiveViewURL is where the HTTP server exposes a session's live view
func LiveViewURL(publicURL, sessionID string) string {
	if publicURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/v1/sessions/%s/live", strings.TrimRight(publicURL, "/"), url.PathEscape(sessionID))
}
