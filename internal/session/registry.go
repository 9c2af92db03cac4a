package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/browserbase-mcp/internal/remote"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

const (
	DefaultTimeout = time.Hour
	MaxTimeout     = 8 * time.Hour
	DefaultRegion  = "us-west-2"

	defaultReleaseTimeout = 30 * time.Second
)

// ControlPlane provisions and releases remote browser processes
type ControlPlane interface {
	Start(ctx context.Context, req models.LaunchRequest) (*models.Lease, error)
	Stop(ctx context.Context, lease *models.Lease) error
}

// Archiver stores the artifacts of a recorded session when it ends
type Archiver interface {
	Archive(sessionID string) (string, error)
}

// Options tunes a Registry
type Options struct {
	DefaultRegion  string
	DefaultTimeout time.Duration
	ReleaseTimeout time.Duration
	Archiver       Archiver
	Now            func() time.Time
}

// CreateOptions describes a new session
type CreateOptions struct {
	ID               string
	Description      string
	Region           string
	Timeout          time.Duration
	RecordingEnabled bool
}

// Registry owns every live session in the process
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Record
	pending  map[string]struct{}

	controlPlane ControlPlane
	connector    remote.Connector
	opts         Options
}

// NewRegistry creates an empty registry
func NewRegistry(controlPlane ControlPlane, connector remote.Connector, opts Options) *Registry {
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = DefaultRegion
	}
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.ReleaseTimeout == 0 {
		opts.ReleaseTimeout = defaultReleaseTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Registry{
		sessions:     make(map[string]*Record),
		pending:      make(map[string]struct{}),
		controlPlane: controlPlane,
		connector:    connector,
		opts:         opts,
	}
}

// Now returns the registry's clock reading
func (r *Registry) Now() time.Time {
	return r.opts.Now()
}

// DefaultRegion is the region used when a create request names none
func (r *Registry) DefaultRegion() string {
	return r.opts.DefaultRegion
}

// Create provisions a browser, opens its main tab and registers the session.
// Nothing is registered unless every step succeeds.
func (r *Registry) Create(ctx context.Context, req CreateOptions) (*Record, error) {
	if req.ID == "" {
		return nil, Invalid("session_id is required")
	}
	if req.Timeout == 0 {
		req.Timeout = r.opts.DefaultTimeout
	}
	if req.Timeout < time.Second || req.Timeout > MaxTimeout {
		return nil, Invalid("session_timeout must be between 1 and %d seconds", int(MaxTimeout/time.Second))
	}
	if req.Region == "" {
		req.Region = r.opts.DefaultRegion
	}

	// Reserve the id so a concurrent create cannot provision it twice
	r.mu.Lock()
	_, exists := r.sessions[req.ID]
	_, reserved := r.pending[req.ID]
	if exists || reserved {
		r.mu.Unlock()
		return nil, &Error{Kind: KindDuplicateSession, SessionID: req.ID}
	}
	r.pending[req.ID] = struct{}{}
	r.mu.Unlock()

	rec, err := r.provision(ctx, req)

	r.mu.Lock()
	delete(r.pending, req.ID)
	if err == nil {
		r.sessions[req.ID] = rec
	}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}

	log.Printf("✅ Session %s created in %s (lease %s)", rec.ID, rec.Region, rec.lease.ID)
	return rec, nil
}

func (r *Registry) provision(ctx context.Context, req CreateOptions) (*Record, error) {
	fail := func(op string, err error) error {
		return &Error{Kind: KindProvisioning, SessionID: req.ID, Op: op, Err: err}
	}

	lease, err := r.controlPlane.Start(ctx, models.LaunchRequest{
		SessionID: req.ID,
		Region:    req.Region,
		Timeout:   req.Timeout,
		Recording: req.RecordingEnabled,
	})
	if err != nil {
		return nil, fail("failed to start browser", err)
	}

	browser, err := r.connector.Connect(ctx, lease)
	if err != nil {
		r.stopLease(ctx, req.ID, lease)
		return nil, fail("failed to connect to browser", err)
	}

	page, err := browser.NewPage(ctx)
	if err != nil {
		releaseCtx, cancel := r.releaseContext(ctx)
		defer cancel()
		if closeErr := browser.Close(releaseCtx); closeErr != nil {
			log.Printf("⚠️ Failed to close browser for %s: %v", req.ID, closeErr)
		}
		r.stopLease(ctx, req.ID, lease)
		return nil, fail("failed to open main tab", err)
	}

	now := r.opts.Now()
	rec := &Record{
		ID:               req.ID,
		Description:      req.Description,
		Region:           lease.Region,
		RecordingEnabled: req.RecordingEnabled,
		Timeout:          req.Timeout,
		CreatedAt:        now,
		lease:            lease,
		browser:          browser,
		tabs:             newTabTable(),
		lastUsedAt:       now,
	}
	if rec.Region == "" {
		rec.Region = req.Region
	}
	rec.tabs.add(MainTab, page)

	return rec, nil
}

func (r *Registry) stopLease(ctx context.Context, sessionID string, lease *models.Lease) {
	releaseCtx, cancel := r.releaseContext(ctx)
	defer cancel()
	if err := r.controlPlane.Stop(releaseCtx, lease); err != nil {
		log.Printf("⚠️ Failed to release lease for %s: %v", sessionID, err)
	}
}

// releaseContext outlives a cancelled request so teardown still gets its full budget
func (r *Registry) releaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.opts.ReleaseTimeout)
}

// Get returns a live session. Sessions being torn down are not returned.
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.Lock()
	rec, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok || rec.isClosing() {
		return nil, notFound(id)
	}
	return rec, nil
}

// Lease returns the control-plane lease backing a live session
func (r *Registry) Lease(id string) (*models.Lease, error) {
	rec, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return rec.Lease(), nil
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List summarizes every session, ordered by id
func (r *Registry) List() []models.SessionSummary {
	r.mu.Lock()
	records := make([]*Record, 0, len(r.sessions))
	for _, rec := range r.sessions {
		records = append(records, rec)
	}
	r.mu.Unlock()

	slices.SortFunc(records, func(a, b *Record) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	now := r.opts.Now()
	summaries := make([]models.SessionSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, rec.Summary(now))
	}
	return summaries
}

// Destroy releases the session's browser and lease and removes it. Absent
// ids are a no-op. Release failures are returned but never keep the entry.
func (r *Registry) Destroy(ctx context.Context, id string) error {
	r.mu.Lock()
	rec, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok || !rec.markClosing() {
		return nil
	}

	releaseCtx, cancel := r.releaseContext(ctx)
	defer cancel()

	var errs []error

	rec.mu.Lock()
	pages := rec.tabs.drain()
	rec.mu.Unlock()

	for _, page := range pages {
		if err := page.Close(releaseCtx); err != nil {
			log.Printf("⚠️ Error closing tab for %s: %v", id, err)
			errs = append(errs, fmt.Errorf("close tab: %w", err))
		}
	}

	if rec.browser != nil {
		if err := rec.browser.Close(releaseCtx); err != nil {
			log.Printf("⚠️ Error closing browser for %s: %v", id, err)
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}

	if rec.lease != nil {
		if err := r.controlPlane.Stop(releaseCtx, rec.lease); err != nil {
			log.Printf("⚠️ Error stopping browser for %s: %v", id, err)
			errs = append(errs, fmt.Errorf("stop browser: %w", err))
		}
	}

	if rec.RecordingEnabled && r.opts.Archiver != nil {
		path, err := r.opts.Archiver.Archive(id)
		if err != nil {
			log.Printf("⚠️ Failed to archive recording for %s: %v", id, err)
			errs = append(errs, fmt.Errorf("archive recording: %w", err))
		} else if path != "" {
			log.Printf("💾 Recording for %s saved to %s", id, path)
		}
	}

	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	log.Printf("🔌 Session %s closed", id)
	return errors.Join(errs...)
}

// SweepExpired destroys every session idle past its timeout at now and
// returns their ids. A failing teardown does not stop the sweep.
func (r *Registry) SweepExpired(ctx context.Context, now time.Time) []string {
	r.mu.Lock()
	var expired []string
	for id, rec := range r.sessions {
		if !rec.isClosing() && rec.Expired(now) {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	slices.Sort(expired)
	for _, id := range expired {
		if err := r.Destroy(ctx, id); err != nil {
			log.Printf("❌ Error cleaning up session %s: %v", id, err)
			continue
		}
		log.Printf("⏱️  Cleaned up expired session: %s", id)
	}
	return expired
}

// CloseAll destroys every session, in parallel
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			return r.Destroy(gctx, id)
		})
	}
	return g.Wait()
}
