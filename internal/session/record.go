package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shehryarbajwa/browserbase-mcp/internal/remote"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

// Record is one live browser session: its control-plane lease, its browser
// connection and the tabs open in it.
type Record struct {
	ID               string
	Description      string
	Region           string
	RecordingEnabled bool
	Timeout          time.Duration
	CreatedAt        time.Time

	lease   *models.Lease
	browser remote.Browser

	mu         sync.Mutex
	tabs       TabTable
	lastUsedAt time.Time
	closing    bool
}

// Lease returns the control-plane lease backing this session
func (r *Record) Lease() *models.Lease {
	return r.lease
}

// LastUsedAt returns the time of the last dispatched operation
func (r *Record) LastUsedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUsedAt
}

// Touch records activity. The timestamp never moves backwards.
func (r *Record) Touch(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.After(r.lastUsedAt) {
		r.lastUsedAt = now
	}
}

// Expired reports whether the session has been idle longer than its timeout
func (r *Record) Expired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Sub(r.lastUsedAt) > r.Timeout
}

// ActiveTab returns the active tab id after stale-pointer recovery, or "" when no tabs are open
func (r *Record) ActiveTab() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, _, err := r.tabs.resolveActive()
	if err != nil {
		return ""
	}
	return id
}

// Tab resolves tabID, or the active tab when tabID is empty
func (r *Record) Tab(tabID string) (string, remote.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, page, err := r.tabs.lookup(tabID)
	if err != nil {
		return "", nil, r.annotate(err)
	}
	return id, page, nil
}

// NewTab opens a page and makes it active. An empty requestedID gets a
// synthesized id.
func (r *Record) NewTab(ctx context.Context, requestedID string) (string, error) {
	r.mu.Lock()
	if requestedID != "" && r.tabs.Has(requestedID) {
		r.mu.Unlock()
		return "", &Error{Kind: KindDuplicateTab, SessionID: r.ID, TabID: requestedID}
	}
	r.mu.Unlock()

	page, err := r.browser.NewPage(ctx)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := requestedID
	if id == "" {
		id = r.tabs.nextID()
	} else if r.tabs.Has(id) {
		// Lost a race with a concurrent new_tab for the same id
		_ = page.Close(ctx)
		return "", &Error{Kind: KindDuplicateTab, SessionID: r.ID, TabID: id}
	}

	r.tabs.add(id, page)
	return id, nil
}

// SwitchTab activates tabID and asks the browser to bring it forward
func (r *Record) SwitchTab(ctx context.Context, tabID string) error {
	r.mu.Lock()
	page, ok := r.tabs.pages[tabID]
	if !ok {
		err := &Error{Kind: KindTabNotFound, SessionID: r.ID, TabID: tabID, Err: fmt.Errorf("available: %s", r.tabs.available())}
		r.mu.Unlock()
		return err
	}
	r.tabs.active = tabID
	r.mu.Unlock()

	if err := page.BringToFront(ctx); err != nil {
		log.Printf("⚠️ bring to front failed for %s/%s: %v", r.ID, tabID, err)
	}
	return nil
}

// CloseTab closes tabID, or the active tab when empty, and returns the id closed
func (r *Record) CloseTab(ctx context.Context, tabID string) (string, error) {
	r.mu.Lock()
	id, page, err := r.tabs.lookup(tabID)
	r.mu.Unlock()
	if err != nil {
		return "", r.annotate(err)
	}

	if err := page.Close(ctx); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.tabs.pages[id]; ok && current == page {
		r.tabs.remove(id)
	}
	return id, nil
}

// ListTabs snapshots the tab table
func (r *Record) ListTabs() []models.TabInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tabs.snapshot()
}

// Summary builds the list view of this session at now
func (r *Record) Summary(now time.Time) models.SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := models.StatusActive
	if r.closing {
		status = models.StatusClosing
	}

	active, _, _ := r.tabs.resolveActive()

	return models.SessionSummary{
		ID:          r.ID,
		Description: r.Description,
		Region:      r.Region,
		Status:      status,
		CreatedAt:   r.CreatedAt,
		LastUsedAt:  r.lastUsedAt,
		Age:         now.Sub(r.CreatedAt),
		Idle:        now.Sub(r.lastUsedAt),
		Timeout:     int(r.Timeout / time.Second),
		TabCount:    r.tabs.Len(),
		ActiveTab:   active,
	}
}

// Info builds the detailed snapshot of this session at now
func (r *Record) Info(now time.Time) models.SessionInfo {
	info := models.SessionInfo{
		SessionSummary:   r.Summary(now),
		RecordingEnabled: r.RecordingEnabled,
		Tabs:             r.ListTabs(),
	}
	if r.lease != nil {
		info.LiveViewURL = r.lease.LiveViewURL
	}
	for _, tab := range info.Tabs {
		if tab.Active {
			info.CurrentURL = tab.URL
		}
	}
	return info
}

func (r *Record) annotate(err error) error {
	if serr, ok := err.(*Error); ok && serr.SessionID == "" {
		serr.SessionID = r.ID
	}
	return err
}

// markClosing flips the record into teardown; it reports false if teardown already started
func (r *Record) markClosing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return false
	}
	r.closing = true
	return true
}

func (r *Record) isClosing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closing
}
