package session

import (
	"fmt"
	"slices"

	"github.com/shehryarbajwa/browserbase-mcp/internal/remote"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

// MainTab is the tab every session opens with
const MainTab = "main"

// TabTable maps tab ids to pages and tracks the active one.
// It is not safe for concurrent use; Record guards it.
type TabTable struct {
	pages  map[string]remote.Page
	order  []string
	active string
	seq    int
}

func newTabTable() TabTable {
	return TabTable{pages: make(map[string]remote.Page)}
}

// Len returns the number of open tabs
func (t *TabTable) Len() int {
	return len(t.pages)
}

// Has reports whether id names an open tab
func (t *TabTable) Has(id string) bool {
	_, ok := t.pages[id]
	return ok
}

// Active returns the active tab id, which may be stale until resolveActive runs
func (t *TabTable) Active() string {
	return t.active
}

// add inserts a page and focuses it
func (t *TabTable) add(id string, page remote.Page) {
	t.pages[id] = page
	t.order = append(t.order, id)
	t.seq++
	t.active = id
}

// remove drops id and repoints active at a remaining tab if needed
func (t *TabTable) remove(id string) {
	delete(t.pages, id)
	if i := slices.Index(t.order, id); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
	if t.active == id {
		t.active = ""
		if len(t.order) > 0 {
			t.active = t.order[0]
		}
	}
}

// nextID synthesizes a tab id that no open tab uses
func (t *TabTable) nextID() string {
	n := t.seq
	for {
		n++
		id := fmt.Sprintf("tab_%d", n)
		if !t.Has(id) {
			return id
		}
	}
}

// resolveActive returns the active page. A stale pointer is moved to the
// oldest remaining tab before returning.
func (t *TabTable) resolveActive() (string, remote.Page, error) {
	if page, ok := t.pages[t.active]; ok {
		return t.active, page, nil
	}
	if len(t.order) == 0 {
		t.active = ""
		return "", nil, &Error{Kind: KindNoTabsAvailable}
	}
	t.active = t.order[0]
	return t.active, t.pages[t.active], nil
}

// lookup returns the named page, or the active one when id is empty
func (t *TabTable) lookup(id string) (string, remote.Page, error) {
	if id == "" {
		return t.resolveActive()
	}
	page, ok := t.pages[id]
	if !ok {
		return "", nil, &Error{Kind: KindTabNotFound, TabID: id, Err: fmt.Errorf("available: %s", t.available())}
	}
	return id, page, nil
}

func (t *TabTable) available() string {
	if len(t.order) == 0 {
		return "none"
	}
	out := ""
	for i, id := range t.order {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

// snapshot lists tabs in creation order
func (t *TabTable) snapshot() []models.TabInfo {
	tabs := make([]models.TabInfo, 0, len(t.order))
	for _, id := range t.order {
		tabs = append(tabs, models.TabInfo{
			ID:     id,
			URL:    t.pages[id].URL(),
			Active: id == t.active,
		})
	}
	return tabs
}

// drain empties the table and returns the pages it held
func (t *TabTable) drain() []remote.Page {
	pages := make([]remote.Page, 0, len(t.order))
	for _, id := range t.order {
		pages = append(pages, t.pages[id])
	}
	t.pages = make(map[string]remote.Page)
	t.order = nil
	t.active = ""
	return pages
}
