package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserbase-mcp/internal/testutil"
)

func tabIDs(rec *Record) []string {
	var ids []string
	for _, tab := range rec.ListTabs() {
		ids = append(ids, tab.ID)
	}
	return ids
}

func TestNewTabFocusesIt(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s2", 0)
	ctx := context.Background()

	id, err := rec.NewTab(ctx, "t2")
	require.NoError(t, err)

	assert.Equal(t, "t2", id)
	assert.Equal(t, "t2", rec.ActiveTab())
	assert.Equal(t, []string{MainTab, "t2"}, tabIDs(rec))

	closed, err := rec.CloseTab(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", closed)
	assert.Equal(t, MainTab, rec.ActiveTab())
	assert.Equal(t, []string{MainTab}, tabIDs(rec))
}

func TestNewTabRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)

	_, err := rec.NewTab(context.Background(), MainTab)

	require.Error(t, err)
	assert.Equal(t, KindDuplicateTab, KindOf(err))
	assert.Equal(t, []string{MainTab}, tabIDs(rec))
	assert.Len(t, f.connector.Last().Pages, 1)
}

func TestNewTabSynthesizedIDsNeverCollide(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)
	ctx := context.Background()

	first, err := rec.NewTab(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "tab_2", first)

	second, err := rec.NewTab(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "tab_3", second)

	// Closing shrinks the table; a count-based name would now reuse tab_3
	_, err = rec.CloseTab(ctx, first)
	require.NoError(t, err)

	third, err := rec.NewTab(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, second, third)

	// A caller-chosen id in the synthesized namespace is skipped over
	_, err = rec.NewTab(ctx, "tab_5")
	require.NoError(t, err)
	fourth, err := rec.NewTab(ctx, "")
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, id := range tabIDs(rec) {
		assert.False(t, seen[id], "duplicate tab id %s", id)
		seen[id] = true
	}
	assert.True(t, seen[fourth])
}

func TestSwitchTabRoundTrip(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)
	ctx := context.Background()

	_, err := rec.NewTab(ctx, "other")
	require.NoError(t, err)
	id, err := rec.NewTab(ctx, "")
	require.NoError(t, err)

	require.NoError(t, rec.SwitchTab(ctx, id))

	active := 0
	for _, tab := range rec.ListTabs() {
		if tab.Active {
			active++
			assert.Equal(t, id, tab.ID)
		}
	}
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, f.connector.Last().Page(2).Fronted())
}

func TestSwitchTabUnknown(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)

	err := rec.SwitchTab(context.Background(), "nope")

	require.Error(t, err)
	assert.Equal(t, KindTabNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "available: main")
	assert.Equal(t, MainTab, rec.ActiveTab())
}

func TestSwitchTabIgnoresBringToFrontFailure(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)
	ctx := context.Background()
	_, err := rec.NewTab(ctx, "t2")
	require.NoError(t, err)
	f.connector.Last().Page(0).Err = errors.New("target busy")

	require.NoError(t, rec.SwitchTab(ctx, MainTab))
	assert.Equal(t, MainTab, rec.ActiveTab())
}

func TestCloseActiveTabRepointsActive(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := rec.NewTab(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, rec.SwitchTab(ctx, "b"))

	closed, err := rec.CloseTab(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "b", closed)

	active := rec.ActiveTab()
	assert.Contains(t, tabIDs(rec), active)
	assert.Equal(t, MainTab, active)
	assert.True(t, f.connector.Last().Page(2).IsClosed())
}

func TestCloseLastTabLeavesTableEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)
	ctx := context.Background()

	_, err := rec.CloseTab(ctx, MainTab)
	require.NoError(t, err)

	assert.Empty(t, rec.ListTabs())
	_, _, err = rec.Tab("")
	require.Error(t, err)
	assert.Equal(t, KindNoTabsAvailable, KindOf(err))

	_, err = rec.CloseTab(ctx, "")
	assert.Equal(t, KindNoTabsAvailable, KindOf(err))

	// A new tab makes the session usable again
	id, err := rec.NewTab(ctx, "")
	require.NoError(t, err)
	got, _, err := rec.Tab("")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestCloseTabUnknown(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)

	_, err := rec.CloseTab(context.Background(), "ghost")

	assert.Equal(t, KindTabNotFound, KindOf(err))
	assert.Equal(t, []string{MainTab}, tabIDs(rec))
}

func TestCloseTabFailureKeepsEntry(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)
	f.connector.Last().Page(0).CloseErr = errors.New("page crashed")

	_, err := rec.CloseTab(context.Background(), MainTab)

	require.Error(t, err)
	assert.Equal(t, []string{MainTab}, tabIDs(rec))
}

func TestResolveActiveRecoversStalePointer(t *testing.T) {
	table := newTabTable()
	table.add("first", testutil.NewPage())
	table.add("second", testutil.NewPage())

	table.active = "vanished"
	id, page, err := table.resolveActive()

	require.NoError(t, err)
	assert.Equal(t, "first", id)
	assert.NotNil(t, page)
	assert.Equal(t, "first", table.Active())
}

func TestExplicitTabLookup(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "s1", 0)
	_, err := rec.NewTab(context.Background(), "side")
	require.NoError(t, err)

	id, _, err := rec.Tab(MainTab)
	require.NoError(t, err)
	assert.Equal(t, MainTab, id)
	assert.Equal(t, "side", rec.ActiveTab(), "explicit lookup must not move focus")

	_, _, err = rec.Tab("missing")
	assert.Equal(t, KindTabNotFound, KindOf(err))
}
