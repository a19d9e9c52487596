package reconcile

import (
	"context"
	"errors"
	"testing"

	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"Nome", "Descrizione", "Logistica", "Durata Ideale", "Indoor", "Difficoltà"}

// countingStore wraps a MemoryStore, counting writes and optionally failing them.
type countingStore struct {
	*store.MemoryStore
	Writes        []string
	Appends       int
	WriteCellFunc func(row, col int, value string) error
}

func (s *countingStore) WriteCell(ctx context.Context, row, col int, value string) error {
	if s.WriteCellFunc != nil {
		if err := s.WriteCellFunc(row, col, value); err != nil {
			return err
		}
	}
	s.Writes = append(s.Writes, value)
	return s.MemoryStore.WriteCell(ctx, row, col, value)
}

func (s *countingStore) AppendRow(ctx context.Context, values []string) error {
	s.Appends++
	return s.MemoryStore.AppendRow(ctx, values)
}

type MockJournal struct {
	Entries    []store.JournalEntry
	RecordFunc func(e store.JournalEntry) error
}

func (m *MockJournal) Record(ctx context.Context, e store.JournalEntry) error {
	if m.RecordFunc != nil {
		if err := m.RecordFunc(e); err != nil {
			return err
		}
	}
	m.Entries = append(m.Entries, e)
	return nil
}

func setup(t *testing.T) (*Engine, *countingStore, *catalog.Cache, *MockJournal) {
	t.Helper()
	st := &countingStore{MemoryStore: store.NewMemoryStore(header,
		[]string{"Escape Room Classico", "Enigmi a squadre", "Sede cliente", "2", "Sì", "3"},
		[]string{"Outdoor Adventure Park", "Percorsi sospesi", "Bosco", "4", "No", "4"},
	)}
	cache := catalog.NewCache(st, 0)
	journal := &MockJournal{}
	engine := NewEngine(cache, Options{
		AllowList: []string{"Descrizione", "Logistica"},
		Kinds: catalog.Kinds{
			"Durata Ideale": catalog.AveragedDuration(),
			"Indoor":        catalog.Boolean("", ""),
			"Difficoltà":    catalog.Rating(1, 5),
		},
		Journal: journal,
	})
	return engine, st, cache, journal
}

func load(t *testing.T, cache *catalog.Cache) *catalog.Snapshot {
	t.Helper()
	snap, err := cache.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func extraction(values map[string]string, missing ...string) catalog.Extraction {
	e := catalog.Extraction{}
	for k, v := range values {
		e[k] = catalog.Present(v)
	}
	for _, k := range missing {
		e[k] = catalog.Absent()
	}
	return e
}

func TestReconcile_NearDuplicateProposesAllowListedUpdate(t *testing.T) {
	engine, st, cache, _ := setup(t)
	snap := load(t, cache)

	p := engine.Reconcile(extraction(map[string]string{
		"Nome":        "Escape Room Classic",
		"Descrizione": "Enigmi a squadre con timer",
		"Logistica":   "Sede cliente",
		"Indoor":      "No",
		"Difficoltà":  "5",
	}), snap)

	assert.Equal(t, KindUpdate, p.Kind)
	assert.Equal(t, OriginDocument, p.Origin)
	assert.True(t, p.Match.Matched)
	assert.Equal(t, "Escape Room Classico", p.Identity)
	assert.Len(t, p.Changes, 2)
	assert.Contains(t, p.Changes, "Descrizione")
	assert.Contains(t, p.Changes, "Logistica")
	assert.NotContains(t, p.Changes, "Indoor")
	assert.Equal(t, []string{"Descrizione"}, p.ChangedFields())

	n, err := engine.Apply(context.Background(), p, Confirm(p))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Enigmi a squadre con timer"}, st.Writes)

	grid, _ := st.ReadRawGrid(context.Background())
	assert.Equal(t, []string{"Escape Room Classico", "Enigmi a squadre con timer", "Sede cliente", "2", "Sì", "3"}, grid[1])
}

func TestReconcile_NewNameProposesCreate(t *testing.T) {
	engine, st, cache, journal := setup(t)
	snap := load(t, cache)

	p := engine.Reconcile(extraction(map[string]string{
		"Nome":        "Cooking Challenge 2.0",
		"Descrizione": "Sfida culinaria",
		"Indoor":      "si",
	}, "Durata Ideale"), snap)

	assert.Equal(t, KindCreate, p.Kind)
	assert.False(t, p.Match.Matched)
	assert.Equal(t, "Cooking Challenge 2.0", p.Identity)
	assert.Equal(t, "", p.Fields["Durata Ideale"], "absent values are empty, not the sentinel text")
	assert.Contains(t, p.Missing, "Durata Ideale")
	assert.Contains(t, p.Missing, "Logistica")
	assert.NoError(t, engine.Validate(p, snap))

	n, err := engine.Apply(context.Background(), p, Confirm(p))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, st.Appends)

	fresh := load(t, cache)
	row, ok := fresh.Lookup("Cooking Challenge 2.0")
	require.True(t, ok, "cache must be invalidated after a write")
	assert.Equal(t, "Sì", row.Values["Indoor"], "values are normalized before writing")
	assert.Equal(t, "", row.Values["Durata Ideale"])

	require.Len(t, journal.Entries, 1)
	assert.Equal(t, "create", journal.Entries[0].Action)
	assert.Equal(t, p.ID, journal.Entries[0].ProposalID)
}

func TestCreate_EmptyIdentityBlocksOnlyOnIdentity(t *testing.T) {
	engine, st, cache, _ := setup(t)
	snap := load(t, cache)

	p := engine.Reconcile(extraction(map[string]string{"Descrizione": "Senza nome"}, "Nome", "Durata Ideale"), snap)
	require.Equal(t, KindCreate, p.Kind)

	err := engine.Validate(p, snap)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, map[string]string{"Nome": ErrIdentityRequired.Error()}, verrs.ByField())

	_, err = engine.Apply(context.Background(), p, Confirm(p))
	assert.ErrorIs(t, err, ErrIdentityRequired)
	assert.Zero(t, st.Appends)

	// The identity can be filled in at confirmation time.
	conf := Confirm(p)
	conf.Edits = map[string]string{"Nome": "Team Orienteering"}
	_, err = engine.Apply(context.Background(), p, conf)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Appends)
}

func TestCreate_DuplicateCheckedAgainstLiveCatalog(t *testing.T) {
	engine, st, cache, _ := setup(t)
	snap := load(t, cache)

	p := engine.ManualCreate(map[string]string{"Nome": "Cooking Challenge", "Descrizione": "x"}, snap)
	require.NoError(t, engine.Validate(p, snap))

	// Someone else adds the same entry before confirmation; the cache is still warm.
	require.NoError(t, st.MemoryStore.AppendRow(context.Background(), []string{"Cooking Challenge"}))
	_, err := cache.Load(context.Background())
	require.NoError(t, err)

	n, err := engine.Apply(context.Background(), p, Confirm(p))
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
	assert.Zero(t, n)
	assert.Zero(t, st.Appends)
}

func TestApply_RequiresMatchingConfirmation(t *testing.T) {
	engine, st, cache, _ := setup(t)
	p, err := engine.ManualUpdate("Outdoor Adventure Park", map[string]string{"Logistica": "Lago"}, load(t, cache))
	require.NoError(t, err)

	_, err = engine.Apply(context.Background(), p, Confirmation{ProposalID: p.ID})
	assert.ErrorIs(t, err, ErrNotConfirmed)
	_, err = engine.Apply(context.Background(), p, Confirmation{ProposalID: "other", Confirmed: true})
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Empty(t, st.Writes)

	// Review is not a commit.
	diffs := Review(p)
	require.Len(t, diffs, 1)
	assert.Equal(t, "Logistica", diffs[0].Field)
	assert.True(t, diffs[0].Changed)
	assert.Empty(t, st.Writes)
}

func TestManualUpdate_OnlyChangedFields(t *testing.T) {
	engine, st, cache, journal := setup(t)
	snap := load(t, cache)

	p, err := engine.ManualUpdate("Outdoor Adventure Park", map[string]string{
		"Nome":        "Outdoor Adventure Park",
		"Descrizione": "  Percorsi sospesi ",
		"Logistica":   "Bosco",
		"Indoor":      "no",
		"Difficoltà":  "5",
	}, snap)
	require.NoError(t, err)
	assert.Equal(t, OriginManual, p.Origin)
	assert.Equal(t, []string{"Indoor", "Difficoltà"}, p.ChangedFields(), "trimmed and case-sensitive comparison")

	n, err := engine.Apply(context.Background(), p, Confirm(p))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "Indoor normalizes to the stored literal")
	assert.Equal(t, []string{"5"}, st.Writes)
	require.Len(t, journal.Entries, 1)
	assert.Equal(t, "Difficoltà", journal.Entries[0].Field)
	assert.Equal(t, "4", journal.Entries[0].OldValue)
}

func TestManualUpdate_Errors(t *testing.T) {
	engine, _, cache, _ := setup(t)
	snap := load(t, cache)

	_, err := engine.ManualUpdate("Missing", map[string]string{"Logistica": "x"}, snap)
	assert.ErrorIs(t, err, catalog.ErrIdentityNotFound)

	_, err = engine.ManualUpdate("Outdoor Adventure Park", map[string]string{"Colore": "x"}, snap)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = engine.ManualUpdate("Outdoor Adventure Park", map[string]string{"Nome": "Renamed"}, snap)
	assert.ErrorIs(t, err, ErrIdentityChange)
}

func TestApply_UpdateIsIdempotent(t *testing.T) {
	engine, st, cache, _ := setup(t)
	p, err := engine.ManualUpdate("Escape Room Classico", map[string]string{
		"Descrizione": "Nuova descrizione",
		"Logistica":   "Ovunque",
	}, load(t, cache))
	require.NoError(t, err)

	n, err := engine.Apply(context.Background(), p, Confirm(p))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = engine.Apply(context.Background(), p, Confirm(p))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, st.Writes, 2)
}

func TestApply_DocumentUpdateNeverLeavesAllowList(t *testing.T) {
	engine, st, cache, _ := setup(t)
	snap := load(t, cache)

	p := engine.Reconcile(extraction(map[string]string{
		"Nome":       "Outdoor Adventure Park",
		"Difficoltà": "1",
	}), snap)
	require.Equal(t, KindUpdate, p.Kind)

	// Tampered proposal: a field outside the allow-list.
	p.Changes["Difficoltà"] = Change{Old: "4", New: "1"}
	_, err := engine.Apply(context.Background(), p, Confirm(p))
	assert.ErrorIs(t, err, ErrNotAllowed)

	// Edits cannot add fields either.
	delete(p.Changes, "Difficoltà")
	conf := Confirm(p)
	conf.Edits = map[string]string{"Indoor": "Sì"}
	_, err = engine.Apply(context.Background(), p, conf)
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Empty(t, st.Writes)
}

func TestApply_AbsentExtractionKeepsStoredValue(t *testing.T) {
	engine, st, cache, _ := setup(t)
	p := engine.Reconcile(extraction(map[string]string{"Nome": "Outdoor Adventure Park"}, "Descrizione", "Logistica"), load(t, cache))

	require.Equal(t, KindUpdate, p.Kind)
	assert.Equal(t, Change{Old: "Percorsi sospesi", New: "Percorsi sospesi"}, p.Changes["Descrizione"])
	assert.Empty(t, p.ChangedFields())

	n, err := engine.Apply(context.Background(), p, Confirm(p))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, st.Writes)
}

func TestApply_ResolvesRowFromLiveGrid(t *testing.T) {
	engine, st, cache, _ := setup(t)
	p, err := engine.ManualUpdate("Outdoor Adventure Park", map[string]string{"Logistica": "Lago"}, load(t, cache))
	require.NoError(t, err)

	// A row is inserted above the target after the proposal was built.
	ctx := context.Background()
	grid, _ := st.ReadRawGrid(ctx)
	for i := len(grid); i > 1; i-- {
		row := grid[i-1]
		for c, v := range row {
			require.NoError(t, st.MemoryStore.WriteCell(ctx, i+1, c+1, v))
		}
	}
	for c := range header {
		require.NoError(t, st.MemoryStore.WriteCell(ctx, 2, c+1, ""))
	}
	require.NoError(t, st.MemoryStore.WriteCell(ctx, 2, 1, "Inserted"))

	n, err := engine.Apply(ctx, p, Confirm(p))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	grid, _ = st.ReadRawGrid(ctx)
	assert.Equal(t, "Outdoor Adventure Park", grid[3][0])
	assert.Equal(t, "Lago", grid[3][2])
	assert.Equal(t, "Sede cliente", grid[2][2])
}

func TestApply_PartialWrite(t *testing.T) {
	engine, st, cache, _ := setup(t)
	p, err := engine.ManualUpdate("Escape Room Classico", map[string]string{
		"Descrizione":   "Nuova",
		"Logistica":     "Ovunque",
		"Durata Ideale": "3",
	}, load(t, cache))
	require.NoError(t, err)

	boom := errors.New("quota exceeded")
	st.WriteCellFunc = func(row, col int, value string) error {
		if value == "Ovunque" {
			return boom
		}
		return nil
	}

	n, err := engine.Apply(context.Background(), p, Confirm(p))
	var pw *PartialWriteError
	require.ErrorAs(t, err, &pw)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, pw.Written)
	assert.Equal(t, "Logistica", pw.Field)

	snap := load(t, cache)
	row, _ := snap.Lookup("Escape Room Classico")
	assert.Equal(t, "Nuova", row.Values["Descrizione"], "earlier writes stay committed and the cache is refreshed")

	// Retry after the failure clears writes only what is left.
	st.WriteCellFunc = nil
	n, err = engine.Apply(context.Background(), p, Confirm(p))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestApply_ValidationBlocksWrites(t *testing.T) {
	engine, st, cache, _ := setup(t)
	p, err := engine.ManualUpdate("Escape Room Classico", map[string]string{
		"Difficoltà": "9",
		"Indoor":     "forse",
	}, load(t, cache))
	require.NoError(t, err)

	_, err = engine.Apply(context.Background(), p, Confirm(p))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
	assert.ErrorIs(t, err, catalog.ErrInvalidValue)
	assert.Empty(t, st.Writes)
}

func TestApply_JournalFailureDoesNotFailWrite(t *testing.T) {
	engine, _, cache, journal := setup(t)
	journal.RecordFunc = func(store.JournalEntry) error { return errors.New("db down") }

	p, err := engine.ManualUpdate("Escape Room Classico", map[string]string{"Logistica": "Ovunque"}, load(t, cache))
	require.NoError(t, err)
	n, err := engine.Apply(context.Background(), p, Confirm(p))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReview_CreateListsEveryField(t *testing.T) {
	engine, _, cache, _ := setup(t)
	p := engine.ManualCreate(map[string]string{"Nome": "Nuovo", "Indoor": "Sì"}, load(t, cache))

	diffs := Review(p)
	require.Len(t, diffs, len(header))
	assert.Equal(t, "Nome", diffs[0].Field)
	assert.Equal(t, "Nuovo", diffs[0].New)
	assert.Equal(t, []Segment{{Op: "insert", Text: "Nuovo"}}, diffs[0].Segments)
	assert.False(t, diffs[1].Changed)
}
