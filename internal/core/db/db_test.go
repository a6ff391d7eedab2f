package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/eventfilter/internal/bus"
	"github.com/solatis/eventfilter/internal/rules"
	"github.com/solatis/eventfilter/internal/types"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantSource string
		wantErr    bool
	}{
		{url: "sqlite://journal.db", wantDriver: DriverSQLite, wantSource: "journal.db"},
		{url: "sqlite://data/journal.db", wantDriver: DriverSQLite, wantSource: "data/journal.db"},
		{url: "sqlite:///var/lib/ef/journal.db", wantDriver: DriverSQLite, wantSource: "/var/lib/ef/journal.db"},
		{url: "sqlite:///tmp/j.db?_journal_mode=WAL", wantDriver: DriverSQLite, wantSource: "/tmp/j.db?_journal_mode=WAL"},
		{url: "postgres://u:p@localhost:5432/ef?sslmode=disable", wantDriver: DriverPostgres, wantSource: "postgres://u:p@localhost:5432/ef?sslmode=disable"},
		{url: "postgresql://localhost/ef", wantDriver: DriverPostgres, wantSource: "postgresql://localhost/ef"},
		{url: "mysql://localhost/ef", wantErr: true},
		{url: "sqlite://", wantErr: true},
		{url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, source, err := parseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestMigrateUp(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	statuses, err := MigrateStatus(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.False(t, s.Applied, s.ID)
	}

	ran, err := MigrateUp(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_initial_schema.sql"}, ran)

	ran, err = MigrateUp(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, ran, "second run applies nothing")

	statuses, err = MigrateStatus(ctx, db)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.ID)
		require.NotNil(t, s.AppliedAt, s.ID)
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := MigrateUp(ctx, db)
	require.NoError(t, err)

	_, err = db.Exec("UPDATE migrations SET checksum = 'tampered'")
	require.NoError(t, err)

	_, err = MigrateUp(ctx, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (id INTEGER);

-- second
CREATE INDEX idx ON a (id);
-- trailing only`

	assert.Equal(t, []string{
		"CREATE TABLE a (id INTEGER)",
		"CREATE INDEX idx ON a (id)",
	}, splitStatements(sql))
}

func newJournal(t *testing.T) *Journal {
	t.Helper()
	db := openTestDB(t)
	_, err := MigrateUp(context.Background(), db)
	require.NoError(t, err)
	j, err := NewJournal(db, zerolog.Nop())
	require.NoError(t, err)
	return j
}

func TestJournal_RecordAndList(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	rule := &types.Rule{Name: "save", Context: []string{"editor"}, Sequence: []types.Mask{{"key": "s"}}, Mask: types.Mask{"key": "s"}}
	detail := &types.Detail{
		Name:             "save",
		ComposedContexts: []string{"editor"},
		OriginalEvent:    types.NewRecord("keydown", map[string]any{"key": "s"}),
		EventConfig:      rule,
	}
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := types.Emission{ID: types.NewEmissionID(), Type: "editor.save", At: base, Detail: detail}
	second := types.Emission{ID: types.NewEmissionID(), Type: "FilterEvent", At: base.Add(time.Second), Detail: detail}
	require.NoError(t, j.Record(ctx, first))
	require.NoError(t, j.Record(ctx, second))

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, string(second.ID), all[0].ID, "newest first")
	assert.Equal(t, string(first.ID), all[1].ID)

	rec := all[1]
	assert.Equal(t, "editor.save", rec.Type)
	assert.Equal(t, "save", rec.RuleName)
	assert.Equal(t, "editor", rec.Context.String)
	assert.Equal(t, "keydown", rec.OriginalType)
	assert.Equal(t, base, rec.EmittedAt())

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.Payload), &payload))
	assert.Equal(t, "save", payload["name"])

	saves, err := j.Recent(ctx, "editor.save", 10)
	require.NoError(t, err)
	require.Len(t, saves, 1)

	limited, err := j.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	counts, err := j.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TypeCount{{Type: "FilterEvent", Total: 1}, {Type: "editor.save", Total: 1}}, counts)

	removed, err := j.Prune(ctx, base.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	all, err = j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, string(second.ID), all[0].ID)
}

func TestJournal_GlobalRuleHasNullContext(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	em := types.Emission{ID: types.NewEmissionID(), Type: "*.help", At: time.Now(), Detail: &types.Detail{Name: "help"}}
	require.NoError(t, j.Record(ctx, em))

	recs, err := j.Recent(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Context.Valid)
	assert.Empty(t, recs[0].OriginalType)
}

func TestJournal_RejectsMissingDetail(t *testing.T) {
	j := newJournal(t)
	err := j.Record(context.Background(), types.Emission{ID: types.NewEmissionID(), Type: "x"})
	assert.Error(t, err)
}

func TestJournal_BusListener(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	b := bus.New()
	b.Listen(bus.AnyType, j.Listener(ctx))
	engine := rules.NewEngine(map[string]any{
		"editor": map[string]any{"save": map[string]any{"key": "s"}},
	}, rules.WithSink(b))
	defer engine.Close()

	res := engine.OnEvent(types.NewRecord("keydown", map[string]any{"key": "s"}), []string{"editor"})
	require.True(t, res.Handled)

	counts, err := j.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TypeCount{{Type: "FilterEvent", Total: 1}, {Type: "editor.save", Total: 1}}, counts)
}
