package result_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/effcurve/internal/extract"
	"github.com/signalnine/effcurve/internal/result"
)

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "results.db")

	log, err := result.OpenSQLite(ctx, path, "sweep-1")
	require.NoError(t, err)

	res := extract.NewParser().Parse("Total number of events : 100000\nNumber of events in photopeak : 2345\n")
	rec := result.NewRecord("100000", "0.06903793103448276", res)
	require.NoError(t, log.Append(ctx, rec))
	require.NoError(t, log.Close())

	// reopening runs the schema again without touching existing rows
	log, err = result.OpenSQLite(ctx, path, "sweep-2")
	require.NoError(t, err)
	defer log.Close()
	require.NoError(t, log.Append(ctx, result.Record{RunSize: "10", Energy: "1", PhotopeakCount: "N/A", Efficiency: "N/A", Error: "N/A"}))

	got, err := log.Records(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "sweep-1", got[0].SweepID)
	assert.Equal(t, rec.Row(), got[0].Row())
	assert.Equal(t, "100000", got[0].TotalEvents)
	assert.Equal(t, "N/A", got[0].Efficiency)
	assert.False(t, got[0].RecordedAt.IsZero())

	assert.Equal(t, "sweep-2", got[1].SweepID)
	assert.Equal(t, "N/A", got[1].TotalEvents)
}

type failingSink struct{ calls int }

func (f *failingSink) Append(context.Context, result.Record) error {
	f.calls++
	return errors.New("disk full")
}

type countingSink struct{ recs []result.Record }

func (c *countingSink) Append(_ context.Context, rec result.Record) error {
	c.recs = append(c.recs, rec)
	return nil
}

func TestMultiSink(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := result.Multi(a, nil, b)
	require.Len(t, m, 2)
	require.NoError(t, m.Append(context.Background(), result.Record{Energy: "1"}))
	assert.Len(t, a.recs, 1)
	assert.Len(t, b.recs, 1)

	fail, after := &failingSink{}, &countingSink{}
	err := result.Multi(a, fail, after).Append(context.Background(), result.Record{Energy: "2"})
	assert.EqualError(t, err, "disk full")
	assert.Len(t, a.recs, 2)
	assert.Empty(t, after.recs)
}
