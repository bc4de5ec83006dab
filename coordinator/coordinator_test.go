package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/qasego/qasego/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeRuns struct {
	mu      sync.Mutex
	created []model.RunCreate
	loaded  []int64
}

func (f *fakeRuns) CreateRun(_ context.Context, run model.RunCreate) (model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run)
	return model.Run{ID: int64(1000 + len(f.created)), Title: run.Title, Cases: run.Cases}, nil
}

func (f *fakeRuns) GetRun(_ context.Context, id int64) (model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, id)
	return model.Run{ID: id, Title: "loaded"}, nil
}

func payload() (model.RunCreate, error) {
	return model.RunCreate{Title: "run", Cases: []model.CaseID{42}}, nil
}

func TestConfigure_CreatesThenLoads(t *testing.T) {
	dir := t.TempDir()
	runs := &fakeRuns{}

	primary := New(zerolog.Nop(), runs, dir, Options{})
	require.NoError(t, primary.SessionStart(true))

	run, outcome, err := primary.Configure(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, model.RunOutcomeCreated, outcome)
	require.Equal(t, int64(1001), run.ID)

	data, err := os.ReadFile(filepath.Join(dir, RecordFileName))
	require.NoError(t, err)
	require.Equal(t, "1001", string(data))

	worker := New(zerolog.Nop(), runs, dir, Options{})
	require.NoError(t, worker.SessionStart(false))

	run, outcome, err = worker.Configure(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, model.RunOutcomeLoaded, outcome)
	require.Equal(t, int64(1001), run.ID)
	require.Len(t, runs.created, 1)
	require.Equal(t, []int64{1001}, runs.loaded)
}

func TestConfigure_ExistingRecordSkipsCreation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RecordFileName), []byte("1234"), 0644))

	runs := &fakeRuns{}
	run, outcome, err := New(zerolog.Nop(), runs, dir, Options{}).Configure(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, model.RunOutcomeLoaded, outcome)
	require.Equal(t, int64(1234), run.ID)
	require.Empty(t, runs.created)
}

func TestSessionStart_PrimaryRemovesStaleRecord(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, RecordFileName)
	require.NoError(t, os.WriteFile(record, []byte("1"), 0644))

	// Non-primary processes leave the primary's artifacts alone
	require.NoError(t, New(zerolog.Nop(), &fakeRuns{}, dir, Options{}).SessionStart(false))
	require.FileExists(t, record)

	require.NoError(t, New(zerolog.Nop(), &fakeRuns{}, dir, Options{}).SessionStart(true))
	require.NoFileExists(t, record)
	require.FileExists(t, filepath.Join(dir, LockFileName))
}

func TestConfigure_AppliesOptions(t *testing.T) {
	runs := &fakeRuns{}
	c := New(zerolog.Nop(), runs, t.TempDir(), Options{
		PlanID:        5,
		EnvironmentID: 3,
		CustomFieldID: "12",
		SourceURL:     "https://ci.example.com/job/1",
	})

	_, _, err := c.Configure(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, runs.created, 1)

	got := runs.created[0]
	require.Equal(t, int64(5), got.PlanID)
	require.Equal(t, int64(3), got.EnvironmentID)
	require.Equal(t, map[string]string{"12": "https://ci.example.com/job/1"}, got.CustomField)
}

func TestConfigure_BuildErrorAborts(t *testing.T) {
	runs := &fakeRuns{}
	wantErr := &model.DuplicatingCaseIDError{IDs: []model.CaseID{42}}

	_, _, err := New(zerolog.Nop(), runs, t.TempDir(), Options{}).Configure(context.Background(), func() (model.RunCreate, error) {
		return model.RunCreate{}, wantErr
	})
	require.True(t, errors.Is(err, wantErr))
	require.Empty(t, runs.created)
}

func TestConfigure_ConcurrentWorkersShareOneRun(t *testing.T) {
	const workers = 8

	dir := t.TempDir()
	runs := &fakeRuns{}
	require.NoError(t, New(zerolog.Nop(), runs, dir, Options{}).SessionStart(true))

	ids := make([]int64, workers)
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			// Each worker holds its own lock handle, like separate processes do
			run, _, err := New(zerolog.Nop(), runs, dir, Options{}).Configure(context.Background(), payload)
			ids[i] = run.ID
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, runs.created, 1)
	for _, id := range ids {
		require.Equal(t, int64(1001), id)
	}
}
