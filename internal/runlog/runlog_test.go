package runlog

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"psykar.com/ekfbot/internal/config"
	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/evolve"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func champion(seed uint64, fitness float64, source string) *evolve.Individual {
	return &evolve.Individual{
		Driver:  driver.NewSeededNeuralDriver(12, 100, rand.NewSource(seed)),
		Fitness: fitness,
		Source:  source,
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTemp(t)
	cfg := config.Default()
	cfg.Sim.Seed = 77

	started := time.Unix(1700000000, 0)
	id, err := db.StartRun(cfg, started)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	champs := []*evolve.Individual{
		champion(1, 12, evolve.SourceInitial),
		champion(2, 40, evolve.SourceMutatedPool),
		champion(3, 31, evolve.SourcePreviousBest),
	}
	for i, c := range champs {
		st := evolve.Stats{Generation: i, Best: c.Fitness, Average: c.Fitness / 2, Worst: 1, Stuck: 3 - i, BestSource: c.Source}
		require.NoError(t, db.RecordGeneration(id, st, c))
	}
	require.NoError(t, db.FinishRun(id, started.Add(time.Minute)))

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, uint64(77), runs[0].Seed)
	assert.Equal(t, 80, runs[0].Population)
	assert.True(t, runs[0].StartedAt.Equal(started))
	assert.True(t, runs[0].FinishedAt.Equal(started.Add(time.Minute)))
	assert.Contains(t, runs[0].Config, "seed: 77")

	gens, err := db.Generations(id)
	require.NoError(t, err)
	require.Len(t, gens, 3)
	assert.Equal(t, Generation{Generation: 1, Best: 40, Average: 20, Worst: 1, Stuck: 2, BestSource: evolve.SourceMutatedPool}, gens[1])

	best, err := db.BestGenome(id)
	require.NoError(t, err)
	assert.Equal(t, 40.0, best.Fitness)
	assert.Equal(t, id, best.RunID)
	assert.Equal(t, champs[1].Driver.Genome(), best.Weights)

	d, err := best.Driver()
	require.NoError(t, err)
	assert.Equal(t, champs[1].Driver.Genome(), d.Genome())
}

func TestDuplicateGenerationRejected(t *testing.T) {
	db := openTemp(t)
	id, err := db.StartRun(config.Default(), time.Now())
	require.NoError(t, err)

	c := champion(1, 5, evolve.SourceInitial)
	require.NoError(t, db.RecordGeneration(id, evolve.Stats{Generation: 0}, c))
	assert.Error(t, db.RecordGeneration(id, evolve.Stats{Generation: 0}, c))

	gens, err := db.Generations(id)
	require.NoError(t, err)
	assert.Len(t, gens, 1, "a failed insert leaves nothing behind")
}

func TestUnknownRun(t *testing.T) {
	db := openTemp(t)

	assert.ErrorContains(t, db.FinishRun("nope", time.Now()), "unknown run")

	_, err := db.BestGenome("nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	gens, err := db.Generations("nope")
	require.NoError(t, err)
	assert.Empty(t, gens)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	require.NoError(t, err)
	id, err := db.StartRun(config.Default(), time.Now())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
}

func TestBestDriverDrivesLikeChampion(t *testing.T) {
	db := openTemp(t)
	id, err := db.StartRun(config.Default(), time.Unix(1700000000, 0))
	require.NoError(t, err)

	weak, strong := champion(8, 5, evolve.SourceInitial), champion(9, 50, evolve.SourceBredFromPool)
	require.NoError(t, db.RecordGeneration(id, evolve.Stats{Generation: 0, Best: 5}, weak))
	require.NoError(t, db.RecordGeneration(id, evolve.Stats{Generation: 1, Best: 50}, strong))

	d, f, err := db.BestDriver(id)
	require.NoError(t, err)
	assert.Equal(t, 50.0, f.Fitness)
	assert.Equal(t, id, f.RunID)

	in := driver.Inputs{Distances: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120}, MaxRange: 100}
	assert.Equal(t, strong.Driver.Drive(in), d.Drive(in))

	_, _, err = db.BestDriver("missing")
	assert.Error(t, err)
}
