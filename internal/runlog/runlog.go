// Package runlog records training runs in a SQLite database: one row per
// run, per generation summary and per generation champion genome.
package runlog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"psykar.com/ekfbot/internal/config"
	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/evolve"
)

// schema.sql creates the runs, generations and genomes tables.
//
//go:embed schema.sql
var schemaSQL string

// DB is a training record store.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &DB{db}, nil
}

// Run is one training run.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Seed        uint64
	Population  int
	Generations int
	Config      string
}

// Generation is a stored generation summary.
type Generation struct {
	Generation int
	Best       float64
	Average    float64
	Worst      float64
	Stuck      int
	BestSource string
}

// StartRun records a new run of cfg and returns its id.
func (db *DB) StartRun(cfg *config.Config, started time.Time) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	id := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO runs (id, started_at, seed, population, generations, config)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, started.UnixNano(), int64(cfg.Sim.Seed), cfg.Train.Population, cfg.Train.Generations, string(data))
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end time of a run.
func (db *DB) FinishRun(id string, finished time.Time) error {
	res, err := db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, finished.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown run %s", id)
	}
	return nil
}

// RecordGeneration stores a generation summary and its champion.
func (db *DB) RecordGeneration(runID string, st evolve.Stats, champ *evolve.Individual) error {
	f := champ.Driver.File()
	f.Fitness = champ.Fitness
	f.Source = champ.Source
	f.RunID = runID
	genome, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode genome: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO generations (run_id, generation, best, average, worst, stuck, best_source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, st.Generation, st.Best, st.Average, st.Worst, st.Stuck, st.BestSource)
	if err != nil {
		return fmt.Errorf("failed to insert generation %d: %w", st.Generation, err)
	}

	_, err = tx.Exec(`
		INSERT INTO genomes (run_id, generation, fitness, source, genome)
		VALUES (?, ?, ?, ?, ?)
	`, runID, st.Generation, champ.Fitness, champ.Source, string(genome))
	if err != nil {
		return fmt.Errorf("failed to insert genome %d: %w", st.Generation, err)
	}
	return tx.Commit()
}

// Runs lists runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT id, started_at, COALESCE(finished_at, 0), seed, population, generations, config
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished, seed int64
		if err := rows.Scan(&r.ID, &started, &finished, &seed, &r.Population, &r.Generations, &r.Config); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if finished != 0 {
			r.FinishedAt = time.Unix(0, finished)
		}
		r.Seed = uint64(seed)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Generations returns the stored summaries of a run in order.
func (db *DB) Generations(runID string) ([]Generation, error) {
	rows, err := db.Query(`
		SELECT generation, best, average, worst, stuck, best_source
		FROM generations WHERE run_id = ? ORDER BY generation
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		var g Generation
		if err := rows.Scan(&g.Generation, &g.Best, &g.Average, &g.Worst, &g.Stuck, &g.BestSource); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// BestGenome returns the fittest stored champion of a run.
func (db *DB) BestGenome(runID string) (driver.GenomeFile, error) {
	var data string
	err := db.QueryRow(`
		SELECT genome FROM genomes WHERE run_id = ?
		ORDER BY fitness DESC, generation ASC LIMIT 1
	`, runID).Scan(&data)
	if err != nil {
		return driver.GenomeFile{}, fmt.Errorf("failed to load best genome of %s: %w", runID, err)
	}
	var f driver.GenomeFile
	if err := yaml.Unmarshal([]byte(data), &f); err != nil {
		return driver.GenomeFile{}, fmt.Errorf("failed to decode genome: %w", err)
	}
	return f, nil
}

// BestDriver rebuilds the driver of the fittest stored champion of a run.
func (db *DB) BestDriver(runID string) (*driver.NeuralDriver, driver.GenomeFile, error) {
	f, err := db.BestGenome(runID)
	if err != nil {
		return nil, driver.GenomeFile{}, err
	}
	d, err := f.Driver()
	if err != nil {
		return nil, driver.GenomeFile{}, fmt.Errorf("run %s: %w", runID, err)
	}
	return d, f, nil
}
