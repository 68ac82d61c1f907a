// Package evolve trains NeuralDriver weights with a simple generational
// algorithm: score everyone, keep the top tenth, refill by mutation and
// crossover from the survivors.
package evolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/jdeal-mediamath/clockwork"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"psykar.com/ekfbot/internal/config"
	"psykar.com/ekfbot/internal/driver"
	"psykar.com/ekfbot/internal/logging"
	"psykar.com/ekfbot/internal/sim"
	"psykar.com/ekfbot/internal/world"
)

// Where an individual came from.
const (
	SourceInitial      = "initial"
	SourcePreviousBest = "previous best"
	SourceMutatedBest  = "mutated from best"
	SourceMutatedPool  = "mutated from pool"
	SourceBredFromPool = "bred from pool"
)

// survivorShare is the inverse of the fraction of each generation kept.
const survivorShare = 10

// Individual is one controller and its last score.
type Individual struct {
	Driver  *driver.NeuralDriver
	Source  string
	Fitness float64
	// Halted is set when the estimator failed during evaluation. The
	// fitness then covers the ticks before the failure.
	Halted bool
}

type byFitness []*Individual

func (s byFitness) Len() int           { return len(s) }
func (s byFitness) Less(i, j int) bool { return s[i].Fitness > s[j].Fitness }
func (s byFitness) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Stats summarises one evaluated generation.
type Stats struct {
	Generation int
	Best       float64
	Average    float64
	Worst      float64
	// Stuck counts individuals that never left their starting cell.
	Stuck      int
	BestSource string
	Best10     []float64
}

// Trainer holds the population between generations.
type Trainer struct {
	cfg *config.Config
	m   *world.Map

	Population []*Individual
	generation int

	rng   *rand.Rand
	noise distuv.Normal

	workers int
	logger  *slog.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger used for per generation summaries.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) {
		t.logger = l
	}
}

// NewTrainer seeds a random population from cfg.Sim.Seed.
func NewTrainer(cfg *config.Config, m *world.Map, opts ...Option) (*Trainer, error) {
	if err := cfg.ValidateTrain(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	t := &Trainer{
		cfg:     cfg,
		m:       m,
		rng:     rand.New(rand.NewSource(cfg.Sim.Seed)),
		workers: cfg.Train.Workers,
	}
	t.noise = distuv.Normal{Sigma: cfg.Train.MutationSigma, Src: rand.NewSource(t.rng.Uint64())}
	if t.workers <= 0 {
		t.workers = runtime.NumCPU()
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = logging.OrDiscard(t.logger)

	for i := 0; i < cfg.Train.Population; i++ {
		d := driver.NewSeededNeuralDriver(cfg.Sensors.Count, cfg.Robot.Power, rand.NewSource(t.rng.Uint64()))
		t.Population = append(t.Population, &Individual{Driver: d, Source: SourceInitial})
	}
	return t, nil
}

// Generation is the index of the next generation to evaluate.
func (t *Trainer) Generation() int {
	return t.generation
}

// Evaluate scores every individual in parallel.
func (t *Trainer) Evaluate(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, ind := range t.Population {
		ind := ind
		g.Go(func() error {
			return t.evaluate(ctx, ind)
		})
	}
	return g.Wait()
}

func (t *Trainer) evaluate(ctx context.Context, ind *Individual) error {
	s, err := sim.New(t.cfg, t.m, ind.Driver, sim.WithClock(clockwork.NewFakeClock()))
	if err != nil {
		return err
	}

	ind.Halted = false
	err = s.Run(ctx, t.cfg.Train.Ticks)
	var tickErr *sim.TickError
	switch {
	case errors.As(err, &tickErr):
		ind.Halted = true
		t.logger.Debug("evaluation halted", "source", ind.Source, "tick", tickErr.Tick, "error", tickErr.Err)
	case err != nil:
		return err
	}
	ind.Fitness = float64(Coverage(s.Robot.Path, CellSize))
	return nil
}

// Rank sorts the population best first and summarises it.
func (t *Trainer) Rank() Stats {
	sort.Stable(byFitness(t.Population))

	st := Stats{Generation: t.generation}
	if len(t.Population) == 0 {
		return st
	}
	st.Best = t.Population[0].Fitness
	st.BestSource = t.Population[0].Source
	st.Worst = t.Population[len(t.Population)-1].Fitness

	total := 0.0
	for _, ind := range t.Population {
		total += ind.Fitness
		if ind.Fitness <= 1 {
			st.Stuck++
		}
	}
	st.Average = total / float64(len(t.Population))

	for _, ind := range t.survivors() {
		st.Best10 = append(st.Best10, ind.Fitness)
	}
	return st
}

func (t *Trainer) survivors() []*Individual {
	n := len(t.Population) / survivorShare
	if n < 1 {
		n = 1
	}
	return t.Population[:n]
}

// Breed replaces the ranked population with the next generation: every
// survivor, a mutated copy of each, then mutants and crossovers of random
// survivors until the population is full again.
func (t *Trainer) Breed() {
	size := len(t.Population)
	best := t.survivors()

	next := make([]*Individual, 0, size+1)
	for _, ind := range best {
		next = append(next,
			&Individual{Driver: ind.Driver, Source: SourcePreviousBest},
			&Individual{Driver: driver.Mutate(ind.Driver, t.noise), Source: SourceMutatedBest},
		)
	}
	for len(next) < size {
		next = append(next, t.mutateFromPool(best), t.breedFromPool(best))
	}
	t.Population = next[:size]
	t.generation++
}

func (t *Trainer) mutateFromPool(best []*Individual) *Individual {
	parent := best[t.rng.Intn(len(best))]
	return &Individual{Driver: driver.Mutate(parent.Driver, t.noise), Source: SourceMutatedPool}
}

func (t *Trainer) breedFromPool(best []*Individual) *Individual {
	left := best[t.rng.Intn(len(best))]
	right := best[t.rng.Intn(len(best))]
	return &Individual{Driver: driver.Breed(left.Driver, right.Driver, t.noise), Source: SourceBredFromPool}
}

// Step evaluates, ranks and breeds one generation.
func (t *Trainer) Step(ctx context.Context) (Stats, *Individual, error) {
	if err := t.Evaluate(ctx); err != nil {
		return Stats{}, nil, err
	}
	st := t.Rank()
	champ := *t.Population[0]
	champ.Driver = champ.Driver.Clone()

	t.logger.Info("generation complete",
		"generation", st.Generation,
		"best", st.Best,
		"avg", fmt.Sprintf("%.2f", st.Average),
		"worst", st.Worst,
		"stuck", st.Stuck,
		"best_source", st.BestSource)

	t.Breed()
	return st, &champ, nil
}

// Run trains for n generations, calling report after each one, and returns
// the best individual seen.
func (t *Trainer) Run(ctx context.Context, n int, report func(Stats, *Individual) error) (*Individual, error) {
	var best *Individual
	for i := 0; i < n; i++ {
		st, champ, err := t.Step(ctx)
		if err != nil {
			return best, err
		}
		if best == nil || champ.Fitness > best.Fitness {
			best = champ
		}
		if report != nil {
			if err := report(st, champ); err != nil {
				return best, err
			}
		}
	}
	return best, nil
}
