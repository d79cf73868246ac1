// Package sampler decides which record each worker decodes next.
//
// A Stream hands out record numbers in sequential, shuffled or stratified
// order. Every record of the selected set is handed out exactly once per
// pass, no matter how many goroutines call Next.
package sampler

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/pixpipe/record"
	"github.com/hupe1980/pixpipe/store"
)

var (
	// ErrEmpty is returned when the configuration selects no records.
	ErrEmpty = errors.New("sampler: no records selected")
	// ErrUnclassified is returned when stratifying over a record that has
	// no class.
	ErrUnclassified = errors.New("sampler: record has no class")
	// ErrInvalidConfig is returned for bad weights or splits.
	ErrInvalidConfig = errors.New("sampler: invalid config")
)

// Config controls the order of a Stream.
type Config struct {
	// Shuffle draws a seeded permutation instead of file order.
	Shuffle bool
	// FixedOrder reuses the first permutation on every pass instead of
	// reshuffling when looping.
	FixedOrder bool
	// Loop restarts the stream after the last record.
	Loop bool
	// Seed seeds every permutation.
	Seed int64
	// Stratify interleaves records by class.
	Stratify bool
	// Weights sets the relative share of each class when stratifying.
	// Classes without a weight get 1; a weight of 0 excludes the class.
	Weights map[int32]float64
	// Split restricts the stream to some folds of a K-fold partition.
	Split Split
}

// Split selects folds of a K-fold partition. Each group (class, or the
// whole store when not stratifying) is cut into Folds contiguous pieces
// after the initial shuffle; the stream keeps the pieces listed in Keys.
// A zero Folds disables splitting.
type Split struct {
	Folds int   `json:"folds"`
	Keys  []int `json:"keys"`
}

// KFold returns cfg restricted to the training or test side of fold.
// The test side never loops.
func (cfg Config) KFold(folds, fold int, train bool) Config {
	out := cfg
	out.Split = Split{Folds: folds}
	if train {
		for k := 0; k < folds; k++ {
			if k != fold {
				out.Split.Keys = append(out.Split.Keys, k)
			}
		}
		return out
	}
	out.Split.Keys = []int{fold}
	out.Loop = false
	out.FixedOrder = true
	return out
}

// Draw is one record handed out by a Stream. Seq numbers draws from zero
// without gaps.
type Draw struct {
	Seq    uint64
	Record int
}

type group struct {
	class   int32
	weight  float64
	current float64
	order   []int
	pos     int
	active  bool
}

// Stream is a thread-safe cursor over precomputed permutations.
type Stream struct {
	cfg Config

	mu     sync.Mutex
	rng    *rand.Rand
	groups []*group
	seq    uint64
	total  int
	done   bool

	// counts from before the last Reset
	prior  uint64
	passes int
}

// New builds a stream over entries.
func New(entries []store.Entry, cfg Config) (*Stream, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Stream{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)), // nolint gosec
	}

	if cfg.Stratify {
		byClass := make(map[int32][]int)
		for _, e := range entries {
			if e.Class == record.NoClass {
				return nil, fmt.Errorf("%w: record %d", ErrUnclassified, e.Record)
			}
			byClass[e.Class] = append(byClass[e.Class], e.Record)
		}
		classes := make([]int32, 0, len(byClass))
		for c := range byClass {
			classes = append(classes, c)
		}
		slices.Sort(classes)
		for _, c := range classes {
			w := 1.0
			if v, ok := cfg.Weights[c]; ok {
				w = v
			}
			if w == 0 {
				continue
			}
			s.groups = append(s.groups, &group{class: c, weight: w, order: byClass[c]})
		}
	} else {
		all := make([]int, len(entries))
		for i, e := range entries {
			all[i] = e.Record
		}
		s.groups = []*group{{class: record.NoClass, weight: 1, order: all}}
	}

	kept := s.groups[:0]
	for _, g := range s.groups {
		if cfg.Shuffle {
			s.shuffle(g.order)
		}
		g.order = cfg.Split.selectFrom(g.order)
		if len(g.order) == 0 {
			continue
		}
		g.active = true
		s.total += len(g.order)
		kept = append(kept, g)
	}
	s.groups = kept

	if s.total == 0 {
		return nil, ErrEmpty
	}
	return s, nil
}

func (cfg Config) validate() error {
	for c, w := range cfg.Weights {
		if w < 0 || w != w {
			return fmt.Errorf("%w: weight %v for class %d", ErrInvalidConfig, w, c)
		}
	}
	sp := cfg.Split
	if sp.Folds < 0 || (sp.Folds == 0 && len(sp.Keys) > 0) {
		return fmt.Errorf("%w: %d folds", ErrInvalidConfig, sp.Folds)
	}
	for _, k := range sp.Keys {
		if k < 0 || k >= sp.Folds {
			return fmt.Errorf("%w: fold key %d not in [0, %d)", ErrInvalidConfig, k, sp.Folds)
		}
	}
	return nil
}

func (sp Split) selectFrom(ids []int) []int {
	if sp.Folds == 0 {
		return ids
	}
	keys := slices.Clone(sp.Keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	n := len(ids)
	var out []int
	for _, k := range keys {
		out = append(out, ids[n*k/sp.Folds:n*(k+1)/sp.Folds]...)
	}
	return out
}

func (s *Stream) shuffle(ids []int) {
	s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// Next returns the next draw. It returns false once a finite stream is
// exhausted. Safe for concurrent use.
func (s *Stream) Next() (Draw, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return Draw{}, false
	}

	g := s.pick()
	d := Draw{Seq: s.seq, Record: g.order[g.pos]}
	s.seq++
	g.pos++

	if g.pos == len(g.order) {
		if s.cfg.Loop {
			g.pos = 0
			if s.cfg.Shuffle && !s.cfg.FixedOrder {
				s.shuffle(g.order)
			}
		} else {
			g.active = false
			s.done = !slices.ContainsFunc(s.groups, func(g *group) bool { return g.active })
		}
	}
	return d, true
}

// Reset rewinds the stream to the start of a new pass. Draw numbering
// restarts at zero while Pass and Drawn keep counting. Shuffled orders are
// reshuffled unless FixedOrder is set.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.passes += int(s.seq / uint64(s.total))
	s.prior += s.seq
	s.seq = 0
	s.done = false
	for _, g := range s.groups {
		g.pos, g.current, g.active = 0, 0, true
		if s.cfg.Shuffle && !s.cfg.FixedOrder {
			s.shuffle(g.order)
		}
	}
}

// pick selects the next group by smooth weighted round-robin. Ties go to
// the lowest class.
func (s *Stream) pick() *group {
	if len(s.groups) == 1 {
		return s.groups[0]
	}
	var (
		best  *group
		total float64
	)
	for _, g := range s.groups {
		if !g.active {
			continue
		}
		g.current += g.weight
		total += g.weight
		if best == nil || g.current > best.current {
			best = g
		}
	}
	best.current -= total
	return best
}

// Len returns the number of records in one pass.
func (s *Stream) Len() int { return s.total }

// Pass returns the number of complete passes handed out so far.
func (s *Stream) Pass() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes + int(s.seq/uint64(s.total))
}

// Drawn returns the number of draws handed out so far.
func (s *Stream) Drawn() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prior + s.seq
}
