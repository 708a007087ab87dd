package convert

import (
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/vellum/internal/models"
)

// Path scores.
const (
	ScoreLossless    = 1.0
	ScoreLossy       = 1.6
	ScoreUnreachable = 1000.0
)

type edge struct {
	to   string
	conv Converter
}

// Registry owns the registered converters and answers "convert from X to Y",
// synthesizing chains when no direct converter exists. Every answer,
// including "no converter", is memoized for the registry's lifetime and is
// not recomputed when converters are registered later.
type Registry struct {
	mu     sync.RWMutex
	nodes  []string          // discovery order of source types
	adj    map[string][]edge // direct edges per source type, in registration order
	memo   map[string]Converter
	group  singleflight.Group
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry builds a registry from an explicit, ordered converter list.
// Registration order is the discovery order used to break score ties.
func NewRegistry(converters []Converter, opts ...RegistryOption) *Registry {
	r := &Registry{
		adj:    make(map[string][]edge),
		memo:   make(map[string]Converter),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	for _, c := range converters {
		r.Register(c)
	}
	return r
}

// Register adds a direct edge for every input type of c. The first converter
// registered for a (from, to) pair wins.
func (r *Registry) Register(c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	to := c.OutputContentType()
	for _, from := range c.ContentTypes() {
		if from == to {
			continue
		}
		if _, ok := r.adj[from]; !ok {
			r.nodes = append(r.nodes, from)
		}
		if r.directLocked(from, to) != nil {
			r.logger.Debug("duplicate converter ignored",
				slog.String("from", from), slog.String("to", to), slog.String("converter", Name(c)))
			continue
		}
		r.adj[from] = append(r.adj[from], edge{to: to, conv: c})
	}
}

func (r *Registry) directLocked(from, to string) Converter {
	for _, e := range r.adj[from] {
		if e.to == to {
			return e.conv
		}
	}
	return nil
}

// Converter returns a converter from one content type to another, or nil when
// no path exists. It never fails.
func (r *Registry) Converter(from, to string) Converter {
	key := from + "\x00" + to

	r.mu.RLock()
	c, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		return c
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		c, ok := r.memo[key]
		r.mu.RUnlock()
		if ok {
			return c, nil
		}
		c = r.resolve(from, to)
		r.mu.Lock()
		r.memo[key] = c
		r.mu.Unlock()
		return c, nil
	})
	c, _ = v.(Converter)
	return c
}

func (r *Registry) resolve(from, to string) Converter {
	if from == to {
		return PassThrough(from)
	}

	r.mu.RLock()
	direct := r.directLocked(from, to)
	r.mu.RUnlock()
	if direct != nil {
		return direct
	}

	candidates := r.Paths(from, to)
	if len(candidates) == 0 {
		r.logger.Debug("no conversion path", slog.String("from", from), slog.String("to", to))
		return nil
	}
	chain := NewChain(candidates[0].Stages...)
	r.logger.Debug("conversion chain synthesized",
		slog.String("from", from), slog.String("to", to),
		slog.String("chain", chain.String()), slog.Int("candidates", len(candidates)))
	return chain
}

// ScoredPath is a candidate conversion path.
type ScoredPath struct {
	Stages []Converter
	Score  float64
}

// Paths enumerates every simple path from one type to another over the
// direct edges, sorted by ascending score. Ties keep discovery order.
func (r *Registry) Paths(from, to string) []ScoredPath {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ScoredPath
	visited := map[string]bool{from: true}
	var stack []Converter
	var walk func(node string)
	walk = func(node string) {
		for _, e := range r.adj[node] {
			if visited[e.to] {
				continue
			}
			if e.to == to {
				stages := append(append([]Converter(nil), stack...), e.conv)
				out = append(out, ScoredPath{Stages: stages, Score: scorePath(stages)})
				continue
			}
			visited[e.to] = true
			stack = append(stack, e.conv)
			walk(e.to)
			stack = stack[:len(stack)-1]
			visited[e.to] = false
		}
	}
	walk(from)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}

func scorePath(stages []Converter) float64 {
	var total float64
	for _, s := range stages {
		total += Score(s)
	}
	return total
}

// Score is the cost of one edge: chains are scored over their stages and a
// nil (unreachable) edge costs ScoreUnreachable.
func Score(c Converter) float64 {
	switch v := c.(type) {
	case nil:
		return ScoreUnreachable
	case *Chain:
		return scorePath(v.stages)
	default:
		if c.Lossless() {
			return ScoreLossless
		}
		return ScoreLossy
	}
}

// Edges lists the direct converter edges in discovery order.
func (r *Registry) Edges() []models.ConverterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ConverterInfo
	for _, from := range r.nodes {
		for _, e := range r.adj[from] {
			out = append(out, models.ConverterInfo{
				From:     from,
				To:       e.to,
				Lossless: e.conv.Lossless(),
				Name:     Name(e.conv),
			})
		}
	}
	return out
}

// Describe converts scored paths to their transport form.
func Describe(paths []ScoredPath) []models.PathInfo {
	out := make([]models.PathInfo, 0, len(paths))
	for _, p := range paths {
		names := make([]string, len(p.Stages))
		for i, s := range p.Stages {
			names[i] = Name(s)
		}
		out = append(out, models.PathInfo{Stages: names, Score: p.Score})
	}
	return out
}
