package identity

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

var (
	adjectives = []string{"Swift", "Bright", "Calm", "Bold", "Keen", "Wise", "Quick", "Sharp"}
	animals    = []string{"Fox", "Owl", "Bear", "Wolf", "Hawk", "Lion", "Eagle", "Tiger"}
)

const defaultMaxAttempts = 8

// Reserver claims a pseudonym so two trainees are unlikely to share one.
// Reserve reports false when the name is already taken.
type Reserver interface {
	Reserve(ctx context.Context, pseudonym string) (bool, error)
}

// Generator produces "<Adjective> <Animal> <n>" display names, n in 1..999.
// Collision avoidance is best effort: after MaxAttempts taken candidates, or
// when the reserver fails, the last candidate is returned anyway.
type Generator struct {
	log         *logger.Logger
	reserver    Reserver
	maxAttempts int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(log *logger.Logger, reserver Reserver) *Generator {
	return NewSeededGenerator(log, reserver, rand.Uint64(), rand.Uint64())
}

// NewSeededGenerator makes candidate order reproducible.
func NewSeededGenerator(log *logger.Logger, reserver Reserver, seed1, seed2 uint64) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{
		log:         log.With("service", "PseudonymGenerator"),
		reserver:    reserver,
		maxAttempts: defaultMaxAttempts,
		rnd:         rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (g *Generator) Candidate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	adj := adjectives[g.rnd.IntN(len(adjectives))]
	animal := animals[g.rnd.IntN(len(animals))]
	return fmt.Sprintf("%s %s %d", adj, animal, g.rnd.IntN(999)+1)
}

func (g *Generator) Generate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	candidate := g.Candidate()
	if g.reserver == nil {
		return candidate, nil
	}
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		ok, err := g.reserver.Reserve(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			g.log.Warn("pseudonym reservation failed; using unreserved name", "error", err)
			return candidate, nil
		}
		if ok {
			return candidate, nil
		}
		if attempt < g.maxAttempts {
			candidate = g.Candidate()
		}
	}
	g.log.Warn("pseudonym space crowded; using possibly shared name", "attempts", g.maxAttempts)
	return candidate, nil
}
