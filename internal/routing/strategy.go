package routing

import (
	"math/rand/v2"
	"strings"

	"github.com/juju/clock"

	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/errs"
)

// Strategy picks one replica index out of n. n is always positive.
type Strategy interface {
	Name() string
	Pick(n int) int
}

// StrategyKind names a configurable strategy.
type StrategyKind string

const (
	// KindRegion prefers the replica in the caller's region and falls back
	// to round-robin when there is none.
	KindRegion StrategyKind = "region"
	// KindRoundRobin rotates replicas once per wall-clock second.
	KindRoundRobin StrategyKind = "round-robin"
	// KindRandom picks uniformly.
	KindRandom StrategyKind = "random"
	// KindFirst always uses the first configured replica.
	KindFirst StrategyKind = "first"
)

// ParseStrategy maps a configuration value to a StrategyKind. Empty means region.
func ParseStrategy(name string) (StrategyKind, error) {
	switch StrategyKind(strings.ToLower(strings.TrimSpace(name))) {
	case "", KindRegion:
		return KindRegion, nil
	case KindRoundRobin, "roundrobin", "round_robin":
		return KindRoundRobin, nil
	case KindRandom:
		return KindRandom, nil
	case KindFirst, "first-available", "first_available":
		return KindFirst, nil
	default:
		return "", errs.Newf(errs.ErrKindConfigInvalid, "unknown selection strategy %q", name)
	}
}

// Select applies s to replicas. It returns nil and -1 for an empty set and
// clamps out-of-range picks to the first replica.
func Select(s Strategy, replicas []database.Backend) (database.Backend, int) {
	n := len(replicas)
	if n == 0 {
		return nil, -1
	}
	i := s.Pick(n)
	if i < 0 || i >= n {
		i = 0
	}
	return replicas[i], i
}

type randomStrategy struct{}

// Random picks a uniformly random replica.
func Random() Strategy { return randomStrategy{} }

func (randomStrategy) Name() string { return string(KindRandom) }

func (randomStrategy) Pick(n int) int { return rand.IntN(n) }

type roundRobin struct {
	clock clock.Clock
}

// RoundRobin rotates by wall-clock second: calls within the same second
// return the same index. There is no counter to share.
func RoundRobin(clk clock.Clock) Strategy {
	if clk == nil {
		clk = clock.WallClock
	}
	return roundRobin{clock: clk}
}

func (roundRobin) Name() string { return string(KindRoundRobin) }

func (s roundRobin) Pick(n int) int {
	sec := s.clock.Now().Unix()
	if sec < 0 {
		sec = -sec
	}
	return int(sec % int64(n))
}

type firstAvailable struct{}

// FirstAvailable always picks the first replica.
func FirstAvailable() Strategy { return firstAvailable{} }

func (firstAvailable) Name() string { return string(KindFirst) }

func (firstAvailable) Pick(int) int { return 0 }

type regionBased struct {
	preferred int
}

// RegionBased picks the replica at preferred, or the first one when
// preferred is out of range.
func RegionBased(preferred int) Strategy {
	return regionBased{preferred: preferred}
}

func (regionBased) Name() string { return string(KindRegion) }

func (s regionBased) Pick(n int) int {
	if s.preferred < 0 || s.preferred >= n {
		return 0
	}
	return s.preferred
}
