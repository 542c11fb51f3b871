package cluster

import (
	"errors"
	"testing"

	"analog-engine/internal/signal"
)

func TestFarthestPointSeedsFirstIsMaxNorm(t *testing.T) {
	points := [][]float64{
		{1, 0},
		{5, 5}, // largest norm
		{0, 1},
		{2, 2},
	}
	seeds, err := FarthestPointSeeds(points, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeds[0] != 1 {
		t.Errorf("first seed = %d, want 1 (max norm)", seeds[0])
	}
}

func TestFarthestPointSeedsMaxNormTieBreak(t *testing.T) {
	points := [][]float64{
		{0, 3}, // same norm as index 1
		{3, 0},
		{1, 1},
	}
	seeds, err := FarthestPointSeeds(points, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeds[0] != 0 {
		t.Errorf("tie should break to first occurrence, got %d", seeds[0])
	}
}

func TestFarthestPointSeedsUniqueCount(t *testing.T) {
	points := [][]float64{
		{1, 0},
		{0, 1},
		{1, 0}, // duplicate of index 0
		{1, 1},
	}
	// 3 distinct values, k=5 must clamp to 3
	seeds, err := FarthestPointSeeds(points, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seeds) != 3 {
		t.Fatalf("got %d seeds, want 3", len(seeds))
	}
	seen := map[int]bool{}
	for _, s := range seeds {
		if seen[s] {
			t.Errorf("duplicate seed index %d", s)
		}
		seen[s] = true
	}
}

func TestFarthestPointSeedsDeterminism(t *testing.T) {
	points := [][]float64{
		{1, 2, 3}, {4, 5, 6}, {-1, 0, 2}, {3, 3, 3}, {0.5, 2, 1},
	}
	a, err := FarthestPointSeeds(points, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := FarthestPointSeeds(points, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("seed %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestFarthestPointSeedsInvalidInput(t *testing.T) {
	if _, err := FarthestPointSeeds(nil, 3); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("empty points: got %v, want ErrInvalidInput", err)
	}
	if _, err := FarthestPointSeeds([][]float64{{1, 2}}, 0); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("k=0: got %v, want ErrInvalidInput", err)
	}
	if _, err := FarthestPointSeeds([][]float64{{1, 2}}, -1); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("k=-1: got %v, want ErrInvalidInput", err)
	}
}
