package manager

import (
	"sort"
	"testing"

	"device-engine/internal/models"
)

func TestDropoutOffsetImmediate(t *testing.T) {
	cfg := models.DropoutConfig{Strategy: "immediate"}
	for k := 0; k < 5; k++ {
		if got := dropoutOffset(cfg, k); got != 0 {
			t.Errorf("dropoutOffset(immediate, %d) = %d, want 0", k, got)
		}
	}
}

func TestDropoutOffsetLinear(t *testing.T) {
	cfg := models.DropoutConfig{Strategy: "linear", DelayMs: 200}
	tests := []struct {
		k    int
		want int64
	}{{0, 0}, {1, 200}, {4, 800}}
	for _, tt := range tests {
		if got := dropoutOffset(cfg, tt.k); got != tt.want {
			t.Errorf("dropoutOffset(linear, %d) = %d, want %d", tt.k, got, tt.want)
		}
	}
}

func TestDropoutOffsetExponentialCapsAtMaxDelay(t *testing.T) {
	cfg := models.DropoutConfig{Strategy: "exponential", DelayMs: 100, ExponentBase: 2, MaxDelayMs: 500}
	tests := []struct {
		k    int
		want int64
	}{{0, 100}, {1, 200}, {2, 400}, {3, 500}, {8, 500}}
	for _, tt := range tests {
		if got := dropoutOffset(cfg, tt.k); got != tt.want {
			t.Errorf("dropoutOffset(exponential, %d) = %d, want %d", tt.k, got, tt.want)
		}
	}
}

func TestDropoutOffsetExponentialFallsBackToDurationWhenNoMaxDelay(t *testing.T) {
	cfg := models.DropoutConfig{Strategy: "exponential", DelayMs: 100, ExponentBase: 3, DurationMs: 250}
	if got := dropoutOffset(cfg, 5); got != 250 {
		t.Errorf("dropoutOffset should cap at DurationMs when MaxDelayMs is unset, got %d, want 250", got)
	}
}

func TestSelectDropoutMembersNonRandomPicksAscendingPrefix(t *testing.T) {
	running := []string{"a", "b", "c", "d", "e"}
	cfg := models.DropoutConfig{Strategy: "linear", DelayMs: 100}

	selected, offsets := selectDropoutMembers(running, cfg, 3, "group-1")

	want := []string{"a", "b", "c"}
	for i := range want {
		if selected[i] != want[i] {
			t.Errorf("selected[%d] = %q, want %q", i, selected[i], want[i])
		}
	}
	for i := range offsets {
		if offsets[i] != int64(i)*100 {
			t.Errorf("offsets[%d] = %d, want %d", i, offsets[i], int64(i)*100)
		}
	}
}

func TestSelectDropoutMembersRandomPicksWithoutReplacement(t *testing.T) {
	running := []string{"a", "b", "c", "d", "e"}
	cfg := models.DropoutConfig{Strategy: "random", DurationMs: 10000}

	selected, offsets := selectDropoutMembers(running, cfg, 3, "group-1")

	if len(selected) != 3 || len(offsets) != 3 {
		t.Fatalf("expected 3 selected members and offsets, got %d/%d", len(selected), len(offsets))
	}

	seen := map[string]bool{}
	for _, id := range selected {
		if seen[id] {
			t.Fatalf("member %q selected more than once: %v", id, selected)
		}
		seen[id] = true
	}

	sortedOffsets := append([]int64{}, offsets...)
	sort.Slice(sortedOffsets, func(i, j int) bool { return sortedOffsets[i] < sortedOffsets[j] })
	for i := range offsets {
		if offsets[i] != sortedOffsets[i] {
			t.Fatal("expected offsets to already be sorted ascending")
		}
	}
}

func TestSelectDropoutMembersRandomReturnsRequestedCountOnEveryCall(t *testing.T) {
	running := []string{"a", "b", "c", "d", "e", "f"}
	cfg := models.DropoutConfig{Strategy: "random", DurationMs: 5000}

	s1, o1 := selectDropoutMembers(running, cfg, 4, "group-x")
	s2, o2 := selectDropoutMembers(running, cfg, 4, "group-x")

	// dropoutSeed mixes in wall-clock time, so back-to-back calls are not
	// guaranteed identical; this only asserts both calls produce a valid
	// selection of the right shape, not that they're equal.
	if len(s1) != 4 || len(s2) != 4 || len(o1) != 4 || len(o2) != 4 {
		t.Fatalf("expected 4 members/offsets from both calls, got %d/%d and %d/%d", len(s1), len(o1), len(s2), len(o2))
	}
}
