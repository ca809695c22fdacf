package segment

import (
	"math/rand"
	"testing"
	"time"
)

func testWindows() []Window {
	return []Window{
		{ID: "W1", Start: 600, End: 705},
		{ID: "W2", Start: 705, End: 870},
		{ID: "W3", Start: 870, End: 960},
		{ID: "W4", Start: 960, End: 1050},
		{ID: "W5", Start: 1050, End: 1155},
	}
}

func lisbon(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Lisbon")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestPickSingleWeightedSegment(t *testing.T) {
	loc := lisbon(t)
	weights := map[string][]int{}
	for _, k := range Keys() {
		weights[k] = []int{1, 1, 0, 1, 1}
	}
	weights[Automotive] = []int{0, 0, 3, 0, 0}
	p := Picker{Location: loc, Windows: testWindows(), Weights: weights}

	at := time.Date(2025, 3, 10, 15, 0, 0, 0, loc)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		got, ok := p.Pick(at, rng.Intn)
		if !ok || got != Automotive {
			t.Fatalf("draw %d: got %q ok=%v", i, got, ok)
		}
	}
}

func TestPickOutsideWindows(t *testing.T) {
	loc := lisbon(t)
	weights := map[string][]int{Construction: {3, 3, 3, 3, 3}}
	p := Picker{Location: loc, Windows: testWindows(), Weights: weights}
	for _, at := range []time.Time{
		time.Date(2025, 3, 10, 9, 59, 0, 0, loc),
		time.Date(2025, 3, 10, 19, 15, 0, 0, loc),
		time.Date(2025, 3, 10, 23, 0, 0, 0, loc),
	} {
		if got, ok := p.Pick(at, rand.New(rand.NewSource(1)).Intn); ok {
			t.Fatalf("expected no segment at %s, got %s", at.Format("15:04"), got)
		}
	}
}

func TestPickEmptyPool(t *testing.T) {
	loc := lisbon(t)
	weights := map[string][]int{Restaurants: {3, 0, 3, 1, 0}}
	p := Picker{Location: loc, Windows: testWindows(), Weights: weights}
	if _, ok := p.Pick(time.Date(2025, 3, 10, 12, 0, 0, 0, loc), rand.Intn); ok {
		t.Fatalf("expected no segment for an all-zero window")
	}
}

func TestPickIsReproducible(t *testing.T) {
	loc := lisbon(t)
	weights := map[string][]int{}
	for i, k := range Keys() {
		weights[k] = []int{i % 4, (i + 1) % 4, (i + 2) % 4, (i + 3) % 4, 1}
	}
	p := Picker{Location: loc, Windows: testWindows(), Weights: weights}
	at := time.Date(2025, 6, 2, 10, 30, 0, 0, loc)
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		x, okX := p.Pick(at, a.Intn)
		y, okY := p.Pick(at, b.Intn)
		if x != y || okX != okY {
			t.Fatalf("draw %d diverged: %s vs %s", i, x, y)
		}
	}
}

func TestWindowBoundariesUseBusinessTimezone(t *testing.T) {
	loc := lisbon(t)
	p := Picker{Location: loc, Windows: testWindows()}
	// 10:45 UTC in July is 11:45 in Lisbon (WEST), the first minute of W2.
	w, ok := p.WindowAt(time.Date(2025, 7, 1, 10, 45, 0, 0, time.UTC))
	if !ok || w.ID != "W2" {
		t.Fatalf("expected W2, got %+v ok=%v", w, ok)
	}
	w, ok = p.WindowAt(time.Date(2025, 7, 1, 10, 44, 0, 0, time.UTC))
	if !ok || w.ID != "W1" {
		t.Fatalf("expected W1, got %+v ok=%v", w, ok)
	}
}

func TestPoolOrderFollowsCatalog(t *testing.T) {
	p := Picker{Location: time.UTC, Windows: testWindows(), Weights: map[string][]int{
		Professional: {1, 0, 0, 0, 0},
		Construction: {2, 0, 0, 0, 0},
	}}
	pool := p.Pool(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	want := []string{Construction, Construction, Professional}
	if len(pool) != len(want) {
		t.Fatalf("pool %v", pool)
	}
	for i := range want {
		if pool[i] != want[i] {
			t.Fatalf("pool[%d]=%s want %s", i, pool[i], want[i])
		}
	}
}

func TestParseClock(t *testing.T) {
	if m, err := ParseClock("17:30"); err != nil || m != 1050 {
		t.Fatalf("17:30 -> %d %v", m, err)
	}
	for _, bad := range []string{"", "7", "25:00", "10:60", "aa:bb"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLookupShortForm(t *testing.T) {
	m, ok := Lookup("D")
	if !ok || m.Key != Automotive {
		t.Fatalf("lookup D: %+v %v", m, ok)
	}
	if Valid("Z_UNKNOWN") {
		t.Fatalf("unknown key reported valid")
	}
	if len(Keys()) != 10 {
		t.Fatalf("expected 10 segments")
	}
}
