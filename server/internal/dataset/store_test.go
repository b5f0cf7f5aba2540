package dataset

import (
	"math"
	"sync"
	"testing"
	"time"
)

func rec(region string, latency, uptime float64) Record {
	return Record{Region: region, LatencyMs: latency, UptimePct: uptime}
}

func TestRecordsForRegion_PreservesOrder(t *testing.T) {
	st := New([]Record{
		rec("us-east", 300, 99.5),
		rec("eu-west", 80, 99.9),
		rec("us-east", 100, 99.9),
		rec("us-east", 200, 98.0),
	}, "test")

	got := st.RecordsForRegion("us-east")
	want := []float64{300, 100, 200}
	if len(got) != len(want) {
		t.Fatalf("RecordsForRegion: got %d records, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.LatencyMs != want[i] {
			t.Errorf("record %d latency: got %v, want %v", i, r.LatencyMs, want[i])
		}
		if r.Region != "us-east" {
			t.Errorf("record %d region: got %q", i, r.Region)
		}
	}
}

func TestRecordsForRegion_Unknown(t *testing.T) {
	st := New([]Record{rec("us-east", 100, 99)}, "test")
	if got := st.RecordsForRegion("ap-south"); len(got) != 0 {
		t.Errorf("unknown region: got %d records, want 0", len(got))
	}
	if st.HasRegion("ap-south") {
		t.Error("HasRegion(ap-south): got true, want false")
	}
	if !st.HasRegion("us-east") {
		t.Error("HasRegion(us-east): got false, want true")
	}
}

func TestRegions_FirstAppearanceOrder(t *testing.T) {
	st := New([]Record{
		rec("b", 1, 1),
		rec("a", 1, 1),
		rec("b", 1, 1),
		rec("c", 1, 1),
	}, "test")

	got := st.Regions()
	want := []RegionSummary{{"b", 2}, {"a", 1}, {"c", 1}}
	if len(got) != len(want) {
		t.Fatalf("Regions: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Regions[%d]: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEmpty(t *testing.T) {
	st := Empty("missing.json")
	if !st.Empty() {
		t.Error("Empty(): got false, want true")
	}
	if st.Len() != 0 {
		t.Errorf("Len: got %d, want 0", st.Len())
	}
	if st.Source() != "missing.json" {
		t.Errorf("Source: got %q", st.Source())
	}
	if n := len(st.Regions()); n != 0 {
		t.Errorf("Regions: got %d, want 0", n)
	}
}

func TestNew_CopiesInput(t *testing.T) {
	in := []Record{rec("us-east", 100, 99)}
	st := New(in, "test")
	in[0].LatencyMs = 999

	if got := st.RecordsForRegion("us-east")[0].LatencyMs; got != 100 {
		t.Errorf("store mutated through caller slice: got %v, want 100", got)
	}
}

func TestLoadedAt(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := newAt(nil, "test", at)
	if !st.LoadedAt().Equal(at) {
		t.Errorf("LoadedAt: got %v, want %v", st.LoadedAt(), at)
	}
}

func TestDistribution(t *testing.T) {
	var recs []Record
	for i := 1; i <= 100; i++ {
		recs = append(recs, rec("us-east", float64(i), 99))
	}
	st := New(recs, "test")

	d, ok := st.Distribution("us-east")
	if !ok {
		t.Fatal("Distribution: expected region to be known")
	}
	if d.Count != 100 {
		t.Errorf("Count: got %d, want 100", d.Count)
	}
	if d.Min != 1 || d.Max != 100 {
		t.Errorf("Min/Max: got %v/%v, want 1/100", d.Min, d.Max)
	}
	// DDSketch guarantees 1% relative error on the value at the quantile's rank.
	checks := []struct {
		name      string
		got, want float64
	}{
		{"p50", d.P50, 50.5},
		{"p90", d.P90, 90.1},
		{"p95", d.P95, 95.05},
		{"p99", d.P99, 99.01},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > c.want*0.03 {
			t.Errorf("%s: got %v, want ≈%v", c.name, c.got, c.want)
		}
	}
	if !(d.P50 <= d.P90 && d.P90 <= d.P95 && d.P95 <= d.P99) {
		t.Errorf("quantiles not monotone: %+v", d)
	}
}

func TestDistribution_SingleValue(t *testing.T) {
	st := New([]Record{rec("solo", 42, 100)}, "test")
	d, ok := st.Distribution("solo")
	if !ok {
		t.Fatal("Distribution: expected region to be known")
	}
	// Clamped to the exact [min, max] range.
	for name, v := range map[string]float64{"p50": d.P50, "p95": d.P95, "p99": d.P99} {
		if v != 42 {
			t.Errorf("%s: got %v, want 42", name, v)
		}
	}
}

func TestDistribution_Unknown(t *testing.T) {
	st := New([]Record{rec("us-east", 1, 1)}, "test")
	if _, ok := st.Distribution("nope"); ok {
		t.Error("Distribution(nope): got ok, want !ok")
	}
}

func TestConcurrentReads(t *testing.T) {
	st := New([]Record{rec("a", 1, 1), rec("b", 2, 2)}, "test")
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			st.RecordsForRegion("a")
		}()
		go func() {
			defer wg.Done()
			st.Regions()
		}()
		go func() {
			defer wg.Done()
			st.Distribution("b")
		}()
	}
	wg.Wait()
}
