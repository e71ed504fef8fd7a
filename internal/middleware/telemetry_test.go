package middleware

import "testing"

func TestQuantileNearestRank(t *testing.T) {
	sorted := []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if got := quantile(sorted, 0.5); got != 50 {
		t.Fatalf("expected p50 50, got %d", got)
	}
	if got := quantile(sorted, 0.95); got != 100 {
		t.Fatalf("expected p95 100, got %d", got)
	}
	if got := quantile(nil, 0.5); got != 0 {
		t.Fatalf("expected 0 for empty input, got %d", got)
	}
}

func TestLatencyWindowIsBounded(t *testing.T) {
	l := &routeLatencies{byRoute: make(map[string][]int64)}
	for i := 0; i < latencyWindowSize+50; i++ {
		l.record("GET /api/pos/orders", int64(i))
	}
	if n := len(l.byRoute["GET /api/pos/orders"]); n != latencyWindowSize {
		t.Fatalf("expected window of %d samples, got %d", latencyWindowSize, n)
	}

	p50, p95 := l.record("GET /api/pos/orders", 1000)
	if p50 <= 0 || p95 < p50 {
		t.Fatalf("implausible percentiles p50=%d p95=%d", p50, p95)
	}
}
