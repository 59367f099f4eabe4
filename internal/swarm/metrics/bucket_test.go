package metrics

import (
	"testing"
)

func TestTimeBucketStore_CreateBucket(t *testing.T) {
	store := NewTimeBucketStore(10)

	store.RecordRequest(true)
	store.RecordRequest(true)
	store.RecordRequest(false)
	store.RecordRequest(true)

	b := store.CreateBucket(BucketTotals{Requests: 4, Successes: 3, Failures: 1, Bytes: 40}, LatencyPercentiles{}, 2, PhaseSteady)

	if b.IntervalRequests != 4 {
		t.Errorf("IntervalRequests = %d, want 4", b.IntervalRequests)
	}
	if b.IntervalFailures != 1 {
		t.Errorf("IntervalFailures = %d, want 1", b.IntervalFailures)
	}
	if b.IntervalErrorRate != 0.25 {
		t.Errorf("IntervalErrorRate = %v, want 0.25", b.IntervalErrorRate)
	}
	if b.ActiveVUs != 2 || b.Phase != PhaseSteady {
		t.Errorf("unexpected bucket %+v", b)
	}

	// accumulators reset between buckets
	next := store.CreateBucket(BucketTotals{Requests: 4}, LatencyPercentiles{}, 2, PhaseSteady)
	if next.IntervalRequests != 0 || next.IntervalErrorRate != 0 {
		t.Errorf("second bucket should be empty, got %+v", next)
	}
}

func TestTimeBucketStore_RingBuffer(t *testing.T) {
	store := NewTimeBucketStore(3)

	for i := 1; i <= 5; i++ {
		store.CreateBucket(BucketTotals{Requests: int64(i)}, LatencyPercentiles{}, 0, PhaseSteady)
	}

	if store.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", store.Count())
	}

	buckets := store.GetBuckets()
	for i, want := range []int64{3, 4, 5} {
		if buckets[i].TotalRequests != want {
			t.Errorf("buckets[%d].TotalRequests = %d, want %d", i, buckets[i].TotalRequests, want)
		}
	}
	if latest := store.GetLatestBucket(); latest.TotalRequests != 5 {
		t.Errorf("GetLatestBucket().TotalRequests = %d, want 5", latest.TotalRequests)
	}
}

func TestTimeBucketStore_Empty(t *testing.T) {
	store := NewTimeBucketStore(0)

	if store.GetBuckets() != nil {
		t.Error("GetBuckets() on empty store should be nil")
	}
	if store.GetLatestBucket() != nil {
		t.Error("GetLatestBucket() on empty store should be nil")
	}
	if rps, n := store.CalculateSteadyStateRPS(); rps != 0 || n != 0 {
		t.Errorf("CalculateSteadyStateRPS() = %v, %d", rps, n)
	}
}

func TestTimeBucketStore_SteadyStateRPSIgnoresRamp(t *testing.T) {
	store := NewTimeBucketStore(10)

	store.buckets[0] = &TimeBucket{Phase: PhaseRampUp, IntervalRPS: 1}
	store.buckets[1] = &TimeBucket{Phase: PhaseSteady, IntervalRPS: 10}
	store.buckets[2] = &TimeBucket{Phase: PhaseSteady, IntervalRPS: 20}
	store.buckets[3] = &TimeBucket{Phase: PhaseRampDown, IntervalRPS: 2}
	store.head, store.count = 4, 4

	rps, n := store.CalculateSteadyStateRPS()
	if n != 2 {
		t.Errorf("steady buckets = %d, want 2", n)
	}
	if rps != 15 {
		t.Errorf("steady RPS = %v, want 15", rps)
	}
}

func TestTimeBucketStore_Reset(t *testing.T) {
	store := NewTimeBucketStore(5)
	store.RecordRequest(false)
	store.CreateBucket(BucketTotals{}, LatencyPercentiles{}, 0, PhaseInit)
	store.RecordRequest(true)

	store.Reset()

	if store.Count() != 0 {
		t.Errorf("Count() after Reset = %d", store.Count())
	}
	b := store.CreateBucket(BucketTotals{}, LatencyPercentiles{}, 0, PhaseInit)
	if b.IntervalRequests != 0 {
		t.Errorf("interval accumulator survived Reset: %d", b.IntervalRequests)
	}
}
