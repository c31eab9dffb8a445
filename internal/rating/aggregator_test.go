package rating

import (
	"math"
	"testing"
)

func TestFoldComputesRunningMean(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		ratings []int
	}{
		{"single rating", []int{4}},
		{"two ratings", []int{5, 3}},
		{"mixed sequence", []int{5, 4, 4, 2, 1, 5, 3}},
		{"all identical", []int{3, 3, 3, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := Aggregate{}
			sum := 0
			for _, r := range tc.ratings {
				agg = Fold(agg, r)
				sum += r
			}

			if agg.Total != len(tc.ratings) {
				t.Fatalf("Total = %d, want %d", agg.Total, len(tc.ratings))
			}
			want := float64(sum) / float64(len(tc.ratings))
			if math.Abs(agg.Average-want) > 1e-9 {
				t.Fatalf("Average = %v, want %v", agg.Average, want)
			}
		})
	}
}

func TestFoldFromExistingAggregate(t *testing.T) {
	t.Parallel()

	agg := Fold(Aggregate{Average: 4.0, Total: 3}, 2)
	if agg.Total != 4 {
		t.Fatalf("Total = %d, want 4", agg.Total)
	}
	if math.Abs(agg.Average-3.5) > 1e-9 {
		t.Fatalf("Average = %v, want 3.5", agg.Average)
	}
}

func TestInRange(t *testing.T) {
	t.Parallel()

	for _, value := range []int{1, 2, 3, 4, 5} {
		if !InRange(value) {
			t.Fatalf("expected %d to be in range", value)
		}
	}
	for _, value := range []int{0, -1, 6, 100} {
		if InRange(value) {
			t.Fatalf("expected %d to be out of range", value)
		}
	}
}
