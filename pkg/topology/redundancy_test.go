package topology

import (
	"reflect"
	"testing"
)

func TestExpandFillsExplicitThenAsterisks(t *testing.T) {
	r, err := ParseRedundancyGroupDistribution("2|*|*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.Expand(6)
	want := []int{2, 2, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expand(6) = %v, want %v", got, want)
	}
}

func TestExpandExactMatch(t *testing.T) {
	r, err := ParseRedundancyGroupDistribution("1|1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.Expand(2)
	want := []int{1, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expand(2) = %v, want %v", got, want)
	}
}

func TestExpandSumsToRedundancy(t *testing.T) {
	specs := []string{"1|1", "2|*|*", "*|*|*", "3|2|*"}
	for _, spec := range specs {
		r, err := ParseRedundancyGroupDistribution(spec)
		if err != nil {
			t.Fatalf("parse %q: %v", spec, err)
		}
		for redundancy := r.Len(); redundancy <= r.Len()+10; redundancy++ {
			got := r.Expand(redundancy)
			sum := 0
			for _, v := range got {
				sum += v
			}
			if sum != redundancy {
				t.Fatalf("spec %q redundancy %d: sum(expand)=%d, want %d (expand=%v)", spec, redundancy, sum, redundancy, got)
			}
			for i := 1; i < len(got); i++ {
				if got[i] > got[i-1] {
					t.Fatalf("spec %q redundancy %d: result %v not sorted descending", spec, redundancy, got)
				}
			}
		}
	}
}

func TestParseRedundancyGroupDistributionRejectsGarbage(t *testing.T) {
	if _, err := ParseRedundancyGroupDistribution("1|x|*"); err == nil {
		t.Fatal("expected error for non-numeric, non-asterisk slot")
	}
}
