package advisor

import "testing"

func TestAnalyzeRecommendsMissingIndex(t *testing.T) {
	a := New()

	for i := 0; i < 5; i++ {
		a.Observe("SELECT id FROM orders WHERE customer_id = 42")
	}

	recs := a.Analyze()

	found := false

	for _, r := range recs {
		if r.Kind == Missing && r.Table == "orders" && len(r.Columns) == 1 && r.Columns[0] == "customer_id" {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected a missing index recommendation on orders.customer_id, got %+v", recs)
	}
}

func TestAnalyzeSkipsColumnsAlreadyIndexed(t *testing.T) {
	a := New()
	a.SetExistingIndexes([]ExistingIndex{{Table: "orders", Columns: []string{"customer_id"}}})
	a.Observe("SELECT id FROM orders WHERE customer_id = 42")

	recs := a.Analyze()

	for _, r := range recs {
		if r.Kind == Missing && r.Table == "orders" {
			t.Fatalf("expected no missing-index recommendation once an index exists, got %+v", r)
		}
	}
}

func TestAnalyzeRecommendsCompositeIndexForMultipleFilters(t *testing.T) {
	a := New()
	a.Observe("SELECT id FROM orders WHERE customer_id = 1 AND status = 'open'")

	recs := a.Analyze()

	found := false

	for _, r := range recs {
		if r.Kind == Composite && r.Table == "orders" {
			found = true

			if len(r.Columns) < 2 {
				t.Fatalf("expected a composite recommendation covering multiple columns, got %v", r.Columns)
			}
		}
	}

	if !found {
		t.Fatalf("expected a composite index recommendation, got %+v", recs)
	}
}

func TestAnalyzeFlagsRedundantIndex(t *testing.T) {
	a := New()
	a.SetExistingIndexes([]ExistingIndex{
		{Table: "orders", Columns: []string{"customer_id"}},
		{Table: "orders", Columns: []string{"customer_id", "status"}},
	})

	recs := a.Analyze()

	found := false

	for _, r := range recs {
		if r.Kind == Redundant {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected the single-column index to be flagged as a redundant prefix, got %+v", recs)
	}
}

func TestAnalyzeFlagsUnusedIndex(t *testing.T) {
	a := New()
	a.SetExistingIndexes([]ExistingIndex{{Table: "orders", Columns: []string{"legacy_col"}}})
	a.Observe("SELECT id FROM orders WHERE customer_id = 1")

	recs := a.Analyze()

	found := false

	for _, r := range recs {
		if r.Kind == Unused && r.Table == "orders" {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected legacy_col index to be flagged unused, got %+v", recs)
	}
}

func TestAnalyzeRecommendsCoveringIndexForNarrowSelect(t *testing.T) {
	a := New()
	a.Observe("SELECT id, status FROM orders WHERE customer_id = 1")

	recs := a.Analyze()

	found := false

	for _, r := range recs {
		if r.Kind == Covering && r.Table == "orders" {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected a covering index recommendation for a narrow select list, got %+v", recs)
	}
}

func TestScoreFromCountClampsAtOne(t *testing.T) {
	if s := scoreFromCount(20); s != 1 {
		t.Fatalf("expected a score of 1 for a high occurrence count, got %v", s)
	}

	if s := scoreFromCount(5); s != 0.5 {
		t.Fatalf("expected a score of 0.5 for a count of 5, got %v", s)
	}
}

func TestIsPrefix(t *testing.T) {
	if !isPrefix([]string{"a"}, []string{"a", "b"}) {
		t.Fatal("expected [a] to be a prefix of [a b]")
	}

	if isPrefix([]string{"a", "c"}, []string{"a", "b"}) {
		t.Fatal("expected [a c] not to be a prefix of [a b]")
	}

	if isPrefix([]string{"a", "b", "c"}, []string{"a", "b"}) {
		t.Fatal("expected a longer slice never to be a prefix of a shorter one")
	}
}
