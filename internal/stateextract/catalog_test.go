package stateextract

import (
	"testing"

	"vicw/internal/graphstore"
)

func TestExtractGoalAndCompletion(t *testing.T) {
	candidates := Extract("Let's go to the Hydro-Plant. We arrived at the Hydro-Plant.", DefaultCatalog)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(candidates), candidates)
	}
	if candidates[0].StateType != graphstore.StateGoal || candidates[0].Status != graphstore.StatusActive {
		t.Fatalf("unexpected first candidate: %+v", candidates[0])
	}
	if candidates[1].Status != graphstore.StatusCompleted {
		t.Fatalf("unexpected second candidate: %+v", candidates[1])
	}
}

func TestExtractDecision(t *testing.T) {
	candidates := Extract("We decided to use Postgres for storage.", DefaultCatalog)
	if len(candidates) != 1 || candidates[0].StateType != graphstore.StateDecision {
		t.Fatalf("expected a decision candidate, got %+v", candidates)
	}
}

func TestExtractIsPure(t *testing.T) {
	a := Extract("We need to deploy the service.", DefaultCatalog)
	b := Extract("We need to deploy the service.", DefaultCatalog)
	if len(a) != len(b) || a[0].Description != b[0].Description {
		t.Fatal("extraction must be deterministic/pure for identical input")
	}
}
