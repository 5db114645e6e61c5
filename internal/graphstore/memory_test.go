package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertStateCreatesThenTransitions(t *testing.T) {
	ctx := context.Background()
	g := NewMemory()

	created, err := g.UpsertState(ctx, State{
		Namespace: "s1", StateType: StateGoal, Description: "go to the Hydro-Plant", Status: StatusActive,
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, created.Status)
	require.Zero(t, created.VisitCount)

	completed, err := g.UpsertState(ctx, State{
		Namespace: "s1", StateType: StateGoal, Description: "we arrived at the hydro-plant", Status: StatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, created.StateID, completed.StateID, "fuzzy match should have resolved to the same state")
	require.Equal(t, StatusCompleted, completed.Status)
	require.Zero(t, completed.VisitCount, "expected transition to completed to reset visit count")

	active, err := g.QueryStates(ctx, StateFilter{Namespace: "s1", StateType: StateGoal, Status: StatusActive})
	require.NoError(t, err)
	require.Empty(t, active, "expected no active goals after completion")
}

func TestVisitCountMonotonicUntilTransition(t *testing.T) {
	ctx := context.Background()
	g := NewMemory()

	s, err := g.UpsertState(ctx, State{Namespace: "s1", StateType: StateTask, Description: "deploy the service", Status: StatusActive})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, g.IncrementVisit(ctx, s.StateID))
	}
	got, err := g.QueryStates(ctx, StateFilter{Namespace: "s1", StateType: StateTask, Status: StatusActive})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 5, got[0].VisitCount)

	_, err = g.UpsertState(ctx, State{Namespace: "s1", StateType: StateTask, Description: "the service is deployed", Status: StatusCompleted})
	require.NoError(t, err)
	done, err := g.QueryStates(ctx, StateFilter{Namespace: "s1", StateType: StateTask, Status: StatusCompleted})
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.Zero(t, done[0].VisitCount, "expected visit_count reset to 0 on transition")
}
