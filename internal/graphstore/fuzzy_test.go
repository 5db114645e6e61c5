package graphstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuzzyEqualUnifiesCreationAndCompletionPhrasing(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"goal creation vs arrival", "go to the hydro-plant", "we arrived at the hydro-plant"},
		{"task creation vs done phrasing", "deploy the service", "service is deployed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, FuzzyEqual(Normalize(tc.a), Normalize(tc.b)))
		})
	}
}

func TestFuzzyEqualRejectsUnrelatedDescriptions(t *testing.T) {
	require.False(t, FuzzyEqual(Normalize("go to the hydro-plant"), Normalize("go to the coal mine")))
}
