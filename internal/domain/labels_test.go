package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalKeyFoldsAccentsAndMojibake(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Crítico", "critico"},
		{"Cr\u00c3\u00adtico", "critico"},
		{"  En Progreso ", "en_progreso"},
		{"Revisión", "revision"},
		{"in-progress", "in_progress"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanonicalKey(tc.in), tc.in)
	}
}

func TestParseStatusAcceptsBothLanguages(t *testing.T) {
	for _, label := range []string{"completed", "Completado", "DONE"} {
		got, err := ParseStatus(label)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got)
	}
	_, err := ParseStatus("finished-ish")
	assert.Error(t, err)
}

func TestParsePriorityEmptyIsUnspecified(t *testing.T) {
	got, err := ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityUnspecified, got)

	got, err = ParsePriority("Alta")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, got)
}

func TestParseRiskLevelRepairsMisencodedLiteral(t *testing.T) {
	got, err := ParseRiskLevel("Cr\u00c3\u00adtico")
	require.NoError(t, err)
	assert.Equal(t, RiskCritical, got)
	assert.Equal(t, "Crítico", got.Label())
	assert.Equal(t, 3, got.Rank())
}
