package declaration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yearOf(t *testing.T, step0 map[string]any) int {
	t.Helper()
	y := Year(step0)
	require.NotNil(t, y)
	return *y
}

func TestYearFallbackChain(t *testing.T) {
	t.Parallel()

	// Direct camelCase field wins over everything else.
	assert.Equal(t, 2023, yearOf(t, map[string]any{
		"declarationYear": "2023",
		"changesYear":     "2021",
	}))

	// snake_case variant.
	assert.Equal(t, 2022, yearOf(t, map[string]any{"declaration_year": float64(2022)}))

	// Correction filings carry changesYear.
	assert.Equal(t, 2021, yearOf(t, map[string]any{"changesYear": "2021"}))

	// Type-suffixed field, keyed by declarationType.
	assert.Equal(t, 2019, yearOf(t, map[string]any{
		"declarationType":  "3",
		"declarationYear3": "2019",
	}))

	// Period-end date, then period-start date.
	assert.Equal(t, 2024, yearOf(t, map[string]any{"declarationYearTo": "31.12.2024"}))
	assert.Equal(t, 2018, yearOf(t, map[string]any{"declarationYearFrom": "01.01.2018"}))
}

func TestYearUnknownIsNotGuessed(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Year(map[string]any{}))
	assert.Nil(t, Year(map[string]any{"declarationYear": "[Конфіденційна інформація]"}))
	assert.Nil(t, Year(map[string]any{"declarationYearTo": "not-a-date"}))
}

func TestYearTypeSuffixWithNumericType(t *testing.T) {
	t.Parallel()

	// declarationType may arrive as a JSON number.
	assert.Equal(t, 2020, yearOf(t, map[string]any{
		"declarationType":  float64(1),
		"declarationYear1": "2020",
	}))
}
