package declaration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalNormalizesCommaSeparator(t *testing.T) {
	t.Parallel()

	got := Decimal(map[string]any{"totalArea": "29,3"}, "totalArea")
	require.NotNil(t, got)
	assert.InDelta(t, 29.3, *got, 1e-9)
}

func TestDecimalHandlesGroupingSpaces(t *testing.T) {
	t.Parallel()

	got := Decimal(map[string]any{"cost": "1 250 000,50"}, "cost")
	require.NotNil(t, got)
	assert.InDelta(t, 1250000.50, *got, 1e-9)
}

func TestDecimalConfidentialIsUnknownNotZero(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Decimal(map[string]any{"cost": "[Конфіденційна інформація]"}, "cost"))
	assert.Nil(t, Decimal(map[string]any{"cost": ""}, "cost"))
	assert.Nil(t, Decimal(map[string]any{}, "cost"))

	zero := Decimal(map[string]any{"cost": "0"}, "cost")
	require.NotNil(t, zero)
	assert.Zero(t, *zero)
}

func TestStringSkipsMaskedValues(t *testing.T) {
	t.Parallel()

	assert.Nil(t, String(map[string]any{"lastname": "[Конфіденційна інформація]"}, "lastname"))
	assert.Nil(t, String(map[string]any{"lastname": "[Не застосовується]"}, "lastname"))
	assert.Nil(t, String(map[string]any{"lastname": "  "}, "lastname"))

	got := String(map[string]any{"lastname": " Шевченко "}, "lastname")
	require.NotNil(t, got)
	assert.Equal(t, "Шевченко", *got)
}

func TestStringCandidateOrderIsPriority(t *testing.T) {
	t.Parallel()

	m := map[string]any{"street": "fallback", "ua_street": "primary"}
	got := String(m, "ua_street", "street")
	require.NotNil(t, got)
	assert.Equal(t, "primary", *got)

	// First candidate masked: falls through to the second.
	m["ua_street"] = "[Конфіденційна інформація]"
	got = String(m, "ua_street", "street")
	require.NotNil(t, got)
	assert.Equal(t, "fallback", *got)
}

func TestDateNormalizesToISO(t *testing.T) {
	t.Parallel()

	got := Date(map[string]any{"owningDate": "28.07.2016"}, "owningDate")
	require.NotNil(t, got)
	assert.Equal(t, "2016-07-28", *got)

	got = Date(map[string]any{"owningDate": "1.2.2020"}, "owningDate")
	require.NotNil(t, got)
	assert.Equal(t, "2020-02-01", *got)

	// Any bracketed placeholder is masked.
	assert.Nil(t, Date(map[string]any{"owningDate": "[Член сім'ї не надав інформацію]"}, "owningDate"))
}

func TestDatePassesThroughISOInput(t *testing.T) {
	t.Parallel()

	got := Date(map[string]any{"introDate": "2021-03-31"}, "introDate")
	require.NotNil(t, got)
	assert.Equal(t, "2021-03-31", *got)
}

func TestIntParsesNumbersAndStrings(t *testing.T) {
	t.Parallel()

	got := Int(map[string]any{"citizenship": float64(1)}, "citizenship")
	require.NotNil(t, got)
	assert.Equal(t, 1, *got)

	got = Int(map[string]any{"graduationYear": "2012"}, "graduationYear")
	require.NotNil(t, got)
	assert.Equal(t, 2012, *got)

	assert.Nil(t, Int(map[string]any{"graduationYear": "невідомо"}, "graduationYear"))
}

func TestFlags(t *testing.T) {
	t.Parallel()

	m := map[string]any{"responsiblePosition": "Так", "changedName": "1", "public_person": "Ні"}
	assert.True(t, Flag(m, "responsiblePosition"))
	assert.False(t, Flag(m, "public_person"))
	assert.True(t, BitFlag(m, "changedName"))
	assert.False(t, BitFlag(m, "missing"))
}
