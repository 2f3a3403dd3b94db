package declaration

import (
	"fmt"
	"strings"
)

// Year resolves the declaration year from step_0 through an ordered
// fallback chain. The order is a tested contract:
//
//  1. declarationYear (camelCase)
//  2. declaration_year (snake_case)
//  3. changesYear (correction filings)
//  4. declarationYear<N> where N is the declaration type
//  5. year component of declarationYearTo ("31.12.2024")
//  6. year component of declarationYearFrom
//
// If nothing resolves the year is unknown, never guessed.
func Year(step0 map[string]any) *int {
	if y := Int(step0, "declarationYear", "declaration_year", "changesYear"); y != nil {
		return y
	}

	if declType := String(step0, "declarationType", "declaration_type"); declType != nil {
		if y := Int(step0, fmt.Sprintf("declarationYear%s", *declType)); y != nil {
			return y
		}
	}

	for _, key := range []string{"declarationYearTo", "declarationYearFrom"} {
		if y := yearOfDate(step0, key); y != nil {
			return y
		}
	}
	return nil
}

// yearOfDate pulls the trailing year out of a "dd.MM.yyyy" string.
func yearOfDate(m map[string]any, key string) *int {
	s, ok := m[key].(string)
	if !ok || !strings.Contains(s, ".") {
		return nil
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return nil
	}
	return Int(map[string]any{"y": parts[2]}, "y")
}
