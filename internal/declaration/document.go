// Package declaration models the raw registry declaration document and
// the tolerant extraction rules for its nested, inconsistently-keyed
// sections.
package declaration

import (
	"encoding/json"
	"fmt"
)

// Step numbers of the sections a declaration document may carry.
// step_12 (unfinished construction) and steps 14-16 are present in some
// registry schema revisions but carry no normalized table here; their
// content survives in the declaration's verbatim raw_data.
const (
	StepIntro           = 0
	StepDeclarant       = 1
	StepFamily          = 2
	StepRealEstate      = 3
	StepValuables       = 4
	StepMemberships     = 5
	StepVehicles        = 6
	StepSecurities      = 7
	StepCorporateRights = 8
	StepIntangibles     = 9
	StepExpenses        = 10
	StepIncome          = 11
	StepLiabilities     = 13
	StepBankAccounts    = 17
)

// Document is one parsed declaration as returned by the detail endpoint.
type Document struct {
	root map[string]any
}

// ErrNotObject signals that the detail endpoint returned something other
// than a JSON object, an upstream contract violation rather than a
// retryable condition.
var ErrNotObject = fmt.Errorf("declaration document is not a JSON object")

// Parse decodes a raw detail response. Non-object documents are
// rejected outright.
func Parse(raw []byte) (*Document, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode declaration: %w", err)
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return &Document{root: obj}, nil
}

// data returns the step container payload, i.e. data.step_N.data.
func (d *Document) data(step int) any {
	section, ok := d.root["data"].(map[string]any)
	if !ok {
		return nil
	}
	wrapper, ok := section[fmt.Sprintf("step_%d", step)].(map[string]any)
	if !ok {
		return nil
	}
	return wrapper["data"]
}

// ObjectStep returns a step whose payload is a single object (step_0,
// step_1). A missing or differently-shaped step yields an empty map so
// callers can read fields without nil checks.
func (d *Document) ObjectStep(step int) map[string]any {
	if obj, ok := d.data(step).(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

// ArrayStep returns a step whose payload is a list of items. Non-object
// entries are dropped.
func (d *Document) ArrayStep(step int) []map[string]any {
	raw, ok := d.data(step).([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if item, ok := entry.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}
