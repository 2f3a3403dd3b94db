package registry

import "encoding/json"

// envelopeKeys is the documented priority order among the envelope
// shapes the listing endpoint is known to return.
var envelopeKeys = []string{"items", "results", "data"}

// ExtractIDs pulls record ids out of a listing response. The response
// may be an object wrapping the record array under items, results, or
// data (first present wins), or a bare array. Entries without a string
// id are skipped.
func ExtractIDs(raw json.RawMessage) []string {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil
	}

	var entries []any
	switch body := root.(type) {
	case map[string]any:
		for _, key := range envelopeKeys {
			if arr, ok := body[key].([]any); ok {
				entries = arr
				break
			}
		}
	case []any:
		entries = body
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := item["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
