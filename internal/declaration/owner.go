package declaration

// OwnerType discriminates who owns a declared item.
type OwnerType string

// Owner discriminator values persisted alongside each asset row.
const (
	OwnerDeclarant OwnerType = "declarant"
	OwnerFamily    OwnerType = "family"
)

// declarantSentinel is the literal the registry uses in rights arrays
// to mean "the declarant themself".
const declarantSentinel = "1"

// Owner is the resolved owner of one declared item: either the
// declarant (FamilyID empty) or one family member row.
type Owner struct {
	Type     OwnerType
	FamilyID string
}

// DecodeOwner resolves an item's owner from its rights/person array.
// Entries arrive in two shapes: bare strings, or objects keyed by
// rightBelongs (or person). The sentinel "1" means the declarant; a
// value matching a family member's in-document id means that member.
// An empty or unrecognized array defaults to the declarant. The
// registry contains malformed entries and this default is the
// documented policy, even though it may misattribute family items.
func DecodeOwner(rights []any, familyIDs map[string]string) Owner {
	for _, entry := range rights {
		switch right := entry.(type) {
		case string:
			if right == declarantSentinel {
				return Owner{Type: OwnerDeclarant}
			}
			if id, ok := familyIDs[right]; ok {
				return Owner{Type: OwnerFamily, FamilyID: id}
			}
		case map[string]any:
			belongs, _ := right["rightBelongs"].(string)
			if belongs == "" {
				belongs, _ = right["person"].(string)
			}
			if belongs == declarantSentinel {
				return Owner{Type: OwnerDeclarant}
			}
			if id, ok := familyIDs[belongs]; ok {
				return Owner{Type: OwnerFamily, FamilyID: id}
			}
		}
	}
	return Owner{Type: OwnerDeclarant}
}

// Rights returns an item's rights-style array under the first present
// candidate key. Different sections name it differently (rights,
// persons, person, person_who_care).
func Rights(item map[string]any, keys ...string) []any {
	for _, key := range keys {
		if arr, ok := item[key].([]any); ok && len(arr) > 0 {
			return arr
		}
	}
	return nil
}

// FirstOwnershipType returns the ownershipType of the first rights
// entry, when present.
func FirstOwnershipType(rights []any) *string {
	if len(rights) == 0 {
		return nil
	}
	entry, ok := rights[0].(map[string]any)
	if !ok {
		return nil
	}
	return String(entry, "ownershipType")
}
