package drink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidRecipe = errors.New("recipe must be an ingredient object or a list of ingredient objects")

// Recipe is the ordered ingredient list of a drink. Its canonical stored form
// is compact JSON with keys in name, color, parts order.
type Recipe []Ingredient

// ParseRecipe accepts either a single ingredient object or an array of them.
func ParseRecipe(raw []byte) (Recipe, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrInvalidRecipe
	}

	switch raw[0] {
	case '{':
		var ing Ingredient
		if err := json.Unmarshal(raw, &ing); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
		}
		return Recipe{ing}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
		}
		recipe := make(Recipe, 0, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidRecipe, i)
			}
			var ing Ingredient
			if err := json.Unmarshal(item, &ing); err != nil {
				return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidRecipe, i, err)
			}
			recipe = append(recipe, ing)
		}
		return recipe, nil
	default:
		return nil, ErrInvalidRecipe
	}
}

// Serialize returns the canonical text form. A nil recipe serializes as [].
func (r Recipe) Serialize() (string, error) {
	if r == nil {
		r = Recipe{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MarshalJSON keeps a nil recipe from rendering as null.
func (r Recipe) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Ingredient(r))
}

// Canonicalize rewrites any accepted recipe text into its canonical form, so
// Canonicalize(Serialize(ParseRecipe(s))) == Canonicalize(s).
func Canonicalize(raw []byte) (string, error) {
	recipe, err := ParseRecipe(raw)
	if err != nil {
		return "", err
	}
	return recipe.Serialize()
}

// IsFalsy reports whether a JSON value counts as "not supplied": absent,
// null, false, zero, the empty string, or an empty array or object.
func IsFalsy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
