package drink

import (
	"encoding/json"
	"errors"
)

var ErrTitleNotString = errors.New("title must be a string")

// CreateDrinkRequest keeps the recipe raw so the service can tell an absent
// recipe from an empty one before parsing it.
type CreateDrinkRequest struct {
	Title  string          `json:"title"`
	Recipe json.RawMessage `json:"recipe"`
}

type UpdateDrinkRequest struct {
	Title  string          `json:"title,omitempty"`
	Recipe json.RawMessage `json:"recipe,omitempty"`
}

// UnmarshalJSON drops a falsy title of any JSON type, the same way a falsy
// recipe is ignored. A truthy title must be a string.
func (r *UpdateDrinkRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title  json.RawMessage `json:"title"`
		Recipe json.RawMessage `json:"recipe"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Title = ""
	r.Recipe = raw.Recipe
	if IsFalsy(raw.Title) {
		return nil
	}
	if err := json.Unmarshal(raw.Title, &r.Title); err != nil {
		return ErrTitleNotString
	}
	return nil
}

type DrinksResponse[T Short | Long] struct {
	Success bool `json:"success"`
	Drinks  []T  `json:"drinks"`
}

type DeleteResponse struct {
	Success bool  `json:"success"`
	Delete  int64 `json:"delete"`
}
