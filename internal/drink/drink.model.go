package drink

// Ingredient is one component of a recipe. Parts is relative to the other
// ingredients of the same drink.
type Ingredient struct {
	Name  string  `json:"name"`
	Color string  `json:"color"`
	Parts float64 `json:"parts"`
}

// ShortIngredient is the public view of an ingredient: the name stays hidden.
type ShortIngredient struct {
	Color string  `json:"color"`
	Parts float64 `json:"parts"`
}

// MaxTitleLength is the longest title, in characters, any store accepts.
const MaxTitleLength = 80

type Drink struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Recipe Recipe `json:"recipe"`
}

type Short struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

type Long struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Recipe Recipe `json:"recipe"`
}

func (d *Drink) Short() Short {
	recipe := make([]ShortIngredient, 0, len(d.Recipe))
	for _, ing := range d.Recipe {
		recipe = append(recipe, ShortIngredient{Color: ing.Color, Parts: ing.Parts})
	}
	return Short{ID: d.ID, Title: d.Title, Recipe: recipe}
}

func (d *Drink) Long() Long {
	recipe := make(Recipe, len(d.Recipe))
	copy(recipe, d.Recipe)
	return Long{ID: d.ID, Title: d.Title, Recipe: recipe}
}

func ShortList(drinks []*Drink) []Short {
	out := make([]Short, 0, len(drinks))
	for _, d := range drinks {
		out = append(out, d.Short())
	}
	return out
}

func LongList(drinks []*Drink) []Long {
	out := make([]Long, 0, len(drinks))
	for _, d := range drinks {
		out = append(out, d.Long())
	}
	return out
}
