// Package styles holds the catalogue of outfit styles the analysis backend
// predicts and the feedback page offers.
package styles

// Style is one outfit category.
type Style struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// catalogue is ordered as presented to the user.
var catalogue = []Style{
	{"Urban Streetwear", "Casual streetwear outfit with hoodies, relaxed fit, sneakers, sporty energy."},
	{"Formal Business", "Formal business outfit with tailored blazer, collared shirt, suit trousers and dress shoes."},
	{"Casual Chic", "Clean modern casual outfit: simple basics styled in a polished way, effortless but intentional."},
	{"Sporty / Athleisure", "Athletic activewear look: sportswear, gym-ready vibe, performance fabrics, sneakers."},
	{"Vintage / Retro", "Retro vintage outfit using classic cuts, muted or faded colors, thrift-store aesthetic."},
	{"Bohemian", "Boho outfit with loose patterned fabrics, flowy layers and earthy tones."},
	{"Elegant Evening", "Refined night-out look with sleek silhouettes, dressy pieces, going-out energy."},
	{"Preppy", "Polished collegiate style: neat, coordinated layers, structured and tidy."},
	{"Punk / Alt", "Alternative edgy outfit with darker tones, maybe leather or band tee energy."},
	{"Gothic", "Dark aesthetic with mostly black clothing and dramatic mood."},
	{"Artsy / Expressive", "Creative expressive outfit with bold colors, interesting textures, standout shapes."},
}

// All returns a copy of the catalogue.
func All() []Style {
	out := make([]Style, len(catalogue))
	copy(out, catalogue)
	return out
}

// Names returns the style names in catalogue order.
func Names() []string {
	names := make([]string, len(catalogue))
	for i, s := range catalogue {
		names[i] = s.Name
	}
	return names
}

// Lookup finds a style by its exact name.
func Lookup(name string) (Style, bool) {
	for _, s := range catalogue {
		if s.Name == name {
			return s, true
		}
	}
	return Style{}, false
}

// Valid reports whether name is in the catalogue.
func Valid(name string) bool {
	_, ok := Lookup(name)
	return ok
}
