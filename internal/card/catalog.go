// Package card maps free-text input to one of a fixed set of Adaptive Card
// payloads and loads the chosen payload from a content store.
package card

import (
	"fmt"

	"github.com/garyellow/cardbot/internal/cardstore"
	domerrors "github.com/garyellow/cardbot/internal/errors"
)

// ContentType is the attachment content type for every card payload.
const ContentType = "application/vnd.microsoft.card.adaptive"

// defaultNames is the demo card set. Keyword rules refer to these positions.
var defaultNames = [...]string{
	"FlightItineraryCard.json",
	"ImageGalleryCard.json",
	"LargeWeatherCard.json",
	"FlightUpdate.json",
	"AdaptiveCardDemo.json",
	"FoodOrder.json",
	"InputForm.json",
	"RestaurantCard.json",
	"SolitaireCard.json",
	"InputChoiceCard.json",
}

// Catalog is an immutable ordered list of payload names.
type Catalog struct {
	names []string
}

// NewCatalog builds a catalog from names. It rejects an empty list and names
// that could not address a store document.
func NewCatalog(names ...string) (Catalog, error) {
	if len(names) == 0 {
		return Catalog{}, domerrors.NewConfigError("catalog", "must contain at least one payload")
	}
	for i, n := range names {
		if err := cardstore.ValidateName(n); err != nil {
			return Catalog{}, domerrors.NewConfigError(fmt.Sprintf("catalog[%d]", i), err.Error())
		}
	}
	return Catalog{names: append([]string(nil), names...)}, nil
}

// DefaultCatalog returns the ten demo cards.
func DefaultCatalog() Catalog {
	return Catalog{names: append([]string(nil), defaultNames[:]...)}
}

// Len returns the number of entries.
func (c Catalog) Len() int { return len(c.names) }

// Name returns the payload name at index i.
func (c Catalog) Name(i int) (string, bool) {
	if i < 0 || i >= len(c.names) {
		return "", false
	}
	return c.names[i], true
}

// Names returns a copy of all payload names in catalog order.
func (c Catalog) Names() []string {
	return append([]string(nil), c.names...)
}
