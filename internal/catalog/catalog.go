// Package catalog lists the astrologers a user can consult and the remedies
// that readings may point to.
package catalog

import (
	"strings"
	"unicode"
)

type Astrologer struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Specialty   string  `json:"specialty"`
	Rating      float64 `json:"rating"`
	Reviews     int     `json:"reviews"`
	PricePerMin float64 `json:"price_per_min"`
	Online      bool    `json:"online"`
}

// SessionPrice is the price of a ten minute consultation.
func (a Astrologer) SessionPrice() float64 {
	return a.PricePerMin * 10
}

type Category string

const (
	Gemstone  Category = "gemstone"
	Rudraksha Category = "rudraksha"
	Pooja     Category = "pooja"
	Yantra    Category = "yantra"
	Incense   Category = "incense"
)

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Price       int      `json:"price"`
	Description string   `json:"description"`
	Benefits    string   `json:"benefits"`
}

var astrologers = []Astrologer{
	{ID: "1", Name: "Pandit Arjun Mishra", Specialty: "Vedic & Vastu Shastra", Rating: 4.9, Reviews: 1240, PricePerMin: 25, Online: true},
	{ID: "2", Name: "Dr. Radhika Kapoor", Specialty: "Career & Love Marriage", Rating: 4.8, Reviews: 850, PricePerMin: 45, Online: true},
	{ID: "3", Name: "Acharya Dev", Specialty: "Prashna Kundali", Rating: 5.0, Reviews: 2100, PricePerMin: 60, Online: false},
	{ID: "4", Name: "Tarot Neelam", Specialty: "Past Life & Healing", Rating: 4.7, Reviews: 430, PricePerMin: 15, Online: true},
}

var products = []Product{
	{ID: "p1", Name: "Natural Red Coral (Moonga)", Category: Gemstone, Price: 5499,
		Description: "Authentic Italian Red Coral stone.", Benefits: "Boosts energy, courage, and vitality. Removes obstacles."},
	{ID: "p2", Name: "5 Mukhi Rudraksha Mala", Category: Rudraksha, Price: 1100,
		Description: "Original Nepali beads (108+1).", Benefits: "Calms the mind, lowers blood pressure, enhances focus."},
	{ID: "p3", Name: "Sri Yantra (Gold Plated)", Category: Yantra, Price: 2100,
		Description: "Sacred geometry of Goddess Laxmi.", Benefits: "Attracts wealth, abundance, and positive energy."},
	{ID: "p4", Name: "Navgrah Shanti Pooja Kit", Category: Pooja, Price: 1500,
		Description: "Complete Samagri for 9 Planets.", Benefits: "Pacifies malefic planets and brings harmony."},
	{ID: "p5", Name: "Pure Sandalwood Incense", Category: Incense, Price: 250,
		Description: "Organic hand-rolled incense sticks.", Benefits: "Purifies aura and deepens meditation."},
	{ID: "p6", Name: "Yellow Sapphire (Pukhraj)", Category: Gemstone, Price: 12500,
		Description: "Untreated Ceylon Yellow Sapphire.", Benefits: "Enhances career, marriage, and prosperity (Jupiter energy)."},
	{ID: "p7", Name: "Kuber Yantra", Category: Yantra, Price: 1800,
		Description: "Yantra of Lord Kuber on copper plate.", Benefits: "Unlock new income sources and protect wealth."},
	{ID: "p8", Name: "Crystal Quartz (Sphatik) Mala", Category: Rudraksha, Price: 850,
		Description: "Original Diamond cut Sphatik beads.", Benefits: "Cooling energy, mental clarity, and Venus remedies."},
	{ID: "p9", Name: "Rose Quartz Stone", Category: Gemstone, Price: 999,
		Description: "Natural healing stone for heart chakra.", Benefits: "Attracts love, heals emotional wounds, promotes peace."},
}

// Astrologers returns every astrologer, online or not.
func Astrologers() []Astrologer {
	return append([]Astrologer(nil), astrologers...)
}

func FindAstrologer(id string) (Astrologer, bool) {
	for _, a := range astrologers {
		if a.ID == id {
			return a, true
		}
	}
	return Astrologer{}, false
}

func Products() []Product {
	return append([]Product(nil), products...)
}

func FindProduct(id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Suggest returns at most one product named in text. A gemstone needs its
// specific name ("coral", "sapphire", "pukhraj"); other products match on any
// distinctive word of their name.
func Suggest(text string) []Product {
	if text == "" {
		return nil
	}
	words := make(map[string]bool)
	for _, w := range splitWords(text) {
		words[w] = true
	}

	for _, p := range products {
		for _, k := range keywords(p) {
			if words[k] {
				return []Product{p}
			}
		}
	}
	return nil
}

func keywords(p Product) []string {
	var out []string
	for _, w := range splitWords(p.Name) {
		if p.Category == Gemstone {
			if len(w) > 3 && w != "natural" && w != "stone" {
				out = append(out, w)
			}
			continue
		}
		if len(w) > 4 {
			out = append(out, w)
		}
	}
	return out
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
