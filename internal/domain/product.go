package domain

import (
	"github.com/shopspring/decimal"
)

// Product condition values detected during normalization.
const (
	ConditionNew         = "new"
	ConditionUsed        = "used"
	ConditionRefurbished = "refurbished"
	ConditionRenewed     = "renewed"
)

// Product is the canonical representation of one listing, normalized from a
// raw provider record and optionally enriched with page-level specifications
// and a relevance score.
type Product struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Store string          `json:"store"` // lowercased retailer name
	URL   string          `json:"url"`

	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Brand       string `json:"brand,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`

	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty"`
	Shipping    string   `json:"shipping,omitempty"`
	Offers      string   `json:"offers,omitempty"`
	Condition   string   `json:"condition,omitempty"`

	RelevanceScore       *float64 `json:"relevanceScore,omitempty"`
	RelevanceExplanation string   `json:"relevanceExplanation,omitempty"`

	// Position is the 1-based rank in the originating provider response.
	Position int    `json:"position,omitempty"`
	Source   string `json:"source,omitempty"`

	Specifications map[string]string `json:"specifications,omitempty"`
}

// FormatPrice renders the price with a currency symbol for prompts and logs.
func (p *Product) FormatPrice() string {
	return "$" + p.Price.StringFixed(2)
}

// HasSpecifications reports whether enrichment added any specification keys.
func (p *Product) HasSpecifications() bool {
	return len(p.Specifications) > 0
}

// MergeSpecifications adds new keys from specs without overwriting keys that
// were already set by an earlier, more trusted source.
func (p *Product) MergeSpecifications(specs map[string]string) {
	if len(specs) == 0 {
		return
	}
	if p.Specifications == nil {
		p.Specifications = make(map[string]string, len(specs))
	}
	for key, value := range specs {
		if key == "" || value == "" {
			continue
		}
		if _, exists := p.Specifications[key]; !exists {
			p.Specifications[key] = value
		}
	}
}

// RawRecord is one unparsed item from a provider's shopping-results payload.
type RawRecord map[string]any

// QueryIntent is the structured breakdown of a free-text shopping query
// produced by the intent-analysis step of the ranker.
type QueryIntent struct {
	PrimaryIntent string   `json:"primary_intent"`
	ProductType   string   `json:"product_type"`
	Constraints   []string `json:"constraints"`
	Preferences   []string `json:"preferences"`
	Keywords      []string `json:"keywords"`
}

// VectorMatch is one result from the vector-similarity ranking path: a product
// annotated with an approximate normalized similarity score.
type VectorMatch struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

// SearchResponse is the payload returned by the search endpoint.
type SearchResponse struct {
	Query   string    `json:"query"`
	Cached  bool      `json:"cached"`
	Results []Product `json:"results"`
	User    string    `json:"user,omitempty"`
}
