package serp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopagent/backend/internal/domain"
	"github.com/shopspring/decimal"
)

var priceNumericPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// Normalize converts one raw provider record into a domain Product. Records
// without a title or URL are unusable and return nil. position is the 1-based
// rank in the provider response.
func Normalize(record domain.RawRecord, position int) *domain.Product {
	title := strings.TrimSpace(stringField(record, "title"))
	if title == "" {
		return nil
	}

	url := stringField(record, "link")
	if url == "" {
		return nil
	}

	priceRaw := stringField(record, "price")
	store := strings.ToLower(stringField(record, "source"))

	identifiers := collectIdentifiers(record)

	productID := firstNonEmpty(
		stringField(record, "productId"),
		stringField(record, "product_id"),
		stringField(record, "serpapi_product_api_id"),
		identifiers["sku"],
		identifiers["mpn"],
		identifiers["gtin"],
	)
	if productID == "" {
		productID = fmt.Sprintf("%s_%d", store, position)
	}

	imageURL := firstNonEmpty(stringField(record, "imageUrl"), stringField(record, "thumbnail"))
	shipping := firstNonEmpty(stringField(record, "delivery"), stringField(record, "shipping"))
	offers := firstNonEmpty(stringField(record, "offers"), stringField(record, "merchant_count"))

	product := &domain.Product{
		ID:          productID,
		Title:       title,
		Price:       ParsePrice(priceRaw),
		Store:       store,
		URL:         url,
		ImageURL:    imageURL,
		Rating:      parseRating(record),
		ReviewCount: parseReviewCount(record),
		Shipping:    shipping,
		Offers:      offers,
		Position:    position,
		Source:      "serp_api",
	}

	if condition := DetectCondition(priceRaw); condition != "" {
		product.Condition = condition
		product.MergeSpecifications(map[string]string{"condition": condition})
	}
	product.MergeSpecifications(identifiers)

	return product
}

// collectIdentifiers gathers stable external identifiers from a raw record.
// They land in specifications so later pipeline stages can see them, and the
// first one present doubles as the synthesized product ID fallback.
func collectIdentifiers(record domain.RawRecord) map[string]string {
	identifiers := make(map[string]string)
	for _, key := range []string{"sku", "mpn", "gtin", "itemId"} {
		if value := stringField(record, key); value != "" {
			identifiers[key] = value
		}
	}
	return identifiers
}

// NormalizeAll converts a full provider payload, dropping unusable records
// while preserving the order of the rest.
func NormalizeAll(records []domain.RawRecord) []domain.Product {
	products := make([]domain.Product, 0, len(records))
	for i, record := range records {
		if product := Normalize(record, i+1); product != nil {
			products = append(products, *product)
		}
	}
	return products
}

// ParsePrice extracts a decimal price from a provider price string such as
// "$1,299.99 used". Unparseable input maps to 0.00.
func ParsePrice(raw string) decimal.Decimal {
	cleaned := strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(raw)
	cleaned = strings.TrimSpace(cleaned)

	match := priceNumericPattern.FindString(cleaned)
	if match == "" {
		return decimal.Zero
	}

	price, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero
	}
	return price
}

// DetectCondition infers the listing condition from the trailing annotation
// providers append to the price string. Matches require a leading space so
// substrings inside other words do not trigger ("preused" must not match).
func DetectCondition(priceRaw string) string {
	lower := strings.ToLower(priceRaw)

	switch {
	case strings.Contains(lower, " refurbished"):
		return domain.ConditionRefurbished
	case strings.Contains(lower, " used"):
		return domain.ConditionUsed
	case strings.Contains(lower, " renewed"):
		return domain.ConditionRenewed
	case strings.Contains(lower, " new"):
		return domain.ConditionNew
	}
	return ""
}

func parseRating(record domain.RawRecord) *float64 {
	raw, ok := record["rating"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func parseReviewCount(record domain.RawRecord) *int {
	raw, ok := record["ratingCount"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		n := int(v)
		return &n
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func stringField(record domain.RawRecord, key string) string {
	raw, ok := record[key]
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64. Integer-valued fields such as
		// merchant_count come through this path.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
