package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Keys found in structured markup that describe the listing itself rather
// than detailed specifications. They do not count toward sufficiency.
var excludedStructuredKeys = map[string]bool{
	"name":         true,
	"brand":        true,
	"description":  true,
	"category":     true,
	"price":        true,
	"url":          true,
	"image":        true,
	"offers":       true,
	"availability": true,
	"condition":    true,
	"currency":     true,
	"sku":          true,
	"mpn":          true,
	"gtin":         true,
}

// ExtractStructuredData pulls product fields from embedded structured markup.
// JSON-LD is tried first, then microdata, then OpenGraph meta tags. Later
// syntaxes only fill fields still missing. Pure function of the document.
func ExtractStructuredData(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)

	extractJSONLD(doc, specs)
	if len(specs) < 3 {
		extractMicrodata(doc, specs)
	}
	if len(specs) < 3 {
		extractOpenGraph(doc, specs)
	}

	return specs
}

// IsSufficientlyDetailed reports whether structured data alone is rich
// enough to skip the heuristic and model extraction tiers: a meaningful
// description plus at least threshold specification keys.
func IsSufficientlyDetailed(specs map[string]string, threshold int) bool {
	if len(specs["description"]) <= 50 {
		return false
	}
	count := 0
	for key := range specs {
		if !excludedStructuredKeys[key] {
			count++
		}
	}
	return count >= threshold
}

func extractJSONLD(doc *goquery.Document, specs map[string]string) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			return
		}
		for _, node := range flattenJSONLD(payload) {
			if !isProductNode(node) {
				continue
			}
			applyProductNode(node, specs)
		}
	})
}

// flattenJSONLD unwraps top-level arrays and @graph containers.
func flattenJSONLD(payload any) []map[string]any {
	switch v := payload.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			var nodes []map[string]any
			for _, item := range graph {
				if node, ok := item.(map[string]any); ok {
					nodes = append(nodes, node)
				}
			}
			return nodes
		}
		return []map[string]any{v}
	case []any:
		var nodes []map[string]any
		for _, item := range v {
			if node, ok := item.(map[string]any); ok {
				nodes = append(nodes, node)
			}
		}
		return nodes
	}
	return nil
}

func isProductNode(node map[string]any) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == "Product" || strings.HasSuffix(t, "/Product")
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && (s == "Product" || strings.HasSuffix(s, "/Product")) {
				return true
			}
		}
	}
	return false
}

func applyProductNode(node map[string]any, specs map[string]string) {
	setIfEmpty(specs, "name", stringValue(node["name"]))
	setIfEmpty(specs, "description", stringValue(node["description"]))
	setIfEmpty(specs, "sku", stringValue(node["sku"]))
	setIfEmpty(specs, "mpn", stringValue(node["mpn"]))
	setIfEmpty(specs, "model", stringValue(node["model"]))

	// Brand may be a nested object or a bare string
	switch brand := node["brand"].(type) {
	case map[string]any:
		setIfEmpty(specs, "brand", stringValue(brand["name"]))
	default:
		setIfEmpty(specs, "brand", stringValue(brand))
	}

	if rating, ok := node["aggregateRating"].(map[string]any); ok {
		setIfEmpty(specs, "rating", stringValue(rating["ratingValue"]))
		setIfEmpty(specs, "reviewCount", stringValue(rating["reviewCount"]))
	}

	applyOfferNode(node["offers"], specs)

	handled := map[string]bool{
		"@context": true, "@type": true, "@id": true,
		"name": true, "brand": true, "description": true,
		"sku": true, "mpn": true, "model": true,
		"image": true, "url": true, "offers": true, "aggregateRating": true,
		"review": true, "reviews": true,
	}
	for key, value := range node {
		if handled[key] {
			continue
		}
		setIfEmpty(specs, key, stringValue(value))
	}
}

func applyOfferNode(raw any, specs map[string]string) {
	offer, ok := raw.(map[string]any)
	if !ok {
		// A list of offers contributes its first entry
		if list, isList := raw.([]any); isList && len(list) > 0 {
			offer, ok = list[0].(map[string]any)
		}
		if !ok {
			return
		}
	}

	setIfEmpty(specs, "price", stringValue(offer["price"]))
	setIfEmpty(specs, "availability", stringValue(offer["availability"]))

	if condition := stringValue(offer["itemCondition"]); condition != "" {
		// Schema condition URLs like .../NewCondition map to "new"
		condition = condition[strings.LastIndex(condition, "/")+1:]
		condition = strings.ToLower(strings.TrimSuffix(condition, "condition"))
		setIfEmpty(specs, "condition", condition)
	}
}

func extractMicrodata(doc *goquery.Document, specs map[string]string) {
	doc.Find(`[itemtype]`).Each(func(_ int, scope *goquery.Selection) {
		itemType, _ := scope.Attr("itemtype")
		if !strings.HasSuffix(itemType, "schema.org/Product") {
			return
		}
		scope.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
			name, _ := prop.Attr("itemprop")
			if name == "" {
				return
			}
			value, exists := prop.Attr("content")
			if !exists {
				value = strings.TrimSpace(prop.Text())
			}
			setIfEmpty(specs, name, value)
		})
	})
}

func extractOpenGraph(doc *goquery.Document, specs map[string]string) {
	ogFields := map[string]string{
		"og:title":          "name",
		"og:description":    "description",
		"og:brand":          "brand",
		"og:price:amount":   "price",
		"og:price:currency": "currency",
		"og:availability":   "availability",
	}

	doc.Find(`meta[property]`).Each(func(_ int, meta *goquery.Selection) {
		property, _ := meta.Attr("property")
		key, mapped := ogFields[property]
		if !mapped {
			return
		}
		content, _ := meta.Attr("content")
		setIfEmpty(specs, key, content)
	})
}

func setIfEmpty(specs map[string]string, key, value string) {
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if _, exists := specs[key]; !exists {
		specs[key] = value
	}
}

// stringValue renders a JSON-decoded scalar as a string. Objects and nil
// yield an empty string.
func stringValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	}
	return ""
}
