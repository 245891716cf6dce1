package usecase

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Class/id substrings that mark an element as a likely specification region.
var specRegionHints = []string{"spec", "detail", "feature", "info", "attribute"}

// ExtractHeuristicSpecs scans raw page HTML for specification-like regions
// and parses them into key/value pairs. It looks at key/value tables,
// containers whose class or id hints at specifications, definition lists,
// and label/value span pairs.
func ExtractHeuristicSpecs(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if isKeyValueTable(table) {
			parseTableRows(table, specs)
		}
	})

	doc.Find("div, section, ul").Each(func(_ int, container *goquery.Selection) {
		if !hasSpecHint(container) {
			return
		}
		parseListItems(container, specs)
		parseLabelValuePairs(container, specs)
	})

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		parseDefinitionList(dl, specs)
	})

	return specs
}

// isKeyValueTable reports whether more than half of a table's rows have
// exactly two cells, the shape of a specification table.
func isKeyValueTable(table *goquery.Selection) bool {
	rows := table.Find("tr")
	total := rows.Length()
	if total == 0 {
		return false
	}

	twoCell := 0
	rows.Each(func(_ int, row *goquery.Selection) {
		if row.Find("td, th").Length() == 2 {
			twoCell++
		}
	})
	return twoCell*2 > total
}

func parseTableRows(table *goquery.Selection, specs map[string]string) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() != 2 {
			return
		}
		key := cleanCellText(cells.Eq(0).Text())
		value := cleanCellText(cells.Eq(1).Text())
		addSpec(specs, key, value)
	})
}

// hasSpecHint reports whether an element's class or id contains one of the
// specification region keywords.
func hasSpecHint(sel *goquery.Selection) bool {
	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")
	haystack := strings.ToLower(class + " " + id)
	for _, hint := range specRegionHints {
		if strings.Contains(haystack, hint) {
			return true
		}
	}
	return false
}

// parseListItems splits list items on the first colon.
func parseListItems(container *goquery.Selection, specs map[string]string) {
	container.Find("li").Each(func(_ int, item *goquery.Selection) {
		text := cleanCellText(item.Text())
		key, value, found := strings.Cut(text, ":")
		if !found {
			return
		}
		addSpec(specs, strings.TrimSpace(key), strings.TrimSpace(value))
	})
}

// parseLabelValuePairs pairs a span whose class contains "label" with its
// immediately following sibling.
func parseLabelValuePairs(container *goquery.Selection, specs map[string]string) {
	container.Find("span").Each(func(_ int, span *goquery.Selection) {
		class, _ := span.Attr("class")
		if !strings.Contains(strings.ToLower(class), "label") {
			return
		}
		sibling := span.Next()
		if sibling.Length() == 0 {
			return
		}
		key := cleanCellText(span.Text())
		value := cleanCellText(sibling.Text())
		addSpec(specs, strings.TrimSuffix(key, ":"), value)
	})
}

func parseDefinitionList(dl *goquery.Selection, specs map[string]string) {
	terms := dl.Find("dt")
	values := dl.Find("dd")
	count := terms.Length()
	if values.Length() < count {
		count = values.Length()
	}
	for i := 0; i < count; i++ {
		key := cleanCellText(terms.Eq(i).Text())
		value := cleanCellText(values.Eq(i).Text())
		addSpec(specs, key, value)
	}
}

func addSpec(specs map[string]string, key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if _, exists := specs[key]; !exists {
		specs[key] = value
	}
}

func cleanCellText(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
