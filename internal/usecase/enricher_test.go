package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopagent/backend/internal/domain"
	"go.uber.org/zap"
)

func newTestEnricher(llm domain.LLMClient) *EnricherService {
	if llm == nil {
		llm = &stubLLM{}
	}
	return NewEnricherService(llm, EnricherConfig{FetchTimeout: 2 * time.Second}, zap.NewNop())
}

func servePage(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetSpecs_StructuredDataSufficient(t *testing.T) {
	llm := &stubLLM{}
	server := servePage(t, jsonLDPage)
	svc := newTestEnricher(llm)

	specs := svc.GetSpecs(context.Background(), "p1", server.URL, "Sony WH-1000XM5")

	if specs["brand"] != "Sony" || specs["sku"] != "WH1000XM5B" {
		t.Errorf("specs = %v", specs)
	}
	if len(llm.prompts) != 0 {
		t.Error("sufficient structured data must skip the model fallback")
	}
}

func TestGetSpecs_HeuristicFallback(t *testing.T) {
	html := `<html><body>
<table>
  <tr><td>Screen Size</td><td>14 inch</td></tr>
  <tr><td>RAM</td><td>16GB</td></tr>
  <tr><td>Storage</td><td>512GB</td></tr>
</table>
</body></html>`
	llm := &stubLLM{}
	server := servePage(t, html)
	svc := newTestEnricher(llm)

	specs := svc.GetSpecs(context.Background(), "p1", server.URL, "Laptop")

	if specs["Screen Size"] != "14 inch" || specs["RAM"] != "16GB" {
		t.Errorf("specs = %v", specs)
	}
	if len(llm.prompts) != 0 {
		t.Error("three heuristic keys must skip the model fallback")
	}
}

func TestGetSpecs_LLMFallback(t *testing.T) {
	llm := &stubLLM{
		generateFunc: func(prompt string, opts domain.GenerateOptions) (string, error) {
			if !opts.JSONMode {
				t.Error("extraction call must use JSON mode")
			}
			return `{"description":"A sparse page product","specifications":{"Weight":"1kg"},"features":["compact","durable"],"brand":"Acme","category":"gadgets"}`, nil
		},
	}
	server := servePage(t, "<html><body><p>Very sparse product page</p></body></html>")
	svc := newTestEnricher(llm)

	specs := svc.GetSpecs(context.Background(), "p1", server.URL, "Gadget")

	if specs["Weight"] != "1kg" || specs["brand"] != "Acme" {
		t.Errorf("specs = %v", specs)
	}
	if specs["Features"] != "compact, durable" {
		t.Errorf("Features = %q", specs["Features"])
	}
}

func TestGetSpecs_HeuristicWinsCollisions(t *testing.T) {
	html := `<html><body>
<ul class="specs">
  <li>Weight: 250g</li>
</ul>
</body></html>`
	llm := &stubLLM{
		generateFunc: func(prompt string, opts domain.GenerateOptions) (string, error) {
			return `{"specifications":{"Weight":"999g","Color":"Black"},"features":[],"brand":null,"category":null,"description":null}`, nil
		},
	}
	server := servePage(t, html)
	svc := newTestEnricher(llm)

	specs := svc.GetSpecs(context.Background(), "p1", server.URL, "Headphones")

	if specs["Weight"] != "250g" {
		t.Errorf("Weight = %q, heuristic value must win the collision", specs["Weight"])
	}
	if specs["Color"] != "Black" {
		t.Errorf("Color = %q, model value should fill the gap", specs["Color"])
	}
}

func TestGetSpecs_InvalidURL(t *testing.T) {
	llm := &stubLLM{}
	svc := newTestEnricher(llm)

	specs := svc.GetSpecs(context.Background(), "p1", "not-a-url", "Gadget")

	if len(specs) != 0 {
		t.Errorf("expected empty specs, got %v", specs)
	}
	if len(llm.prompts) != 0 {
		t.Error("invalid URL must short-circuit before any model call")
	}
}

func TestGetSpecs_FetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	svc := newTestEnricher(nil)

	specs := svc.GetSpecs(context.Background(), "p1", server.URL, "Gadget")

	if len(specs) != 0 {
		t.Errorf("expected empty specs on fetch failure, got %v", specs)
	}
}

func TestEnrichProduct_FillsGapsOnly(t *testing.T) {
	server := servePage(t, jsonLDPage)
	svc := newTestEnricher(nil)

	product := domain.Product{
		ID:    "p1",
		Title: "Sony WH-1000XM5",
		URL:   server.URL,
		Brand: "Existing Brand",
	}

	enriched := svc.EnrichProduct(context.Background(), product)

	if enriched.Brand != "Existing Brand" {
		t.Errorf("Brand = %q, existing value must not be overwritten", enriched.Brand)
	}
	if enriched.Description == "" {
		t.Error("empty description should be filled from the page")
	}
	if enriched.Specifications["sku"] != "WH1000XM5B" {
		t.Errorf("specifications = %v", enriched.Specifications)
	}
}

func TestEnrichProduct_NoURLUnchanged(t *testing.T) {
	svc := newTestEnricher(nil)
	product := domain.Product{ID: "p1", Title: "No URL"}

	enriched := svc.EnrichProduct(context.Background(), product)

	if enriched.ID != "p1" || enriched.Brand != "" || enriched.Specifications != nil {
		t.Errorf("product changed: %+v", enriched)
	}
}

func TestEnrichProduct_FetchTimeoutUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	svc := NewEnricherService(&stubLLM{}, EnricherConfig{FetchTimeout: 50 * time.Millisecond}, zap.NewNop())
	product := domain.Product{ID: "p1", Title: "Slow Page", URL: server.URL}

	enriched := svc.EnrichProduct(context.Background(), product)

	if enriched.Brand != "" || enriched.Description != "" || enriched.Specifications != nil {
		t.Errorf("timed-out enrichment must leave the product unchanged: %+v", enriched)
	}
}

func TestApplySpecs_MergeInvariants(t *testing.T) {
	product := domain.Product{
		Title:          "Gadget",
		Specifications: map[string]string{"A": "1"},
	}

	product = applySpecs(product, map[string]string{"B": "2"})
	if product.Specifications["A"] != "1" || product.Specifications["B"] != "2" {
		t.Errorf("specifications = %v", product.Specifications)
	}

	product = applySpecs(product, map[string]string{"A": "99"})
	if product.Specifications["A"] != "1" {
		t.Errorf("A = %q, existing key must never be overwritten", product.Specifications["A"])
	}
}

func TestApplySpecs_ParsesRatingAndReviews(t *testing.T) {
	product := applySpecs(domain.Product{Title: "G"}, map[string]string{
		"rating":      "4.5",
		"reviewCount": "120",
	})

	if product.Rating == nil || *product.Rating != 4.5 {
		t.Errorf("Rating = %v", product.Rating)
	}
	if product.ReviewCount == nil || *product.ReviewCount != 120 {
		t.Errorf("ReviewCount = %v", product.ReviewCount)
	}

	invalid := applySpecs(domain.Product{Title: "G"}, map[string]string{
		"rating":      "9.5",
		"reviewCount": "-3",
	})
	if invalid.Rating != nil || invalid.ReviewCount != nil {
		t.Error("out-of-range rating and negative review count must stay unset")
	}
}

func TestVisibleText_StripsChrome(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<script>var hidden = true;</script>
<style>.x { color: red }</style>
<nav>Menu</nav>
<p>Actual   product    text</p>
</body></html>`)

	text := visibleText(doc)

	if strings.Contains(text, "hidden") || strings.Contains(text, "Menu") || strings.Contains(text, "color") {
		t.Errorf("chrome not stripped: %q", text)
	}
	if !strings.Contains(text, "Actual product text") {
		t.Errorf("whitespace not collapsed: %q", text)
	}
}
