package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopagent/backend/internal/domain"
	"go.uber.org/zap"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36"

var whitespacePattern = regexp.MustCompile(`\s+`)

// EnricherConfig holds the tunables for specification extraction.
type EnricherConfig struct {
	// SufficiencyThreshold is the minimum number of specification keys
	// structured data must yield before later extraction tiers are skipped.
	SufficiencyThreshold int
	// MaxExtractionChars bounds the visible text sent to the language model.
	MaxExtractionChars int
	// FetchTimeout bounds each product page fetch.
	FetchTimeout time.Duration
	// ExtractionModel overrides the default model for the extraction call.
	ExtractionModel string
}

// EnricherService fills gaps in products by fetching their pages and
// extracting specifications. Extraction tries structured markup first,
// then HTML heuristics, then a language-model fallback.
type EnricherService struct {
	llm        domain.LLMClient
	httpClient *http.Client
	config     EnricherConfig
	logger     *zap.Logger
}

// NewEnricherService creates a new enricher service
func NewEnricherService(llm domain.LLMClient, config EnricherConfig, logger *zap.Logger) *EnricherService {
	if config.SufficiencyThreshold <= 0 {
		config.SufficiencyThreshold = 3
	}
	if config.MaxExtractionChars <= 0 {
		config.MaxExtractionChars = 8000
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 10 * time.Second
	}

	return &EnricherService{
		llm:        llm,
		httpClient: &http.Client{Timeout: config.FetchTimeout},
		config:     config,
		logger:     logger,
	}
}

// EnrichProduct fills missing fields on a product from its page. It never
// fails: any error leaves the product unchanged.
func (s *EnricherService) EnrichProduct(ctx context.Context, product domain.Product) domain.Product {
	if product.URL == "" {
		s.logger.Warn("cannot enrich product without URL", zap.String("id", product.ID))
		return product
	}

	specs := s.GetSpecs(ctx, product.ID, product.URL, product.Title)
	if len(specs) == 0 {
		s.logger.Debug("no specifications found", zap.String("title", product.Title))
		return product
	}

	return applySpecs(product, specs)
}

// GetSpecs retrieves a flat specification mapping for a product page.
// Returns an empty map on any failure.
func (s *EnricherService) GetSpecs(ctx context.Context, productID, productURL, name string) map[string]string {
	if !strings.HasPrefix(productURL, "http://") && !strings.HasPrefix(productURL, "https://") {
		s.logger.Warn("invalid product URL", zap.String("url", productURL))
		return map[string]string{}
	}

	html, err := s.fetchPage(ctx, productURL)
	if err != nil {
		s.logger.Warn("failed to fetch product page",
			zap.String("url", productURL),
			zap.Error(err))
		return map[string]string{}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Warn("failed to parse product page",
			zap.String("url", productURL),
			zap.Error(err))
		return map[string]string{}
	}

	specs := ExtractStructuredData(doc)
	if IsSufficientlyDetailed(specs, s.config.SufficiencyThreshold) {
		s.logger.Debug("structured data sufficient", zap.String("url", productURL))
		return specs
	}

	heuristic := ExtractHeuristicSpecs(doc)
	// Structured data is the more trusted source; heuristics fill gaps only.
	for key, value := range heuristic {
		if _, exists := specs[key]; !exists {
			specs[key] = value
		}
	}

	if len(heuristic) < s.config.SufficiencyThreshold {
		llmSpecs := s.extractWithLLM(ctx, doc, name)
		// Heuristic and structured keys win collisions with model output.
		for key, value := range llmSpecs {
			if _, exists := specs[key]; !exists {
				specs[key] = value
			}
		}
	}

	return specs
}

// fetchPage retrieves a product page with a browser user agent.
func (s *EnricherService) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}
	return string(body), nil
}

// extractWithLLM asks the language model for specification pairs from the
// page's visible text. Degrades to an empty map on any failure.
func (s *EnricherService) extractWithLLM(ctx context.Context, doc *goquery.Document, name string) map[string]string {
	text := visibleText(doc)
	if text == "" {
		return map[string]string{}
	}
	if len(text) > s.config.MaxExtractionChars {
		text = text[:s.config.MaxExtractionChars]
	}

	contextStr := ""
	if name != "" {
		contextStr = fmt.Sprintf(" for the product named %q", name)
	}
	prompt := fmt.Sprintf(`Analyze the following text extracted from a product page%s.
Extract key product information and return ONLY a single valid JSON object with these exact keys:
- "description": the main product description, or null
- "specifications": an object mapping specification names to values, e.g. {"Screen Size": "14 inch", "RAM": "16GB"}
- "features": an array of key selling points as strings
- "brand": the product brand, or null
- "category": the primary product category, or null

Product page content:
%s`, contextStr, text)

	response, err := s.llm.Generate(ctx, prompt, domain.GenerateOptions{
		Model:     s.config.ExtractionModel,
		MaxTokens: 2000,
		JSONMode:  true,
	})
	if err != nil {
		s.logger.Warn("extraction model call failed", zap.Error(err))
		return map[string]string{}
	}

	var parsed struct {
		Description string            `json:"description"`
		Specs       map[string]string `json:"specifications"`
		Features    []string          `json:"features"`
		Brand       string            `json:"brand"`
		Category    string            `json:"category"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &parsed); err != nil {
		s.logger.Warn("extraction response was not valid JSON", zap.Error(err))
		return map[string]string{}
	}

	specs := make(map[string]string, len(parsed.Specs)+4)
	for key, value := range parsed.Specs {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			specs[key] = value
		}
	}
	if parsed.Description != "" {
		specs["description"] = strings.TrimSpace(parsed.Description)
	}
	if parsed.Brand != "" {
		specs["brand"] = strings.TrimSpace(parsed.Brand)
	}
	if parsed.Category != "" {
		specs["category"] = strings.TrimSpace(parsed.Category)
	}
	if features := joinFeatures(parsed.Features); features != "" {
		specs["Features"] = features
	}

	return specs
}

// applySpecs merges an extracted specification mapping into a product.
// Scalar fields are fill-only. The specifications map gains new keys but
// existing keys are preserved.
func applySpecs(product domain.Product, specs map[string]string) domain.Product {
	if product.Brand == "" {
		product.Brand = specs["brand"]
	}
	if product.Description == "" {
		product.Description = specs["description"]
	}
	if product.Category == "" {
		product.Category = specs["category"]
	}

	if product.Rating == nil {
		if rating, err := strconv.ParseFloat(specs["rating"], 64); err == nil && rating >= 0 && rating <= 5 {
			product.Rating = &rating
		}
	}
	if product.ReviewCount == nil {
		if count, err := strconv.Atoi(specs["reviewCount"]); err == nil && count >= 0 {
			product.ReviewCount = &count
		}
	}
	if product.Condition == "" {
		product.Condition = specs["condition"]
	}

	detail := make(map[string]string, len(specs))
	for key, value := range specs {
		switch key {
		case "brand", "description", "category", "rating", "reviewCount", "name", "product_id", "price", "currency", "availability", "url", "image":
			continue
		}
		detail[key] = value
	}
	product.MergeSpecifications(detail)

	return product
}

// visibleText returns the page's human-readable text with scripts, styles
// and chrome removed, whitespace-collapsed.
func visibleText(doc *goquery.Document) string {
	clone := doc.Clone()
	clone.Find("script, style, nav, footer, header, aside, noscript, iframe, form, button, input, select").Remove()

	body := clone.Find("body")
	if body.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(body.Text(), " "))
}

func joinFeatures(features []string) string {
	valid := make([]string, 0, len(features))
	for _, f := range features {
		if f = strings.TrimSpace(f); f != "" {
			valid = append(valid, f)
		}
	}
	return strings.Join(valid, ", ")
}
