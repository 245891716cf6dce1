package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopagent/backend/internal/domain"
	"go.uber.org/zap"
)

// RankerConfig holds the tunables for relevance ranking.
type RankerConfig struct {
	// Model overrides the default chat model for ranking calls.
	Model string
	// MaxTokens bounds the ranking completion. Zero uses the model default.
	MaxTokens int
}

// RankerService orders products by relevance to a query using a
// language-model call, with a deterministic positional fallback.
type RankerService struct {
	llm    domain.LLMClient
	config RankerConfig
	logger *zap.Logger
}

// NewRankerService creates a new ranker service
func NewRankerService(llm domain.LLMClient, config RankerConfig, logger *zap.Logger) *RankerService {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 3000
	}
	return &RankerService{
		llm:    llm,
		config: config,
		logger: logger,
	}
}

// rankEntry is one element of the model's ranking response.
type rankEntry struct {
	ProductIndex   int     `json:"product_index"`
	RelevanceScore float64 `json:"relevance_score"`
	Explanation    string  `json:"explanation"`
}

// Rank reorders products by descending relevance. The returned list always
// has the same length as the input; on any model failure every product gets
// a deterministic positional score and the input order is preserved.
func (s *RankerService) Rank(ctx context.Context, query string, products []domain.Product) []domain.Product {
	if len(products) == 0 {
		return []domain.Product{}
	}
	if len(products) == 1 {
		only := products[0]
		score := 1.0
		only.RelevanceScore = &score
		only.RelevanceExplanation = "Top result based on initial fetch."
		return []domain.Product{only}
	}

	intent := s.AnalyzeIntent(ctx, query)
	prompt := buildRankingPrompt(query, intent, products)

	response, err := s.llm.Generate(ctx, prompt, domain.GenerateOptions{
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("ranking model call failed, using positional fallback",
			zap.String("query", query),
			zap.Error(err))
		return fallbackRanking(products)
	}

	entries, err := parseRankingResponse(response)
	if err != nil {
		s.logger.Warn("ranking response unparsable, using positional fallback",
			zap.String("query", query),
			zap.Error(err))
		return fallbackRanking(products)
	}

	ranked := make([]domain.Product, len(products))
	copy(ranked, products)

	for _, entry := range entries {
		idx := entry.ProductIndex - 1
		if idx < 0 || idx >= len(ranked) {
			// Hallucinated indices are dropped, not errors
			continue
		}
		score := entry.RelevanceScore
		ranked[idx].RelevanceScore = &score
		ranked[idx].RelevanceExplanation = entry.Explanation
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return scoreOf(ranked[a]) > scoreOf(ranked[b])
	})

	return ranked
}

// AnalyzeIntent asks the model for a structured breakdown of the query.
// Any failure degrades to a trivial token-based heuristic.
func (s *RankerService) AnalyzeIntent(ctx context.Context, query string) domain.QueryIntent {
	prompt := fmt.Sprintf(`Analyze this shopping search query: %q
Return ONLY a JSON object with these keys:
- "primary_intent": what the shopper is trying to do
- "product_type": the kind of product sought
- "constraints": array of hard requirements (budget, size, compatibility)
- "preferences": array of soft preferences (brand, color, style)
- "keywords": array of the important terms in the query`, query)

	response, err := s.llm.Generate(ctx, prompt, domain.GenerateOptions{
		Model:    s.config.Model,
		JSONMode: true,
	})
	if err != nil {
		s.logger.Debug("intent analysis failed, using heuristic", zap.Error(err))
		return heuristicIntent(query)
	}

	var intent domain.QueryIntent
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &intent); err != nil {
		s.logger.Debug("intent response unparsable, using heuristic", zap.Error(err))
		return heuristicIntent(query)
	}
	if intent.PrimaryIntent == "" {
		return heuristicIntent(query)
	}
	return intent
}

// heuristicIntent is the parse-failure fallback for intent analysis.
func heuristicIntent(query string) domain.QueryIntent {
	tokens := strings.Fields(query)
	productType := ""
	if len(tokens) > 0 {
		productType = tokens[len(tokens)-1]
	}
	return domain.QueryIntent{
		PrimaryIntent: "find products",
		ProductType:   productType,
		Constraints:   []string{},
		Preferences:   []string{},
		Keywords:      tokens,
	}
}

func buildRankingPrompt(query string, intent domain.QueryIntent, products []domain.Product) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are ranking %d products for the search query: %q\n\n", len(products), query)
	fmt.Fprintf(&b, "Shopper intent: %s (product type: %s)\n", intent.PrimaryIntent, intent.ProductType)
	if len(intent.Constraints) > 0 {
		fmt.Fprintf(&b, "Hard constraints: %s\n", strings.Join(intent.Constraints, "; "))
	}
	if len(intent.Preferences) > 0 {
		fmt.Fprintf(&b, "Preferences: %s\n", strings.Join(intent.Preferences, "; "))
	}

	b.WriteString("\nPRODUCTS:\n")
	for i, p := range products {
		fmt.Fprintf(&b, "\nPRODUCT #%d:\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", p.Title)
		fmt.Fprintf(&b, "Price: %s\n", p.FormatPrice())
		if p.Brand != "" {
			fmt.Fprintf(&b, "Brand: %s\n", p.Brand)
		}
		if p.Store != "" {
			fmt.Fprintf(&b, "Store: %s\n", p.Store)
		}
		if p.Rating != nil {
			reviews := 0
			if p.ReviewCount != nil {
				reviews = *p.ReviewCount
			}
			fmt.Fprintf(&b, "Rating: %.1f (%d reviews)\n", *p.Rating, reviews)
		}
		if p.Description != "" {
			desc := p.Description
			if len(desc) > 200 {
				desc = desc[:200] + "..."
			}
			fmt.Fprintf(&b, "Description: %s\n", desc)
		}
		if len(p.Specifications) > 0 {
			pairs := make([]string, 0, len(p.Specifications))
			for key, value := range p.Specifications {
				pairs = append(pairs, key+": "+value)
			}
			sort.Strings(pairs)
			fmt.Fprintf(&b, "Specifications: %s\n", strings.Join(pairs, "; "))
		}
	}

	b.WriteString(`
For EVERY product, return its relevance to the query as a JSON array:
[{"product_index": 1, "relevance_score": 0.95, "explanation": "one to two sentences"}]
Scores are between 0.0 and 1.0. Return ONLY the JSON array.`)

	return b.String()
}

// parseRankingResponse extracts rank entries from the model's text output.
func parseRankingResponse(response string) ([]rankEntry, error) {
	cleaned := stripCodeFences(response)

	var entries []rankEntry
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, fmt.Errorf("ranking response is not a JSON array: %w", err)
	}
	return entries, nil
}

// fallbackRanking assigns linearly descending scores by input position and
// keeps the input order. Deterministic by construction.
func fallbackRanking(products []domain.Product) []domain.Product {
	ranked := make([]domain.Product, len(products))
	copy(ranked, products)

	n := len(ranked)
	if n == 0 {
		n = 1
	}
	for i := range ranked {
		score := 1.0 - float64(i)/float64(n)
		ranked[i].RelevanceScore = &score
		ranked[i].RelevanceExplanation = "Ranked by search result position."
	}
	return ranked
}

func scoreOf(p domain.Product) float64 {
	if p.RelevanceScore == nil {
		return 0
	}
	return *p.RelevanceScore
}

// stripCodeFences removes an optional markdown code fence wrapper from
// model output.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
