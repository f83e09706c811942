package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	repo "github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

const (
	maxCandidates          = 40
	defaultRecommendations = 4
	maxRecommendations     = 10

	SourceAI    = "ai"
	SourceRules = "rules"
)

type RecommendInput struct {
	Gender         string   `json:"gender,omitempty"`
	Occasion       string   `json:"occasion,omitempty"`
	Season         string   `json:"season,omitempty"`
	PreferredNotes []string `json:"preferred_notes,omitempty"`
	BudgetMax      float64  `json:"budget_max,omitempty"`
	Limit          int      `json:"limit"`
}

type Recommendation struct {
	Product entity.Product `json:"product"`
	Reason  string         `json:"reason"`
}

type RecommendationResult struct {
	Source string           `json:"source"`
	Items  []Recommendation `json:"items"`
}

type RecommendationService struct {
	products repo.ProductRepository
	ai       TextGenerator
	cache    ResultCache
	logger   *logrus.Logger
}

// NewRecommendationService builds the service. ai and resultCache may be nil.
func NewRecommendationService(products repo.ProductRepository, ai TextGenerator, resultCache ResultCache, logger *logrus.Logger) *RecommendationService {
	return &RecommendationService{products: products, ai: ai, cache: resultCache, logger: logger}
}

func (in RecommendInput) normalize() (RecommendInput, error) {
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.Occasion = strings.ToLower(strings.TrimSpace(in.Occasion))
	in.Season = strings.ToLower(strings.TrimSpace(in.Season))
	in.PreferredNotes = helpers.NormalizeTerms(in.PreferredNotes)
	if in.Limit == 0 {
		in.Limit = defaultRecommendations
	}
	details := map[string]string{}
	if in.Limit < 1 || in.Limit > maxRecommendations {
		details["limit"] = fmt.Sprintf("must be between 1 and %d", maxRecommendations)
	}
	switch in.Gender {
	case "", entity.GenderMen, entity.GenderWomen, entity.GenderUnisex:
	default:
		details["gender"] = "must be one of: men, women, unisex"
	}
	if in.BudgetMax < 0 {
		details["budget_max"] = "must not be negative"
	}
	if len(details) > 0 {
		return in, apperror.Validation(details)
	}
	return in, nil
}

// Recommend picks products for the given preferences, asking the model when
// one is configured and scoring by rules otherwise.
func (s *RecommendationService) Recommend(ctx context.Context, in RecommendInput) (*RecommendationResult, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	key := cache.HashKey(in)
	if s.cache != nil {
		var cached RecommendationResult
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	candidates, err := s.candidates(ctx, in)
	if err != nil {
		return nil, err
	}

	var res *RecommendationResult
	if s.ai != nil && len(candidates) > 0 {
		items, err := s.askModel(ctx, in, candidates)
		if err != nil {
			s.logger.WithError(err).Warn("model recommendations failed, using rules")
		} else if len(items) > 0 {
			res = &RecommendationResult{Source: SourceAI, Items: items}
		}
	}
	if res == nil {
		res = &RecommendationResult{Source: SourceRules, Items: scoreByRules(in, candidates)}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res); err != nil {
			s.logger.WithError(err).Debug("recommendation cache set failed")
		}
	}
	return res, nil
}

// candidates returns active in-stock products within budget, featured first.
func (s *RecommendationService) candidates(ctx context.Context, in RecommendInput) ([]entity.Product, error) {
	page, err := s.products.List(ctx, entity.ProductFilter{
		ListQuery:     entity.ListQuery{Limit: maxCandidates, Sort: "rating", Order: "desc"},
		Gender:        in.Gender,
		IncludeUnisex: true,
		MaxPrice:      in.BudgetMax,
		InStock:       true,
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	out := page.Data
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsFeatured && !out[j].IsFeatured
	})
	return out, nil
}

type promptProduct struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Brand         string                `json:"brand,omitempty"`
	Gender        string                `json:"gender"`
	Concentration string                `json:"concentration,omitempty"`
	Price         float64               `json:"price"`
	Notes         entity.FragranceNotes `json:"notes"`
	Tags          []string              `json:"tags,omitempty"`
	Rating        float64               `json:"rating"`
}

type modelAnswer struct {
	Recommendations []struct {
		ProductID string `json:"product_id"`
		Reason    string `json:"reason"`
	} `json:"recommendations"`
}

func buildPrompt(in RecommendInput, candidates []entity.Product) (string, error) {
	list := make([]promptProduct, 0, len(candidates))
	for _, p := range candidates {
		pp := promptProduct{
			ID:            p.ID.Hex(),
			Name:          p.Name,
			Gender:        p.Gender,
			Concentration: p.Concentration,
			Price:         p.EffectivePrice(),
			Notes:         p.Notes,
			Tags:          p.Tags,
			Rating:        p.Rating,
		}
		if p.Brand != nil {
			pp.Brand = p.Brand.Name
		}
		list = append(list, pp)
	}
	prefs, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	products, err := json.Marshal(list)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are a fragrance consultant for an online perfume store.\n")
	fmt.Fprintf(&b, "Pick at most %d perfumes from the catalog below that best fit the customer's preferences.\n", in.Limit)
	b.WriteString("Only use product ids that appear in the catalog. Give each pick a one sentence reason addressed to the customer.\n")
	b.WriteString(`Reply with JSON only, shaped as {"recommendations":[{"product_id":"...","reason":"..."}]}.` + "\n\n")
	b.WriteString("Preferences: ")
	b.Write(prefs)
	b.WriteString("\nCatalog: ")
	b.Write(products)
	return b.String(), nil
}

func (s *RecommendationService) askModel(ctx context.Context, in RecommendInput, candidates []entity.Product) ([]Recommendation, error) {
	prompt, err := buildPrompt(in, candidates)
	if err != nil {
		return nil, err
	}
	raw, err := s.ai.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseModelAnswer(raw, candidates, in.Limit)
}

// parseModelAnswer keeps known, distinct product ids in the model's order, capped at limit.
func parseModelAnswer(raw string, candidates []entity.Product, limit int) ([]Recommendation, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var ans modelAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &ans); err != nil {
		return nil, fmt.Errorf("decode model answer: %w", err)
	}

	byID := make(map[string]entity.Product, len(candidates))
	for _, p := range candidates {
		byID[p.ID.Hex()] = p
	}
	seen := map[string]bool{}
	out := make([]Recommendation, 0, limit)
	for _, r := range ans.Recommendations {
		id := strings.TrimSpace(r.ProductID)
		p, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		reason := strings.TrimSpace(r.Reason)
		if reason == "" {
			reason = "Picked for your preferences"
		}
		out = append(out, Recommendation{Product: p, Reason: reason})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type scored struct {
	product entity.Product
	score   float64
	matched []string
}

// scoreByRules ranks candidates: 3 per shared note, 2 each for occasion and
// season tags, 1 for featured, plus rating/5. Lower price breaks ties.
func scoreByRules(in RecommendInput, candidates []entity.Product) []Recommendation {
	want := make(map[string]bool, len(in.PreferredNotes))
	for _, n := range in.PreferredNotes {
		want[n] = true
	}

	list := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		sc := scored{product: p}
		seen := map[string]bool{}
		for _, n := range p.Notes.All() {
			n = strings.ToLower(n)
			if want[n] && !seen[n] {
				seen[n] = true
				sc.matched = append(sc.matched, n)
			}
		}
		sc.score = 3 * float64(len(sc.matched))
		if in.Occasion != "" && hasTag(p.Tags, in.Occasion) {
			sc.score += 2
		}
		if in.Season != "" && hasTag(p.Tags, in.Season) {
			sc.score += 2
		}
		if p.IsFeatured {
			sc.score++
		}
		sc.score += p.Rating / 5
		list = append(list, sc)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].product.EffectivePrice() < list[j].product.EffectivePrice()
	})

	limit := in.Limit
	if limit > len(list) {
		limit = len(list)
	}
	out := make([]Recommendation, 0, limit)
	for _, sc := range list[:limit] {
		out = append(out, Recommendation{Product: sc.product, Reason: ruleReason(in, sc)})
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func ruleReason(in RecommendInput, sc scored) string {
	var parts []string
	if len(sc.matched) > 0 {
		parts = append(parts, "features your preferred notes "+strings.Join(sc.matched, ", "))
	}
	if in.Occasion != "" && hasTag(sc.product.Tags, in.Occasion) {
		parts = append(parts, "suits "+in.Occasion+" wear")
	}
	if in.Season != "" && hasTag(sc.product.Tags, in.Season) {
		parts = append(parts, "works well in "+in.Season)
	}
	if len(parts) == 0 {
		if sc.product.IsFeatured {
			return "A featured favourite from our collection"
		}
		return "A highly rated pick from our collection"
	}
	reason := strings.Join(parts, " and ")
	return strings.ToUpper(reason[:1]) + reason[1:]
}
