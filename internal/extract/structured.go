package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Structured reads schema.org Recipe data from JSON-LD blocks, falling back
// to microdata.
type Structured struct{}

// NewStructured returns the structured-data tier.
func NewStructured() *Structured {
	return &Structured{}
}

// Tier implements Extractor.
func (*Structured) Tier() recipe.Tier { return recipe.TierStructured }

// TryExtract implements Extractor.
func (*Structured) TryExtract(_ context.Context, page recipe.CrawlResult, _ recipe.DomainVerdict) (recipe.CandidateRecipe, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return recipe.CandidateRecipe{}, fmt.Errorf("parse html: %w", err)
	}
	cand, ok := fromJSONLD(doc)
	if !ok {
		cand, ok = fromMicrodata(doc)
	}
	if !ok || !hasCore(cand) {
		return recipe.CandidateRecipe{}, recipe.ErrNoRecipe
	}
	cand.SourceURL = page.FinalURL
	cand.Confidence = scoreFields(&cand)
	return cand, nil
}

func fromJSONLD(doc *goquery.Document) (recipe.CandidateRecipe, bool) {
	var found recipe.CandidateRecipe
	ok := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return true
		}
		if node := findRecipeNode(data); node != nil {
			found = candidateFromLD(node)
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// findRecipeNode walks arrays, @graph containers and nested objects for the
// first node typed Recipe.
func findRecipeNode(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if found := findRecipeNode(item); found != nil {
				return found
			}
		}
	case map[string]any:
		if isRecipeType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findRecipeNode(graph)
		}
		if main, ok := node["mainEntity"]; ok {
			return findRecipeNode(main)
		}
	}
	return nil
}

func isRecipeType(v any) bool {
	for _, t := range stringsOf(v) {
		if strings.EqualFold(t, "Recipe") || strings.HasSuffix(strings.ToLower(t), "/recipe") {
			return true
		}
	}
	return false
}

func candidateFromLD(node map[string]any) recipe.CandidateRecipe {
	c := recipe.CandidateRecipe{
		Title:       firstString(node["name"]),
		Description: firstString(node["description"]),
		PrepTime:    parseISODuration(firstString(node["prepTime"])),
		CookTime:    parseISODuration(firstString(node["cookTime"])),
		TotalTime:   parseISODuration(firstString(node["totalTime"])),
		Servings:    yieldOf(node["recipeYield"]),
		Cuisine:     firstString(node["recipeCuisine"]),
		Tags:        keywordsOf(node["keywords"], node["recipeCategory"]),
	}
	ingredients := node["recipeIngredient"]
	if ingredients == nil {
		ingredients = node["ingredients"]
	}
	for _, line := range stringsOf(ingredients) {
		if line = strings.TrimSpace(line); line != "" {
			c.Ingredients = append(c.Ingredients, recipe.Ingredient{Raw: line})
		}
	}
	c.Instructions = instructionsOf(node["recipeInstructions"])
	return c
}

// instructionsOf flattens text, HowToStep and HowToSection shapes.
func instructionsOf(v any) []string {
	switch node := v.(type) {
	case string:
		if s := strings.TrimSpace(node); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range node {
			out = append(out, instructionsOf(item)...)
		}
		return out
	case map[string]any:
		if items, ok := node["itemListElement"]; ok {
			return instructionsOf(items)
		}
		if text := firstString(node["text"]); text != "" {
			return []string{text}
		}
		if name := firstString(node["name"]); name != "" {
			return []string{name}
		}
	}
	return nil
}

func yieldOf(v any) int {
	switch y := v.(type) {
	case float64:
		if y > 0 {
			return int(y)
		}
	case string:
		return parseServings(y)
	case []any:
		for _, item := range y {
			if n := yieldOf(item); n > 0 {
				return n
			}
		}
	}
	return 0
}

func keywordsOf(values ...any) []string {
	var out []string
	for _, v := range values {
		for _, s := range stringsOf(v) {
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func stringsOf(v any) []string {
	switch node := v.(type) {
	case string:
		return []string{node}
	case []any:
		out := make([]string, 0, len(node))
		for _, item := range node {
			out = append(out, stringsOf(item)...)
		}
		return out
	case map[string]any:
		if s := firstString(node["name"]); s != "" {
			return []string{s}
		}
		if s := firstString(node["text"]); s != "" {
			return []string{s}
		}
	}
	return nil
}

func firstString(v any) string {
	for _, s := range stringsOf(v) {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func fromMicrodata(doc *goquery.Document) (recipe.CandidateRecipe, bool) {
	scope := doc.Find(`[itemscope][itemtype*="schema.org/Recipe"]`).First()
	if scope.Length() == 0 {
		return recipe.CandidateRecipe{}, false
	}
	c := recipe.CandidateRecipe{
		Title:       itemprop(scope, "name"),
		Description: itemprop(scope, "description"),
		PrepTime:    parseHumanDuration(itemprop(scope, "prepTime")),
		CookTime:    parseHumanDuration(itemprop(scope, "cookTime")),
		TotalTime:   parseHumanDuration(itemprop(scope, "totalTime")),
		Servings:    parseServings(itemprop(scope, "recipeYield")),
		Cuisine:     itemprop(scope, "recipeCuisine"),
	}
	scope.Find(`[itemprop="recipeIngredient"], [itemprop="ingredients"]`).Each(func(_ int, s *goquery.Selection) {
		if line := propValue(s); line != "" {
			c.Ingredients = append(c.Ingredients, recipe.Ingredient{Raw: line})
		}
	})
	scope.Find(`[itemprop="recipeInstructions"]`).Each(func(_ int, s *goquery.Selection) {
		if s.Find(`[itemprop="text"]`).Length() > 0 {
			s.Find(`[itemprop="text"]`).Each(func(_ int, step *goquery.Selection) {
				if text := propValue(step); text != "" {
					c.Instructions = append(c.Instructions, text)
				}
			})
			return
		}
		if html, err := s.Html(); err == nil && strings.TrimSpace(html) != "" {
			c.Instructions = append(c.Instructions, html)
		}
	})
	return c, true
}

func itemprop(scope *goquery.Selection, name string) string {
	return propValue(scope.Find(`[itemprop="` + name + `"]`).First())
}

// propValue prefers machine-readable attributes over element text.
func propValue(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"content", "datetime"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(s.Text())
}
