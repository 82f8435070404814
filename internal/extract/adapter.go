package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// adapterDiscount reflects that selectors drift as sites are redesigned.
const adapterDiscount = 0.9

// Adapter applies the per-domain CSS selectors carried by the verdict.
type Adapter struct{}

// NewAdapter returns the site-adapter tier.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Tier implements Extractor.
func (*Adapter) Tier() recipe.Tier { return recipe.TierAdapter }

// TryExtract implements Extractor.
func (*Adapter) TryExtract(_ context.Context, page recipe.CrawlResult, verdict recipe.DomainVerdict) (recipe.CandidateRecipe, error) {
	rules := verdict.Adapter
	if rules == nil || rules.Ingredients == "" || rules.Instructions == "" {
		return recipe.CandidateRecipe{}, recipe.ErrNoRecipe
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return recipe.CandidateRecipe{}, fmt.Errorf("parse html: %w", err)
	}
	c := recipe.CandidateRecipe{
		Title:       firstText(doc, rules.Title),
		Description: firstText(doc, rules.Description),
		PrepTime:    parseHumanDuration(firstText(doc, rules.PrepTime)),
		CookTime:    parseHumanDuration(firstText(doc, rules.CookTime)),
		TotalTime:   parseHumanDuration(firstText(doc, rules.TotalTime)),
		Servings:    parseServings(firstText(doc, rules.Servings)),
		SourceURL:   page.FinalURL,
	}
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	for _, line := range allText(doc, rules.Ingredients) {
		c.Ingredients = append(c.Ingredients, recipe.Ingredient{Raw: line})
	}
	c.Instructions = allText(doc, rules.Instructions)
	if !hasCore(c) {
		return recipe.CandidateRecipe{}, recipe.ErrNoRecipe
	}
	c.Confidence = scoreFields(&c) * adapterDiscount
	return c, nil
}

func firstText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	s := doc.Find(selector).First()
	if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.Text())
}

func allText(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			out = append(out, text)
		}
	})
	return out
}
