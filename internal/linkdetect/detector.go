// Package linkdetect finds recipe links and link-in-bio hints in post text.
package linkdetect

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Confidence values assigned to matches.
const (
	ExplicitConfidence = 1.0
	PhraseConfidence   = 0.5

	bareDomainPenalty = 0.1
	shortenerPenalty  = 0.2
	malformedPenalty  = 0.3
)

var (
	schemeURLPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"'` + "`" + `“”‘’]+`)
	bareURLPattern   = regexp.MustCompile(
		`(?i)\b(?:www\.)?[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)*\.` +
			`(?:com|net|org|co|io|me|ly|uk|ca|au|de|fr|it|es|nz|in|us|ee|recipes|blog|kitchen|cooking|food)\b` +
			`(?:/[^\s<>"'` + "`" + `“”‘’]*)?`,
	)
)

// DefaultPhrases are common link-in-bio cues, already normalized.
var DefaultPhrases = []string{
	"link in bio",
	"link in my bio",
	"links in bio",
	"recipe in bio",
	"recipe in my bio",
	"full recipe in bio",
	"full recipe in my bio",
	"recipe linked in bio",
	"recipe linked in my bio",
	"link in profile",
	"link in my profile",
	"recipe on my blog",
	"check my bio",
	"tap the link in bio",
	"link on my profile",
}

// DefaultShorteners are URL shortener and link-aggregator hosts.
var DefaultShorteners = []string{
	"bit.ly", "tinyurl.com", "t.co", "goo.gl", "ow.ly", "buff.ly", "is.gd",
	"tiny.cc", "rebrand.ly", "shorturl.at", "linktr.ee", "lnk.bio", "bio.link",
}

// Detector scans text for candidate recipe links.
type Detector struct {
	phrases    []string
	shorteners map[string]struct{}
}

// Option customizes a Detector.
type Option func(*Detector)

// WithPhrases replaces the phrase list.
func WithPhrases(phrases []string) Option {
	return func(d *Detector) {
		d.phrases = d.phrases[:0]
		for _, p := range phrases {
			if n := normalizeText(p); n != "" {
				d.phrases = append(d.phrases, n)
			}
		}
	}
}

// New builds a Detector with the default phrase and shortener lists.
func New(opts ...Option) *Detector {
	d := &Detector{
		phrases:    append([]string(nil), DefaultPhrases...),
		shorteners: make(map[string]struct{}, len(DefaultShorteners)),
	}
	for _, s := range DefaultShorteners {
		d.shorteners[s] = struct{}{}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns every candidate link in text ranked by confidence, ties by position.
// An empty result means no link and no link-in-bio phrase was found.
func (d *Detector) Detect(text string) []recipe.DetectedLink {
	links := d.detectURLs(text)
	links = append(links, d.detectPhrases(text)...)
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Confidence != links[j].Confidence {
			return links[i].Confidence > links[j].Confidence
		}
		return links[i].Position < links[j].Position
	})
	return links
}

// BestURL returns the highest ranked explicit URL.
func BestURL(links []recipe.DetectedLink) (recipe.DetectedLink, bool) {
	for _, l := range links {
		if l.Kind == recipe.LinkExplicitURL {
			return l, true
		}
	}
	return recipe.DetectedLink{}, false
}

// HasBioPhrase reports whether any match is a link-in-bio phrase.
func HasBioPhrase(links []recipe.DetectedLink) bool {
	for _, l := range links {
		if l.Kind == recipe.LinkBioPhrase {
			return true
		}
	}
	return false
}

type span struct{ start, end int }

func (d *Detector) detectURLs(text string) []recipe.DetectedLink {
	var (
		links []recipe.DetectedLink
		taken []span
		seen  = map[string]struct{}{}
	)
	add := func(start, end int, bare bool) {
		taken = append(taken, span{start, end})
		raw := text[start:end]
		trimmed, truncated := trimTrailing(raw)
		if trimmed == "" {
			return
		}
		canonical, err := recipe.CanonicalURL(trimmed)
		if err != nil {
			return
		}
		if _, dup := seen[canonical]; dup {
			return
		}
		seen[canonical] = struct{}{}

		conf := ExplicitConfidence
		if bare {
			conf -= bareDomainPenalty
		}
		if d.isShortener(canonical) {
			conf -= shortenerPenalty
		}
		if truncated {
			conf -= malformedPenalty
		}
		links = append(links, recipe.DetectedLink{
			Span:       trimmed,
			URL:        canonical,
			Confidence: clamp01(conf),
			Kind:       recipe.LinkExplicitURL,
			Position:   start,
		})
	}

	for _, loc := range schemeURLPattern.FindAllStringIndex(text, -1) {
		add(loc[0], loc[1], false)
	}
	for _, loc := range bareURLPattern.FindAllStringIndex(text, -1) {
		if overlaps(taken, loc[0], loc[1]) {
			continue
		}
		if loc[0] > 0 && (text[loc[0]-1] == '@' || text[loc[0]-1] == '/') {
			continue
		}
		add(loc[0], loc[1], true)
	}
	return links
}

func (d *Detector) detectPhrases(text string) []recipe.DetectedLink {
	normalized := normalizeText(text)
	if normalized == "" {
		return nil
	}
	padded := " " + normalized + " "
	best := -1
	var matched string
	for _, phrase := range d.phrases {
		idx := strings.Index(padded, " "+phrase+" ")
		if idx < 0 {
			continue
		}
		if best == -1 || idx < best {
			best = idx
			matched = phrase
		}
	}
	if best == -1 {
		return nil
	}
	return []recipe.DetectedLink{{
		Span:       matched,
		Confidence: PhraseConfidence,
		Kind:       recipe.LinkBioPhrase,
		Position:   best,
	}}
}

func (d *Detector) isShortener(canonical string) bool {
	host, err := recipe.Hostname(canonical)
	if err != nil {
		return false
	}
	_, ok := d.shorteners[host]
	return ok
}

// trimTrailing strips sentence punctuation glued to a URL and reports
// whether the URL looks truncated.
func trimTrailing(raw string) (string, bool) {
	truncated := false
	for {
		switch {
		case strings.HasSuffix(raw, "…"):
			raw = strings.TrimSuffix(raw, "…")
			truncated = true
		case strings.HasSuffix(raw, "..."):
			raw = strings.TrimSuffix(raw, "...")
			truncated = true
		case raw != "" && strings.ContainsRune(".,;:!?)]}'\"", rune(raw[len(raw)-1])):
			raw = raw[:len(raw)-1]
		default:
			return raw, truncated
		}
	}
}

// normalizeText lowercases and collapses every non letter/digit run into a
// single space so emoji, hashtags, and punctuation do not break phrases.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
