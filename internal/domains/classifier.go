package domains

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Config controls classification of unregistered domains.
type Config struct {
	RegistryFile   string
	UnknownWeight  float64
	UnknownCeiling float64
}

// Classifier maps URLs to domain verdicts.
type Classifier struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.RWMutex
	index map[string]Entry
}

// NewClassifier builds a classifier from the builtin registry plus the
// optional registry file.
func NewClassifier(cfg Config, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UnknownWeight <= 0 {
		cfg.UnknownWeight = 0.6
	}
	if cfg.UnknownCeiling <= 0 {
		cfg.UnknownCeiling = 0.85
	}
	c := &Classifier{cfg: cfg, logger: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds the registry and swaps it in atomically. On error the
// previous registry stays active.
func (c *Classifier) Reload() error {
	sets := [][]Entry{Builtin}
	if c.cfg.RegistryFile != "" {
		fromFile, err := LoadFile(c.cfg.RegistryFile)
		if err != nil {
			return fmt.Errorf("reload registry: %w", err)
		}
		sets = append(sets, fromFile)
	}
	index := buildIndex(sets...)
	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
	c.logger.Info("domain registry loaded",
		zap.Int("entries", len(index)),
		zap.String("file", c.cfg.RegistryFile),
	)
	return nil
}

// Replace swaps the registry for the given entries on top of the builtins.
func (c *Classifier) Replace(entries []Entry) {
	index := buildIndex(Builtin, entries)
	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
}

// Classify returns the verdict for rawURL. Blocked domains yield the verdict
// together with a DomainNotSupported error.
func (c *Classifier) Classify(rawURL string) (recipe.DomainVerdict, error) {
	canonical, err := recipe.CanonicalURL(rawURL)
	if err != nil {
		return recipe.DomainVerdict{}, recipe.NewError(recipe.CodeFetchHTTPError, "the link is not a valid web address", err)
	}
	host, err := recipe.Hostname(canonical)
	if err != nil {
		return recipe.DomainVerdict{}, recipe.NewError(recipe.CodeFetchHTTPError, "the link is not a valid web address", err)
	}

	entry, ok := c.lookup(host)
	if !ok {
		return recipe.DomainVerdict{
			URL:            canonical,
			Domain:         host,
			Classification: recipe.DomainUnknown,
			Weight:         c.cfg.UnknownWeight,
			Ceiling:        c.cfg.UnknownCeiling,
		}, nil
	}
	if entry.Blocked {
		v := recipe.DomainVerdict{
			URL:            canonical,
			Domain:         entry.Name,
			Classification: recipe.DomainBlocked,
		}
		return v, recipe.NewError(recipe.CodeDomainNotSupported,
			fmt.Sprintf("recipes from %s cannot be imported", entry.Name), nil)
	}
	return recipe.DomainVerdict{
		URL:            canonical,
		Domain:         entry.Name,
		Classification: recipe.DomainWhitelisted,
		Weight:         entry.Weight,
		Ceiling:        entry.Ceiling,
		RequiresRender: entry.RequiresRender,
		Adapter:        entry.Adapter,
	}, nil
}

// lookup walks from the full host up to its registrable parents so that
// subdomains match their registered parent.
func (c *Classifier) lookup(host string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for candidate := host; candidate != ""; {
		if e, ok := c.index[candidate]; ok {
			return e, true
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
		if !strings.Contains(candidate, ".") {
			break
		}
	}
	return Entry{}, false
}

// Size returns the number of registered domains.
func (c *Classifier) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}
