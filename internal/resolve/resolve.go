// Package resolve turns a buyer's reference to an item, which may be an
// exact id or a fuzzy name from conversation, into a typed resolution. The
// caller decides what to do with an ambiguous result; this package never
// guesses on the buyer's behalf.
package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/validation"
)

// Kind classifies a resolution.
type Kind string

const (
	// KindResolved means exactly one item matched.
	KindResolved Kind = "resolved"
	// KindAmbiguous means several items matched; Candidates lists them and
	// the buyer must pick.
	KindAmbiguous Kind = "ambiguous"
	// KindNotFound means nothing matched.
	KindNotFound Kind = "not_found"
)

// Result is a typed resolution outcome.
type Result struct {
	Kind       Kind            `json:"kind"`
	Item       *catalog.Item   `json:"item,omitempty"`
	Candidates []*catalog.Item `json:"candidates,omitempty"`
}

// Searcher finds candidate items for a free-form reference.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]*catalog.Item, error)
}

// maxCandidates bounds how many options an ambiguous result offers the
// buyer. More than a handful stops being a useful clarifying question.
const maxCandidates = 5

// Resolver resolves item references against the catalog.
type Resolver struct {
	catalog catalog.Store
	search  Searcher
}

// NewResolver creates a resolver. search may be nil, in which case only
// exact ids resolve.
func NewResolver(cat catalog.Store, search Searcher) *Resolver {
	return &Resolver{catalog: cat, search: search}
}

// Resolve maps ref to at most one catalog item. Placeholder-looking ids
// ("item_id", "string") are treated as fuzzy text, never as real ids.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Result, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return &Result{Kind: KindNotFound}, nil
	}

	if validation.IsValidID(ref) && !validation.IsPlaceholderID(ref) {
		item, err := r.catalog.Get(ctx, ref)
		if err == nil {
			return &Result{Kind: KindResolved, Item: item}, nil
		}
		if !errors.Is(err, catalog.ErrItemNotFound) {
			return nil, err
		}
		// Fall through to search: the ref may be a one-word name that
		// merely looks like an id.
	}

	if r.search == nil {
		return &Result{Kind: KindNotFound}, nil
	}

	candidates, err := r.search.Search(ctx, ref, maxCandidates+1)
	if err != nil {
		return nil, err
	}
	switch len(candidates) {
	case 0:
		return &Result{Kind: KindNotFound}, nil
	case 1:
		return &Result{Kind: KindResolved, Item: candidates[0]}, nil
	default:
		if len(candidates) > maxCandidates {
			candidates = candidates[:maxCandidates]
		}
		return &Result{Kind: KindAmbiguous, Candidates: candidates}, nil
	}
}

// CatalogSearcher searches available items by case-insensitive name match.
type CatalogSearcher struct {
	catalog catalog.Store
}

// NewCatalogSearcher creates a searcher over the catalog.
func NewCatalogSearcher(cat catalog.Store) *CatalogSearcher {
	return &CatalogSearcher{catalog: cat}
}

func (s *CatalogSearcher) Search(ctx context.Context, query string, limit int) ([]*catalog.Item, error) {
	// The catalog is small (a personal marketplace, not a warehouse), so a
	// scan over available items is fine.
	items, err := s.catalog.ListAvailable(ctx, 0)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []*catalog.Item
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), q) {
			out = append(out, item)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

var _ Searcher = (*CatalogSearcher)(nil)
