package artsvc

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/mkrupp/inkspira/internal/domain"
)

// minSearchTermLength drops single letters from search terms.
const minSearchTermLength = 2

// Search weights per matched term.
const (
	titleWeight       = 3
	tagWeight         = 2
	categoryWeight    = 2
	artistNameWeight  = 1
	descriptionWeight = 1
)

// searchTerms lower-cases query, splits it on whitespace and drops terms
// shorter than minSearchTermLength.
func searchTerms(query string) []string {
	terms := strings.Fields(strings.ToLower(query))

	return slices.DeleteFunc(terms, func(term string) bool {
		return len([]rune(term)) < minSearchTermLength
	})
}

// searchScore sums the weights of every field each term occurs in.
func searchScore(artwork domain.Artwork, terms []string) int {
	title := strings.ToLower(artwork.Title)
	category := strings.ToLower(artwork.Category)
	artist := strings.ToLower(artwork.ArtistName)
	description := strings.ToLower(artwork.Description)

	var score int

	for _, term := range terms {
		if strings.Contains(title, term) {
			score += titleWeight
		}

		if slices.ContainsFunc(artwork.Tags, func(tag string) bool {
			return strings.Contains(strings.ToLower(tag), term)
		}) {
			score += tagWeight
		}

		if strings.Contains(category, term) {
			score += categoryWeight
		}

		if strings.Contains(artist, term) {
			score += artistNameWeight
		}

		if strings.Contains(description, term) {
			score += descriptionWeight
		}
	}

	return score
}

// rankBySearch keeps artworks matching terms, best score first, newest first
// among equal scores.
func rankBySearch(artworks []domain.Artwork, terms []string) []domain.Artwork {
	type scored struct {
		artwork domain.Artwork
		score   int
	}

	matches := make([]scored, 0, len(artworks))

	for _, artwork := range artworks {
		if score := searchScore(artwork, terms); score > 0 {
			matches = append(matches, scored{artwork: artwork, score: score})
		}
	}

	slices.SortStableFunc(matches, func(a, b scored) int {
		return cmp.Or(
			cmp.Compare(b.score, a.score),
			b.artwork.CreatedAt.Compare(a.artwork.CreatedAt),
		)
	})

	out := make([]domain.Artwork, len(matches))
	for i, match := range matches {
		out[i] = match.artwork
	}

	return out
}

// rankByTrending keeps artworks created at or after since and orders them by
// engagement score, newest first among equal scores.
func rankByTrending(artworks []domain.Artwork, since time.Time) []domain.Artwork {
	out := slices.DeleteFunc(slices.Clone(artworks), func(a domain.Artwork) bool {
		return a.CreatedAt.Before(since)
	})

	slices.SortStableFunc(out, func(a, b domain.Artwork) int {
		return cmp.Or(
			cmp.Compare(b.EngagementScore(), a.EngagementScore()),
			b.CreatedAt.Compare(a.CreatedAt),
		)
	})

	return out
}

// newestFirst sorts artworks by creation time, most recent first.
func newestFirst(artworks []domain.Artwork) []domain.Artwork {
	slices.SortStableFunc(artworks, func(a, b domain.Artwork) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return artworks
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}

	return items
}
