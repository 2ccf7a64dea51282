package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrArtworkNotFound     = fmt.Errorf("%w: artwork", ErrNotFound)
	ErrNotArtworkOwner     = fmt.Errorf("%w: not the artwork owner", ErrForbidden)
	ErrInvalidArtworkTitle = fmt.Errorf("%w: invalid artwork title", ErrInvalidArgument)
	ErrInvalidCategory     = fmt.Errorf("%w: invalid category", ErrInvalidArgument)
)

const (
	MaxArtworkTitleLength       = 100
	MaxArtworkDescriptionLength = 2000
	MaxArtworkTags              = 10

	// ViewWeight is the weight of a view relative to a like in EngagementScore.
	ViewWeight = 0.1
)

// Categories lists the accepted artwork categories.
//
//nolint:gochecknoglobals
var Categories = []string{
	"Digital Art",
	"Painting",
	"Illustration",
	"Photography",
	"3D",
	"Sketch",
	"Abstract",
	"Other",
}

// Artwork is a published or private piece in a user's portfolio.
type Artwork struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"imageUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	MediaID      string    `json:"mediaId"`
	ArtistID     string    `json:"artistId"`
	ArtistName   string    `json:"artistName"`
	Category     string    `json:"category"`
	Tags         []string  `json:"tags"`
	Likes        int64     `json:"likes"`
	Views        int64     `json:"views"`
	IsPublic     bool      `json:"isPublic"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ArtworkPatch carries the mutable fields of an artwork; nil fields are left unchanged.
type ArtworkPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	IsPublic    *bool     `json:"isPublic,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ArtworkPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Tags == nil && p.IsPublic == nil
}

// Apply returns a copy of a with the patch applied.
func (p ArtworkPatch) Apply(a Artwork) Artwork {
	if p.Title != nil {
		a.Title = *p.Title
	}

	if p.Description != nil {
		a.Description = *p.Description
	}

	if p.Category != nil {
		a.Category = *p.Category
	}

	if p.Tags != nil {
		a.Tags = NormalizeTags(*p.Tags)
	}

	if p.IsPublic != nil {
		a.IsPublic = *p.IsPublic
	}

	return a
}

// IsValidCategory reports whether category is one of Categories.
func IsValidCategory(category string) bool {
	return slices.Contains(Categories, category)
}

// NormalizeTags lower-cases, trims and de-duplicates tags, dropping empty ones.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" || slices.Contains(out, tag) {
			continue
		}

		out = append(out, tag)
	}

	return out
}

// Validate checks the user-editable fields.
func (a Artwork) Validate() error {
	title := strings.TrimSpace(a.Title)
	if title == "" || utf8.RuneCountInString(title) > MaxArtworkTitleLength {
		return fmt.Errorf("%w: %q", ErrInvalidArtworkTitle, a.Title)
	}

	if utf8.RuneCountInString(a.Description) > MaxArtworkDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidArgument, MaxArtworkDescriptionLength)
	}

	if !IsValidCategory(a.Category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, a.Category)
	}

	if len(a.Tags) > MaxArtworkTags {
		return fmt.Errorf("%w: more than %d tags", ErrInvalidArgument, MaxArtworkTags)
	}

	return nil
}

// IsOwnedBy reports whether userID is the artist of a.
func (a Artwork) IsOwnedBy(userID string) bool {
	return userID != "" && a.ArtistID == userID
}

// VisibleTo reports whether userID may see a.
func (a Artwork) VisibleTo(userID string) bool {
	return a.IsPublic || a.IsOwnedBy(userID)
}

// EngagementScore weighs likes and views for trending.
func (a Artwork) EngagementScore() float64 {
	return float64(a.Likes) + ViewWeight*float64(a.Views)
}

// HasTag reports whether a carries tag, ignoring case.
func (a Artwork) HasTag(tag string) bool {
	tag = strings.ToLower(tag)

	return slices.ContainsFunc(a.Tags, func(t string) bool { return strings.ToLower(t) == tag })
}

// FormattedLikes returns the compact like count, e.g. "1.2K".
func (a Artwork) FormattedLikes() string {
	return FormatCount(a.Likes)
}

// FormattedViews returns the compact view count, e.g. "3.4M".
func (a Artwork) FormattedViews() string {
	return FormatCount(a.Views)
}

// FormatCount renders n in compact form with one decimal for thousands and millions.
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return trimDecimal(float64(n)/1_000_000) + "M"
	case n >= 1_000:
		return trimDecimal(float64(n)/1_000) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

func trimDecimal(f float64) string {
	s := strconv.FormatFloat(float64(int64(f*10))/10, 'f', 1, 64)

	return strings.TrimSuffix(s, ".0")
}
