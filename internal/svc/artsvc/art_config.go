package artsvc

import "time"

// ArtConfig holds configuration parameters for the artwork repositories.
type ArtConfig struct {
	// TrendingWindow is how far back GetTrendingArtworks looks by default.
	TrendingWindow time.Duration `env:"TRENDING_WINDOW" default:"168h"`

	// DefaultLimit applies to listings requested without a limit.
	DefaultLimit int `env:"DEFAULT_LIMIT" default:"20"`

	// MaxLimit caps the limit of any listing.
	MaxLimit int `env:"MAX_LIMIT" default:"100"`

	// ThumbnailWidth is the variant width used for artwork thumbnails.
	ThumbnailWidth int `env:"THUMBNAIL_WIDTH" default:"400"`

	// FetchConcurrency bounds parallel lookups such as favorite artworks.
	FetchConcurrency int `env:"FETCH_CONCURRENCY" default:"8"`
}

func (cfg ArtConfig) limit(requested int) int {
	switch {
	case requested <= 0:
		return cfg.DefaultLimit
	case cfg.MaxLimit > 0 && requested > cfg.MaxLimit:
		return cfg.MaxLimit
	default:
		return requested
	}
}
