package domain

import (
	"fmt"
	"time"
)

var ErrFavoriteNotFound = fmt.Errorf("%w: favorite", ErrNotFound)

// Favorite marks an artwork as liked by a user.
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ArtworkID string    `json:"artworkId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FavoriteID returns the deterministic id of the favorite of userID on artworkID.
func FavoriteID(userID, artworkID string) string {
	return userID + "_" + artworkID
}

// NewFavorite builds a favorite created at now.
func NewFavorite(userID, artworkID string, now time.Time) Favorite {
	return Favorite{
		ID:        FavoriteID(userID, artworkID),
		UserID:    userID,
		ArtworkID: artworkID,
		CreatedAt: now,
	}
}
