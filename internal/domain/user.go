package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrUserAlreadyExists is returned when trying to register an email that is already taken.
	ErrUserAlreadyExists = fmt.Errorf("%w: user", ErrAlreadyExists)
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	// ErrInvalidEmail is returned for malformed email addresses.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email", ErrInvalidArgument)
	// ErrWeakPassword is returned when a password is shorter than MinPasswordLength.
	ErrWeakPassword = fmt.Errorf("%w: password too short", ErrInvalidArgument)
	// ErrInvalidDisplayName is returned for empty or overlong display names.
	ErrInvalidDisplayName = fmt.Errorf("%w: invalid display name", ErrInvalidArgument)
	// ErrInvalidSession is returned for unknown, expired or revoked refresh tokens.
	ErrInvalidSession = fmt.Errorf("%w: invalid session", ErrUnauthenticated)
	// ErrInvalidResetToken is returned for unknown, used or expired password reset tokens.
	ErrInvalidResetToken = fmt.Errorf("%w: invalid reset token", ErrInvalidArgument)
	// ErrTooManyAttempts is returned when sign-in attempts are rate limited.
	ErrTooManyAttempts = fmt.Errorf("%w: too many attempts", ErrUnavailable)
)

const (
	MinPasswordLength     = 6
	MaxDisplayNameLength  = 50
	MaxBioLength          = 500
	memberSinceDateLayout = "January 2006"
)

// Account is the credential record held by the auth service.
type Account struct {
	ID           string    // Unique identifier (UUID)
	Email        string    // Login email, lower-cased
	PasswordHash []byte    // bcrypt hash
	CreatedAt    time.Time // Account creation
}

// Session is a refresh token session of an account.
type Session struct {
	ID        string
	AccountID string
	TokenHash []byte
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still be used at now.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// PasswordReset is a single-use password reset token.
type PasswordReset struct {
	TokenHash []byte
	AccountID string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// User is the public profile of a registered user.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email,omitempty"`
	DisplayName     string    `json:"displayName"`
	Bio             string    `json:"bio"`
	ProfileImageURL string    `json:"profileImageUrl"`
	ArtworkCount    int64     `json:"artworkCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// VisibleTo returns the profile as seen by viewerID. The email address is
// only kept for the profile owner.
func (u User) VisibleTo(viewerID string) User {
	if viewerID == "" || viewerID != u.ID {
		u.Email = ""
	}

	return u
}

// UserPatch carries the editable profile fields; nil fields are left unchanged.
type UserPatch struct {
	DisplayName     *string `json:"displayName,omitempty"`
	Bio             *string `json:"bio,omitempty"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
}

// Apply returns a copy of u with the patch applied.
func (p UserPatch) Apply(u User) User {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}

	if p.Bio != nil {
		u.Bio = *p.Bio
	}

	if p.ProfileImageURL != nil {
		u.ProfileImageURL = *p.ProfileImageURL
	}

	return u
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare RFC 5322 address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	return nil
}

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("%w: minimum is %d characters", ErrWeakPassword, MinPasswordLength)
	}

	return nil
}

// ValidateDisplayName checks that name is non-blank and not overlong.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidDisplayName, name)
	}

	return nil
}

// Validate checks the profile fields.
func (u User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is empty", ErrInvalidArgument)
	}

	if err := ValidateEmail(u.Email); err != nil {
		return err
	}

	if err := ValidateDisplayName(u.DisplayName); err != nil {
		return err
	}

	if utf8.RuneCountInString(u.Bio) > MaxBioLength {
		return fmt.Errorf("%w: bio exceeds %d characters", ErrInvalidArgument, MaxBioLength)
	}

	return nil
}

// DisplayNameOrEmail returns the display name, falling back to the local
// part of the email address.
func (u User) DisplayNameOrEmail() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}

	local, _, _ := strings.Cut(u.Email, "@")

	return local
}

// Initials returns up to two upper-case initials of the display name.
func (u User) Initials() string {
	var initials []rune

	for _, word := range strings.Fields(u.DisplayNameOrEmail()) {
		r, _ := utf8.DecodeRuneInString(word)
		if r == utf8.RuneError {
			continue
		}

		initials = append(initials, unicode.ToUpper(r))
		if len(initials) == 2 {
			break
		}
	}

	return string(initials)
}

// MemberSince formats the registration date, e.g. "March 2024".
func (u User) MemberSince() string {
	if u.CreatedAt.IsZero() {
		return ""
	}

	return u.CreatedAt.UTC().Format(memberSinceDateLayout)
}
