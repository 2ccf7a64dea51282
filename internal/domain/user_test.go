package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mkrupp/inkspira/internal/domain"
)

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	for email, wantErr := range map[string]bool{
		"ada@example.com":     false,
		"ada":                 true,
		"":                    true,
		"Ada <ada@example.com>": true,
	} {
		if err := domain.ValidateEmail(email); (err != nil) != wantErr {
			t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", email, err, wantErr)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	if err := domain.ValidatePassword("12345"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Errorf("ValidatePassword(short) error = %v", err)
	}

	if err := domain.ValidatePassword("123456"); err != nil {
		t.Errorf("ValidatePassword(ok) error = %v", err)
	}
}

func TestUser_Helpers(t *testing.T) {
	t.Parallel()

	user := domain.User{
		ID:          "u1",
		Email:       "ada@example.com",
		DisplayName: "ada lovelace byron",
		CreatedAt:   time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC),
	}

	if got := user.Initials(); got != "AL" {
		t.Errorf("Initials() = %q, want %q", got, "AL")
	}

	if got := user.MemberSince(); got != "March 2024" {
		t.Errorf("MemberSince() = %q, want %q", got, "March 2024")
	}

	if err := user.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	anon := domain.User{Email: "grace@example.com"}
	if got := anon.DisplayNameOrEmail(); got != "grace" {
		t.Errorf("DisplayNameOrEmail() = %q, want %q", got, "grace")
	}

	if err := anon.Validate(); err == nil {
		t.Error("Validate() accepted a user without id")
	}
}

func TestSession_Active(t *testing.T) {
	t.Parallel()

	now := time.Now()
	revoked := now.Add(-time.Minute)

	if !(domain.Session{ExpiresAt: now.Add(time.Hour)}).Active(now) {
		t.Error("Active() = false for live session")
	}

	if (domain.Session{ExpiresAt: now.Add(-time.Hour)}).Active(now) {
		t.Error("Active() = true for expired session")
	}

	if (domain.Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}).Active(now) {
		t.Error("Active() = true for revoked session")
	}
}

func TestUser_VisibleTo(t *testing.T) {
	t.Parallel()

	//nolint:exhaustruct
	user := domain.User{ID: "u1", Email: "ada@example.com", DisplayName: "Ada"}

	tests := []struct {
		viewer string
		want   string
	}{
		{viewer: "", want: ""},
		{viewer: "u2", want: ""},
		{viewer: "u1", want: "ada@example.com"},
	}

	for _, tt := range tests {
		if got := user.VisibleTo(tt.viewer).Email; got != tt.want {
			t.Errorf("VisibleTo(%q).Email = %q, want %q", tt.viewer, got, tt.want)
		}
	}

	if user.Email != "ada@example.com" {
		t.Error("VisibleTo() modified the receiver")
	}
}
