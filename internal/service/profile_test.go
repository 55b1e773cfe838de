package service

import (
	"context"
	"errors"
	"testing"

	"github.com/apimarket/marketplace/internal/model"
)

func TestProfile_GetAndUpdate(t *testing.T) {
	t.Parallel()

	svc := NewProfileService(newMemoryStore())
	ctx := context.Background()

	if _, err := svc.GetProfile(ctx, ""); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("GetProfile(\"\") error = %v, want ErrMissingUserID", err)
	}

	empty, err := svc.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if empty.GithubLink != "" {
		t.Errorf("unknown user profile = %+v, want empty", empty)
	}

	owner := &model.Identity{UID: "u1"}
	link := " https://github.com/octocat "
	updated, err := svc.UpdateProfile(ctx, UpdateProfileInput{Caller: owner, UserID: "u1", GithubLink: &link})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.GithubLink != "https://github.com/octocat" {
		t.Errorf("githubLink = %q", updated.GithubLink)
	}

	unchanged, err := svc.UpdateProfile(ctx, UpdateProfileInput{Caller: owner, UserID: "u1"})
	if err != nil {
		t.Fatalf("UpdateProfile(no fields) error = %v", err)
	}
	if unchanged.GithubLink != "https://github.com/octocat" {
		t.Errorf("omitted githubLink cleared the stored value: %q", unchanged.GithubLink)
	}

	if _, err := svc.UpdateProfile(ctx, UpdateProfileInput{Caller: owner, GithubLink: &link}); !errors.Is(err, ErrMissingUserID) {
		t.Errorf("UpdateProfile(no user) error = %v, want ErrMissingUserID", err)
	}
}

func TestProfile_UpdateRequiresOwner(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	svc := NewProfileService(store)
	ctx := context.Background()
	link := "https://github.com/attacker"

	tests := []struct {
		name    string
		caller  *model.Identity
		wantErr error
	}{
		{"anonymous", nil, ErrUnauthenticated},
		{"empty identity", &model.Identity{}, ErrUnauthenticated},
		{"another user", &model.Identity{UID: "u2"}, ErrForbidden},
	}
	for _, tt := range tests {
		_, err := svc.UpdateProfile(ctx, UpdateProfileInput{Caller: tt.caller, UserID: "u1", GithubLink: &link})
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.wantErr)
		}
	}

	if _, ok := store.accounts["u1"]; ok {
		t.Error("rejected updates must not create or modify the account")
	}
}

func TestProfile_Me(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	svc := NewProfileService(store)

	if _, err := svc.Me(context.Background(), nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Me(nil) error = %v, want ErrUnauthenticated", err)
	}

	account, err := svc.Me(context.Background(), &model.Identity{UID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if account.UID != "u1" || account.Email != "u1@example.com" {
		t.Errorf("account = %+v", account)
	}
	if account.PurchasedAPIs == nil || len(account.PurchasedAPIs) != 0 || account.Earnings != 0 || account.Credits != 0 {
		t.Errorf("new account should have zeroed commerce fields: %+v", account)
	}
	if _, ok := store.accounts["u1"]; !ok {
		t.Error("Me() should create the account")
	}
}
