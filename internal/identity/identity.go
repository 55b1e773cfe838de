// Package identity verifies end-user bearer tokens issued by Firebase Auth.
package identity

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/apimarket/marketplace/internal/model"
)

var (
	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("invalid ID token")
	// ErrNotConfigured is returned by the disabled verifier.
	ErrNotConfigured = errors.New("identity provider is not configured")
)

// TokenVerifier turns a bearer token into a verified identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// Config selects the Firebase project and credentials. CredentialsFile takes
// precedence over CredentialsB64.
type Config struct {
	ProjectID       string
	CredentialsFile string
	CredentialsB64  string
}

// Firebase verifies Firebase ID tokens.
type Firebase struct {
	client *auth.Client
}

// NewFirebase initializes the Firebase app and its Auth client.
func NewFirebase(ctx context.Context, cfg Config) (*Firebase, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID must be set")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.CredentialsB64 != "":
		raw, err := base64.StdEncoding.DecodeString(cfg.CredentialsB64)
		if err != nil {
			return nil, errors.New("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is not valid base64")
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth: %w", err)
	}

	return &Firebase{client: client}, nil
}

// Verify checks signature, expiry and audience of an ID token.
func (f *Firebase) Verify(ctx context.Context, token string) (*model.Identity, error) {
	tok, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := &model.Identity{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		id.Name = name
	}
	return id, nil
}

// Disabled rejects every token. Optional-identity routes then treat all
// callers as anonymous.
type Disabled struct{}

// Verify always fails.
func (Disabled) Verify(context.Context, string) (*model.Identity, error) {
	return nil, ErrNotConfigured
}
