package identity

import (
	"context"
	"errors"
	"testing"
)

func TestNewFirebase_RequiresProject(t *testing.T) {
	t.Parallel()

	_, err := NewFirebase(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error without project id")
	}
}

func TestNewFirebase_BadBase64(t *testing.T) {
	t.Parallel()

	_, err := NewFirebase(context.Background(), Config{ProjectID: "demo", CredentialsB64: "%%%"})
	if err == nil {
		t.Fatal("expected error for invalid base64 credentials")
	}
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	var v TokenVerifier = Disabled{}
	if _, err := v.Verify(context.Background(), "token"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
