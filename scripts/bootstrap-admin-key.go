// Command bootstrap-admin-key mints an admin API key and stores its hash.
// The plaintext key is printed once.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/repository"
)

type output struct {
	KeyID     string   `json:"key_id"`
	Name      string   `json:"name"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		name        = flag.String("name", "bootstrap", "Admin key name")
		scopesInput = flag.String("scopes", model.ScopeAdmin, "Comma-separated scopes ("+strings.Join(model.ValidScopes, ",")+")")
		env         = flag.String("env", auth.EnvLive, "Key environment: live or test")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fail("DATABASE_URL is required")
	}
	if *env != auth.EnvLive && *env != auth.EnvTest {
		fail("invalid env; use live or test")
	}

	scopes, err := parseScopes(*scopesInput)
	if err != nil {
		fail(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fail("connect database: " + err.Error())
	}
	defer repo.Close()

	generated, err := auth.GenerateAdminKey(*env)
	if err != nil {
		fail("generate admin key: " + err.Error())
	}

	key := &model.AdminKey{
		ID:        ulid.Make().String(),
		Name:      *name,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateAdminKey(ctx, key); err != nil {
		fail("create admin key: " + err.Error())
	}

	out := output{
		KeyID:     key.ID,
		Name:      key.Name,
		Key:       generated.Plaintext,
		KeyPrefix: key.KeyPrefix,
		Scopes:    scopes,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fail("invalid format; use plain or json")
	}
}

func parseScopes(input string) ([]string, error) {
	var scopes []string
	for _, part := range strings.Split(input, ",") {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !slices.Contains(model.ValidScopes, scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		if !slices.Contains(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeAdmin}
	}
	return scopes, nil
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
