package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretNotFound is returned when a store holds no value for a key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves sensitive settings outside of config files.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvironmentSecretStore reads secrets from the process environment.
// KEY is used as is; otherwise KEY_FILE names a file holding the value,
// which is how container runtimes mount secrets.
type EnvironmentSecretStore struct {
	lookup func(string) (string, bool)
}

func NewEnvironmentSecretStore() *EnvironmentSecretStore {
	return &EnvironmentSecretStore{lookup: os.LookupEnv}
}

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.lookup(key); ok && v != "" {
		return v, nil
	}
	path, ok := s.lookup(key + "_FILE")
	if !ok || path == "" {
		return "", fmt.Errorf("%s: %w", key, ErrSecretNotFound)
	}
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - operator supplied
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// GetWithDefault returns def when the key cannot be resolved.
func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// LoadSecrets fills the credential fields from store. Keys the store does
// not know leave the current value untouched.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	targets := []struct {
		key string
		set func(string)
	}{
		{"JUST3SEC_SQL_DSN", func(v string) { c.Storage.SQL.DSN = v }},
		{"JUST3SEC_REDIS_PASSWORD", func(v string) { c.Storage.Redis.Password = v }},
		{"JUST3SEC_SECURITY_API_KEYS", func(v string) { c.Security.APIKeys = splitList(v) }},
	}
	for _, t := range targets {
		v, err := store.Get(ctx, t.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		t.set(v)
	}
	return c.Security.Validate()
}

// LoadSecretsFromEnv is LoadSecrets backed by the environment.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}
