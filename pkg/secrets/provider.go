package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ErrSecretKeyMissing is returned when a secret exists but lacks the requested field.
var ErrSecretKeyMissing = errors.New("secret field missing")

// Provider defines a generic secrets manager interface.
// Concrete implementations (AWS, GCP, etc.) can satisfy this.
type Provider interface {
	// GetSecret retrieves a secret by key/path and returns a key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)
}

// Lookup fetches secret name and returns a single field from it.
func Lookup(ctx context.Context, p Provider, name, field string) (string, error) {
	values, err := p.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}
	v, ok := values[field]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s[%s]", ErrSecretKeyMissing, name, field)
	}
	return v, nil
}
