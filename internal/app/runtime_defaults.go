package app

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	jwtSecretBytes       = 32
	defaultRetentionDays = 90
)

// ApplyRuntimeDefaults fills values the service cannot run without and returns
// the keys of any secrets it had to generate. A generated JWT secret only
// validates tokens minted by this process.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := randomSecret(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated = append(generated, "auth.jwt.secret")
	}

	if cfg.Notifications.RetentionDays <= 0 {
		cfg.Notifications.RetentionDays = defaultRetentionDays
	}
	cfg.Notifications.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Notifications.PublicURL), "/")

	return generated, nil
}

func randomSecret(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("secret length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
