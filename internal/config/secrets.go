// internal/config/secrets.go
//
// `vault:` reference resolution.
//
// A config string of the form
//
//	vault:<mount>/<path>#<key>
//
// is replaced by the value of <key> in the KV-v2 secret at <mount>/<path>.
// Resolution happens on the merged koanf tree, so the reference may come
// from YAML, .env, or the environment.

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	koanf "github.com/knadh/koanf/v2"
)

const vaultPrefix = "vault:"

// secretTTL caches resolved secrets in the Vault client across reloads.
const secretTTL = 5 * time.Minute

// Secrets fetches one key from a KV secret.  *vault.Client satisfies it.
type Secrets interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets Secrets) error {
	for key, raw := range k.All() {
		s, ok := raw.(string)
		if !ok || !strings.HasPrefix(s, vaultPrefix) {
			continue
		}
		if secrets == nil {
			return fmt.Errorf("%s: vault reference but no vault client configured", key)
		}

		path, field, ok := strings.Cut(strings.TrimPrefix(s, vaultPrefix), "#")
		if !ok || path == "" || field == "" {
			return fmt.Errorf("%s: malformed vault reference %q", key, s)
		}
		val, err := secrets.GetKV(ctx, path, field, secretTTL)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}
