package conf

import (
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/secrets"
)

// resolveSecrets replaces credential fields with their resolved values. A
// *_file setting wins over the inline value; inline values may reference
// environment variables as ${VAR} or ${VAR:-default}.
func resolveSecrets(settings *Settings) error {
	fields := []struct {
		name  string
		file  string
		value *string
	}{
		{"embedding.api_key", settings.Embedding.APIKeyFile, &settings.Embedding.APIKey},
		{"generative.api_key", settings.Generative.APIKeyFile, &settings.Generative.APIKey},
		{"database.mysql.password", settings.Database.MySQL.PasswordFile, &settings.Database.MySQL.Password},
	}

	for _, f := range fields {
		resolved, err := secrets.Resolve(f.file, *f.value)
		if err != nil {
			return errors.Newf("cannot resolve %s: %w", f.name, err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("setting", f.name).
				Build()
		}
		*f.value = resolved
	}
	return nil
}
