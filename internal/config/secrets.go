package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables holding credentials.
const (
	EnvSMTPPassword = "CERTMAIL_SMTP_PASSWORD"
	EnvResendAPIKey = "CERTMAIL_RESEND_API_KEY"
)

// Secrets holds credentials kept out of config files.
type Secrets struct {
	SMTPPassword string
	ResendAPIKey string
}

// LoadSecrets reads credentials from the process environment, falling back
// to the dotenv files that exist. The environment always wins.
func LoadSecrets(envFiles ...string) (Secrets, error) {
	fromFiles := map[string]string{}
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			continue
		}
		vals, err := godotenv.Read(f)
		if err != nil {
			return Secrets{}, err
		}
		for k, v := range vals {
			if _, ok := fromFiles[k]; !ok {
				fromFiles[k] = v
			}
		}
	}

	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return fromFiles[key]
	}
	return Secrets{
		SMTPPassword: get(EnvSMTPPassword),
		ResendAPIKey: get(EnvResendAPIKey),
	}, nil
}
