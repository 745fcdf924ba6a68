package config

import (
	"strings"
	"time"
)

const (
	credAPIURL  = "apiUrl"
	credToken   = "token"
	credEmail   = "email"
	credSavedAt = "savedAt"
)

// Credentials is what `login` stores for later commands.
type Credentials struct {
	APIURL  string
	Token   string
	Email   string
	SavedAt time.Time
}

// LoggedIn reports whether a token is present.
func (c Credentials) LoggedIn() bool {
	return strings.TrimSpace(c.Token) != ""
}

func credentialsFromValues(values map[string]string) Credentials {
	creds := Credentials{
		APIURL: strings.TrimSpace(values[credAPIURL]),
		Token:  strings.TrimSpace(values[credToken]),
		Email:  strings.TrimSpace(values[credEmail]),
	}
	if raw := values[credSavedAt]; raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			creds.SavedAt = ts
		}
	}
	return creds
}

func (c Credentials) values() map[string]string {
	values := map[string]string{
		credToken: strings.TrimSpace(c.Token),
	}
	if c.APIURL != "" {
		values[credAPIURL] = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	}
	if c.Email != "" {
		values[credEmail] = c.Email
	}
	if !c.SavedAt.IsZero() {
		values[credSavedAt] = c.SavedAt.UTC().Format(time.RFC3339)
	}
	return values
}
