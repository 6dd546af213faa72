// Package googleauth loads service account credentials for the Google APIs.
package googleauth

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"

	"orderbot/internal/errs"
)

// Credentials names where the service account key comes from. JSON wins
// over File when both are set.
type Credentials struct {
	File string
	JSON string
}

func (c Credentials) IsZero() bool {
	return strings.TrimSpace(c.File) == "" && strings.TrimSpace(c.JSON) == ""
}

// Bytes returns the raw key document.
func (c Credentials) Bytes() ([]byte, error) {
	if raw := strings.TrimSpace(c.JSON); raw != "" {
		return []byte(raw), nil
	}
	path := strings.TrimSpace(c.File)
	if path == "" {
		return nil, errors.New("google credentials are not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read google credentials %q", path)
	}
	return data, nil
}

// Resolve parses the key for the given scopes.
func (c Credentials) Resolve(ctx context.Context, scopes ...string) (*google.Credentials, error) {
	data, err := c.Bytes()
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, errs.Wrap(err, "parse google credentials")
	}
	return creds, nil
}

// DelegatedClient returns an HTTP client acting as subject through
// domain-wide delegation. Gmail requires it for service accounts.
func (c Credentials) DelegatedClient(ctx context.Context, subject string, scopes ...string) (*http.Client, error) {
	data, err := c.Bytes()
	if err != nil {
		return nil, err
	}
	cfg, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, errs.Wrap(err, "parse google service account")
	}
	cfg.Subject = strings.TrimSpace(subject)
	return cfg.Client(ctx), nil
}
