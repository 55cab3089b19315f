// Package googleauth builds OAuth2 token sources for the Google Calendar and
// Gmail clients from credentials provisioned out of band.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes needed by the calendar mirror and the Gmail sender.
var Scopes = []string{calendar.CalendarScope, gmail.GmailSendScope}

type credentialsFile struct {
	Type      string          `json:"type"`
	Installed json.RawMessage `json:"installed"`
	Web       json.RawMessage `json:"web"`
}

// TokenSource reads credentialsFile, which is either a service account key or
// an OAuth client secret. Client secrets need a previously authorized token in
// tokenFile; consent flows are not run here.
func TokenSource(ctx context.Context, credentialsPath, tokenPath string, scopes ...string) (oauth2.TokenSource, error) {
	if strings.TrimSpace(credentialsPath) == "" {
		return nil, fmt.Errorf("googleauth: credentials file is required")
	}
	if len(scopes) == 0 {
		scopes = Scopes
	}
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("googleauth: read credentials: %w", err)
	}
	var kind credentialsFile
	if err := json.Unmarshal(data, &kind); err != nil {
		return nil, fmt.Errorf("googleauth: parse credentials: %w", err)
	}

	switch {
	case kind.Type == "service_account":
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("googleauth: service account: %w", err)
		}
		return creds.TokenSource, nil
	case len(kind.Installed) > 0 || len(kind.Web) > 0:
		cfg, err := google.ConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("googleauth: client secret: %w", err)
		}
		tok, err := readToken(tokenPath)
		if err != nil {
			return nil, err
		}
		return cfg.TokenSource(ctx, tok), nil
	default:
		return nil, fmt.Errorf("googleauth: unrecognized credentials format in %s", credentialsPath)
	}
}

// ClientOptions wraps TokenSource for google.golang.org/api constructors.
func ClientOptions(ctx context.Context, credentialsPath, tokenPath string) ([]option.ClientOption, error) {
	ts, err := TokenSource(ctx, credentialsPath, tokenPath)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}

func readToken(path string) (*oauth2.Token, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("googleauth: token file is required for OAuth client credentials")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("googleauth: read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("googleauth: parse token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("googleauth: token file %s has no access or refresh token", path)
	}
	return &tok, nil
}
