package googleauth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientSecret = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",
"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",
"redirect_uris":["http://localhost"]}}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTokenSourceFromClientSecretAndToken(t *testing.T) {
	creds := writeFile(t, "credentials.json", clientSecret)
	token := writeFile(t, "token.json", `{"access_token":"ya29.test","token_type":"Bearer","expiry":"2999-01-01T00:00:00Z"}`)

	ts, err := TokenSource(context.Background(), creds, token)
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "ya29.test", tok.AccessToken)
}

func TestTokenSourceErrors(t *testing.T) {
	creds := writeFile(t, "credentials.json", clientSecret)
	tests := []struct {
		name  string
		creds string
		token string
		msg   string
	}{
		{"no credentials", "", "", "credentials file is required"},
		{"missing file", filepath.Join(t.TempDir(), "nope.json"), "", "read credentials"},
		{"unknown format", writeFile(t, "other.json", `{"foo":"bar"}`), "", "unrecognized credentials"},
		{"client secret without token", creds, "", "token file is required"},
		{"empty token", creds, writeFile(t, "token.json", `{}`), "no access or refresh token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TokenSource(context.Background(), tt.creds, tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
