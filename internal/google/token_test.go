package google

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestLoadToken_AuthorizedUserLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	// Authorized-user layout of the google-auth libraries.
	data := `{"token": "ya29.access", "refresh_token": "1//refresh",
		"token_uri": "https://oauth2.googleapis.com/token",
		"client_id": "id.apps.googleusercontent.com", "client_secret": "secret",
		"scopes": ["https://www.googleapis.com/auth/gmail.readonly"],
		"universe_domain": "googleapis.com", "account": "",
		"expiry": "2024-03-01T10:20:30.123456Z"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	tok, err := LoadToken(path)
	require.NoError(t, err)

	assert.Equal(t, "ya29.access", tok.AccessToken)
	assert.Equal(t, "1//refresh", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Expiry.Equal(time.Date(2024, 3, 1, 10, 20, 30, 123456000, time.UTC)))
}

func TestLoadToken_OAuth2Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	data := `{"access_token":"abc","token_type":"Bearer","refresh_token":"def","expiry":"2030-01-02T15:04:05+01:00"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	tok, err := LoadToken(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "def", tok.RefreshToken)
	assert.Equal(t, 2030, tok.Expiry.Year())
}

func TestLoadToken_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		content   *string
		wantNoTok bool
	}{
		{name: "missing file", content: nil, wantNoTok: true},
		{name: "empty object", content: ptr(`{}`), wantNoTok: true},
		{name: "malformed json", content: ptr(`{not json`), wantNoTok: false},
		{name: "bad expiry", content: ptr(`{"token":"a","expiry":"yesterday"}`), wantNoTok: false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "token"+string(rune('a'+i))+".json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0600))
			}

			_, err := LoadToken(path)
			require.Error(t, err)
			assert.Equal(t, tt.wantNoTok, errors.Is(err, ErrNoToken))
		})
	}
}

func TestSaveToken_RoundTripAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: "https://oauth2.example.com/token"},
		Scopes:       DefaultScopes,
	}
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	in := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: expiry}

	require.NoError(t, SaveToken(path, in, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"token": "access"`)
	assert.Contains(t, string(raw), `"client_id": "client"`)
	assert.Contains(t, string(raw), `"token_uri": "https://oauth2.example.com/token"`)

	out, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, in.AccessToken, out.AccessToken)
	assert.Equal(t, in.RefreshToken, out.RefreshToken)
	assert.True(t, in.Expiry.Equal(out.Expiry))
}

func TestSaveToken_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"old"}`), 0644))

	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "new"}, nil))

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func ptr(s string) *string { return &s }
