package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no usable token is stored.
var ErrNoToken = errors.New("no stored OAuth token")

// storedToken is the authorized-user JSON layout written by Google's client
// libraries. Files in the x/oauth2 layout (access_token, ...) are read too.
type storedToken struct {
	Token        string   `json:"token,omitempty"`
	AccessToken  string   `json:"access_token,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

// LoadToken reads the token stored at path. A missing or empty file yields
// an error wrapping ErrNoToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, path)
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}

	tok := &oauth2.Token{
		AccessToken:  st.Token,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = st.AccessToken
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s holds neither an access nor a refresh token", ErrNoToken, path)
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if st.Expiry != "" {
		expiry, err := time.Parse(time.RFC3339Nano, st.Expiry)
		if err != nil {
			return nil, fmt.Errorf("failed to parse token expiry %q: %w", st.Expiry, err)
		}
		tok.Expiry = expiry
	}

	return tok, nil
}

// SaveToken writes tok to path with mode 0600, creating parent directories
// as needed. When cfg is non-nil its client ID, secret, token URL and scopes
// are stored alongside the token.
func SaveToken(path string, tok *oauth2.Token, cfg *oauth2.Config) error {
	st := storedToken{
		Token:        tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		st.Expiry = tok.Expiry.UTC().Format(time.RFC3339Nano)
	}
	if cfg != nil {
		st.TokenURI = cfg.Endpoint.TokenURL
		st.ClientID = cfg.ClientID
		st.ClientSecret = cfg.ClientSecret
		st.Scopes = cfg.Scopes
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	// Write to a temp file in the same directory and rename, so a crash never
	// leaves a truncated token behind.
	f, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if err := f.Chmod(0600); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
