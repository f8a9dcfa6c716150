package google

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/housemgr/internal/logging"
)

// TokenProvider supplies the OAuth token source for Gmail API calls.
// *Credentials is the file-backed implementation.
type TokenProvider interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// StaticTokenProvider serves a fixed token source.
type StaticTokenProvider struct {
	Source oauth2.TokenSource
}

// TokenSource returns the configured source.
func (p StaticTokenProvider) TokenSource(context.Context) (oauth2.TokenSource, error) {
	return p.Source, nil
}

// persistingTokenSource refreshes through the OAuth config and writes every
// token whose access token changed back to the token file.
type persistingTokenSource struct {
	ctx   context.Context
	creds *Credentials

	mu   sync.Mutex
	base oauth2.TokenSource
	last string
}

func newPersistingTokenSource(ctx context.Context, c *Credentials, tok *oauth2.Token) *persistingTokenSource {
	return &persistingTokenSource{
		ctx:   ctx,
		creds: c,
		base:  c.OAuth.TokenSource(ctx, tok),
		last:  tok.AccessToken,
	}
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		s.creds.metrics.RecordOAuthTokenRefresh(s.ctx, false)
		return nil, err
	}
	if tok.AccessToken == s.last {
		return tok, nil
	}

	s.last = tok.AccessToken
	s.creds.metrics.RecordOAuthTokenRefresh(s.ctx, true)
	if err := SaveToken(s.creds.TokenFile, tok, s.creds.OAuth); err != nil {
		// The token is still usable for this process.
		s.creds.logger.Warn("failed to save refreshed token", logging.Err(err))
	} else {
		s.creds.logger.Debug("refreshed token saved")
	}
	return tok, nil
}

var (
	_ TokenProvider = (*Credentials)(nil)
	_ TokenProvider = StaticTokenProvider{}
)
