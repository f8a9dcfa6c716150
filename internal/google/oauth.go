package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/housemgr/internal/instrumentation"
	"github.com/teemow/housemgr/internal/logging"
)

// Credentials obtains, refreshes and persists the OAuth2 token used for the
// Gmail API.
type Credentials struct {
	OAuth     *oauth2.Config
	TokenFile string

	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	openURL    func(string) error
	prompt     io.Writer
	listenAddr string
}

// Option configures Credentials.
type Option func(*Credentials)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Credentials) { c.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Credentials) { c.metrics = m }
}

// WithBrowser replaces the function used to open the authorization URL.
func WithBrowser(open func(url string) error) Option {
	return func(c *Credentials) { c.openURL = open }
}

// WithPrompt sets where the authorization URL is printed (default: stderr).
func WithPrompt(w io.Writer) Option {
	return func(c *Credentials) { c.prompt = w }
}

// LoadOAuthConfig parses the client secrets file downloaded from the Google
// Cloud console.
func LoadOAuthConfig(credentialsFile string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, ResolveScopes(scopes)...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", credentialsFile, err)
	}
	return cfg, nil
}

// NewCredentials loads the client secrets at credentialsFile and returns
// Credentials persisting the token at tokenFile.
func NewCredentials(credentialsFile, tokenFile string, scopes []string, opts ...Option) (*Credentials, error) {
	cfg, err := LoadOAuthConfig(credentialsFile, scopes)
	if err != nil {
		return nil, err
	}
	return NewCredentialsFromConfig(cfg, tokenFile, opts...), nil
}

// NewCredentialsFromConfig returns Credentials for an already built OAuth
// config.
func NewCredentialsFromConfig(cfg *oauth2.Config, tokenFile string, opts ...Option) *Credentials {
	c := &Credentials{
		OAuth:      cfg,
		TokenFile:  tokenFile,
		logger:     slog.Default(),
		openURL:    openBrowser,
		prompt:     os.Stderr,
		listenAddr: "127.0.0.1:0",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithService(c.logger, instrumentation.ServiceOAuth)
	return c
}

// TokenSource returns a token source for the Gmail API. A stored valid token
// is used as is, an expired one is refreshed, and without a usable token the
// interactive flow is run. Every new or refreshed token is written back to
// the token file.
func (c *Credentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := LoadToken(c.TokenFile)
	switch {
	case err == nil && tok.Valid():
		c.logger.Debug("using stored token", logging.Path(c.TokenFile))

	case err == nil && tok.RefreshToken != "":
		c.logger.Debug("stored token expired, refreshing", logging.Path(c.TokenFile))
		tok, err = c.OAuth.TokenSource(ctx, tok).Token()
		c.metrics.RecordOAuthTokenRefresh(ctx, err == nil)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh token, run the auth command to authorize again: %w", err)
		}
		if err := SaveToken(c.TokenFile, tok, c.OAuth); err != nil {
			return nil, err
		}
		c.logger.Info("refreshed token saved",
			logging.Path(c.TokenFile),
			"access_token", logging.SanitizeToken(tok.AccessToken),
			"expiry", tok.Expiry)

	case err == nil || errors.Is(err, ErrNoToken):
		if tok, err = c.Authorize(ctx); err != nil {
			return nil, err
		}

	default:
		return nil, err
	}

	return newPersistingTokenSource(ctx, c, tok), nil
}

// Client returns an HTTP client authorizing requests with TokenSource.
func (c *Credentials) Client(ctx context.Context) (*http.Client, error) {
	ts, err := c.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

// Authorize runs the installed-app flow: a loopback server on a random port
// receives the authorization code, which is exchanged for a token and saved.
func (c *Credentials) Authorize(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.browserFlow(ctx)
	if err != nil {
		c.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}
	c.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)

	if err := SaveToken(c.TokenFile, tok, c.OAuth); err != nil {
		return nil, err
	}
	c.logger.Info("authorization complete, token saved", logging.Path(c.TokenFile))
	return tok, nil
}

func (c *Credentials) browserFlow(ctx context.Context) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	ln, err := net.Listen("tcp", c.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server := &http.Server{
		Handler:           callbackHandler(state, codeChan, errChan),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			report(errChan, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	cfg := *c.OAuth
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(c.prompt, "Please visit this URL to authorize housemgr:\n%s\n\n", authURL)
	if err := c.openURL(authURL); err != nil {
		c.logger.Warn("failed to open browser", logging.Err(err))
	}

	select {
	case code := <-codeChan:
		tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		return tok, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func callbackHandler(state string, codeChan chan<- string, errChan chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			report(errChan, fmt.Errorf("authorization denied: %s", q.Get("error")))
			http.Error(w, "Authorization failed: "+q.Get("error"), http.StatusBadRequest)
		case q.Get("state") != state:
			report(errChan, errors.New("state mismatch in OAuth callback"))
			http.Error(w, "Error: state mismatch", http.StatusBadRequest)
		case q.Get("code") == "":
			report(errChan, errors.New("no code in OAuth callback"))
			http.Error(w, "Error: no authorization code received", http.StatusBadRequest)
		default:
			select {
			case codeChan <- q.Get("code"):
			default:
			}
			fmt.Fprintln(w, "The authentication flow has completed. You may close this window.")
		}
	})
}

// report delivers err unless an earlier error is already pending.
func report(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
