package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/desertthunder/shelfx/internal/shared"
)

// GoogleOAuthConfig builds the OAuth client for scopes.
//
// A credentials_path pointing at a client secret JSON downloaded from the Google console takes precedence over
// client_id and client_secret.
func GoogleOAuthConfig(cfg shared.GoogleConfig, scopes ...string) (*oauth2.Config, error) {
	if cfg.CredentialsPath != "" {
		data, err := os.ReadFile(cfg.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrMissingCredentials, err)
		}
		config, err := google.ConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		if cfg.RedirectURI != "" {
			config.RedirectURL = cfg.RedirectURI
		}
		return config, nil
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.ClientID == "your_google_client_id" {
		return nil, fmt.Errorf("%w: google client_id and client_secret must be set", shared.ErrMissingCredentials)
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}, nil
}

// SaveToken writes token as JSON readable only by the user.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := shared.MarshalJSON(token, true)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// LoadToken reads a token written by [SaveToken].
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no google token at %s, run `shelfx auth google`", shared.ErrMissingCredentials, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: corrupt token at %s", shared.ErrMissingCredentials, path)
	}
	return &token, nil
}

// GoogleClientOptions returns the client options for Sheets and Drive.
//
// authData, when set, is either a token file written by `auth google` or a service account credentials file.
// Without it the token stored at token_path is used. Refreshed tokens are written back.
func GoogleClientOptions(ctx context.Context, cfg shared.GoogleConfig, authData string, scopes ...string) ([]option.ClientOption, error) {
	tokenPath := cfg.TokenPath
	if authData != "" {
		if !isTokenFile(authData) {
			return []option.ClientOption{option.WithCredentialsFile(authData), option.WithScopes(scopes...)}, nil
		}
		tokenPath = authData
	}

	token, err := LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}
	config, err := GoogleOAuthConfig(cfg, scopes...)
	if err != nil {
		return nil, err
	}
	source := &savingSource{
		base: config.TokenSource(ctx, token),
		path: tokenPath,
		last: token.AccessToken,
	}
	return []option.ClientOption{option.WithTokenSource(oauth2.ReuseTokenSource(token, source))}, nil
}

func isTokenFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var probe struct {
		Type         string `json:"type"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if json.Unmarshal(data, &probe) != nil {
		return false
	}
	return probe.Type == "" && (probe.AccessToken != "" || probe.RefreshToken != "")
}

// savingSource persists tokens refreshed by base.
type savingSource struct {
	base oauth2.TokenSource
	path string
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		_ = SaveToken(s.path, token)
	}
	return token, nil
}

// NewState returns a random state token for the authorization request.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Flow runs the authorization code flow through a temporary local callback server.
type Flow struct {
	Config *oauth2.Config
	// Addr is the listen address. Defaults to the host and port of the redirect URL.
	Addr    string
	Timeout time.Duration
	// Open shows the consent page to the user, normally [shared.OpenBrowser].
	Open   func(authURL string) error
	Logger *log.Logger
}

// Run waits for the callback and returns the exchanged token.
func (f *Flow) Run(ctx context.Context) (*oauth2.Token, error) {
	logger := f.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	redirect, err := url.Parse(f.Config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect uri %q", shared.ErrInvalidConfig, f.Config.RedirectURL)
	}
	addr := f.Addr
	if addr == "" {
		addr = redirect.Host
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	state, err := NewState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}
	handler := NewOAuthHandler(f.Config, state, redirect.Path)
	router := NewBasicRouter()
	router.Use(Recoverer(logger), RequestLogger(logger))
	router.Handler(handler)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting OAuth callback server", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := f.Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if f.Open != nil {
		if err := f.Open(authURL); err != nil {
			logger.Warn("failed to open browser automatically", "error", err, "url", authURL)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, result.Error()
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
