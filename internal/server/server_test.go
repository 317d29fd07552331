package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/desertthunder/shelfx/internal/shared"
)

func TestBasicRouter(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewBasicRouter()
	router.Use(tag("first"), tag("second"))
	router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))

	t.Run("Applies Middleware In Order", func(t *testing.T) {
		order = nil
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pong", rec.Body.String())
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("Rejects Other Methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("Recovers Panics", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(Recoverer(shared.NewLogger(&strings.Builder{})))
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

// tokenServer is a fake Google token endpoint accepting the code "good".
func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func oauthConfig(tokenURL, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  redirect,
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: tokenURL},
	}
}

func TestOAuthHandler(t *testing.T) {
	tokens := tokenServer(t)
	config := oauthConfig(tokens.URL, "http://localhost:3000/auth/google/callback")

	t.Run("Exchanges Code", func(t *testing.T) {
		h := NewOAuthHandler(config, "xyz", "/auth/google/callback")
		assert.Equal(t, []string{"/auth/google/callback"}, h.Routes())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=xyz&code=good", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Authorization Successful")

		result := <-h.Result()
		require.NoError(t, result.Error())
		assert.Equal(t, "access-1", result.Token.AccessToken)
		assert.Equal(t, "refresh-1", result.Token.RefreshToken)
	})

	t.Run("Invalid State", func(t *testing.T) {
		h := NewOAuthHandler(config, "xyz", "")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=nope&code=good", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		result := <-h.Result()
		require.ErrorIs(t, result.Error(), shared.ErrAuthFailed)
	})

	t.Run("Access Denied", func(t *testing.T) {
		h := NewOAuthHandler(config, "xyz", "")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=xyz&error=access_denied", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		result := <-h.Result()
		require.ErrorIs(t, result.Error(), shared.ErrAuthFailed)
		assert.Contains(t, result.Error().Error(), "access_denied")
	})

	t.Run("Bad Code", func(t *testing.T) {
		h := NewOAuthHandler(config, "xyz", "")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=xyz&code=bad", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		h := NewOAuthHandler(config, "xyz", "")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=xyz&code=good", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=xyz&code=good", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestFlow(t *testing.T) {
	tokens := tokenServer(t)

	t.Run("Completes Through Callback", func(t *testing.T) {
		addr := freeAddr(t)
		flow := &Flow{
			Config:  oauthConfig(tokens.URL, "http://"+addr+"/auth/google/callback"),
			Timeout: 5 * time.Second,
			Logger:  shared.NewLogger(&strings.Builder{}),
			Open: func(authURL string) error {
				u, err := url.Parse(authURL)
				if err != nil {
					return err
				}
				q := u.Query()
				assert.Equal(t, "offline", q.Get("access_type"))
				callback := q.Get("redirect_uri") + "?code=good&state=" + url.QueryEscape(q.Get("state"))
				go func() {
					if resp, err := http.Get(callback); err == nil {
						resp.Body.Close()
					}
				}()
				return nil
			},
		}

		token, err := flow.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "access-1", token.AccessToken)
	})

	t.Run("Times Out", func(t *testing.T) {
		addr := freeAddr(t)
		flow := &Flow{
			Config:  oauthConfig(tokens.URL, "http://"+addr+"/callback"),
			Timeout: 50 * time.Millisecond,
			Logger:  shared.NewLogger(&strings.Builder{}),
		}
		_, err := flow.Run(context.Background())
		require.ErrorIs(t, err, shared.ErrTimeout)
	})

	t.Run("Invalid Redirect", func(t *testing.T) {
		flow := &Flow{Config: oauthConfig(tokens.URL, "not a url")}
		_, err := flow.Run(context.Background())
		require.ErrorIs(t, err, shared.ErrInvalidConfig)
	})
}

func TestTokens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "token.json")
	token := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).Round(time.Second)}

	require.NoError(t, SaveToken(path, token))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, loaded.AccessToken)
	assert.Equal(t, token.RefreshToken, loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))

	_, err = LoadToken(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, shared.ErrMissingCredentials)

	t.Run("Detects Token Files", func(t *testing.T) {
		assert.True(t, isTokenFile(path))

		account := filepath.Join(dir, "account.json")
		require.NoError(t, os.WriteFile(account, []byte(`{"type":"service_account","client_email":"x@example.com"}`), 0o600))
		assert.False(t, isTokenFile(account))
		assert.False(t, isTokenFile(filepath.Join(dir, "missing.json")))
	})
}

func TestGoogleOAuthConfig(t *testing.T) {
	t.Run("From Client Id", func(t *testing.T) {
		cfg, err := GoogleOAuthConfig(shared.GoogleConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://localhost:3000/cb"}, "scope")
		require.NoError(t, err)
		assert.Equal(t, "id", cfg.ClientID)
		assert.Equal(t, []string{"scope"}, cfg.Scopes)
		assert.Contains(t, cfg.Endpoint.TokenURL, "google")
	})

	t.Run("Placeholder Credentials", func(t *testing.T) {
		_, err := GoogleOAuthConfig(shared.DefaultConfig().Google)
		require.ErrorIs(t, err, shared.ErrMissingCredentials)
	})

	t.Run("From Client Secret File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.json")
		secret := `{"installed":{"client_id":"file-id","client_secret":"file-secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
		require.NoError(t, os.WriteFile(path, []byte(secret), 0o600))

		cfg, err := GoogleOAuthConfig(shared.GoogleConfig{CredentialsPath: path, RedirectURI: "http://localhost:3000/cb"})
		require.NoError(t, err)
		assert.Equal(t, "file-id", cfg.ClientID)
		assert.Equal(t, "http://localhost:3000/cb", cfg.RedirectURL)
	})
}
