package server

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/desertthunder/shelfx/internal/shared"
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

var donePage = template.Must(template.New("done").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type page struct {
	Title, Color, Message string
}

// OAuthHandler handles the authorization code callback.
type OAuthHandler struct {
	config     *oauth2.Config
	state      string
	path       string
	resultChan chan OAuthResult
	once       sync.Once

	mu          sync.Mutex
	callbackHit bool
}

// NewOAuthHandler creates a handler serving path. The state token should be random for CSRF protection.
func NewOAuthHandler(config *oauth2.Config, state, path string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		config:     config,
		state:      state,
		path:       path,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP validates the state, exchanges the code for a token and sends the result.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		h.render(w, http.StatusBadRequest, page{"Authorization Failed", "#c0392b", "Invalid state parameter."})
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.Send(OAuthResult{err: err})
		h.render(w, http.StatusBadRequest, page{"Authorization Failed", "#c0392b", "Access was not granted."})
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)})
		h.render(w, http.StatusInternalServerError, page{"Authorization Failed", "#c0392b", "Token exchange failed."})
		return
	}

	h.Send(OAuthResult{Token: token})
	h.render(w, http.StatusOK, page{"✓ Authorization Successful", "#0f9d58", "You can close this window and return to the terminal."})
}

func (h *OAuthHandler) render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = donePage.Execute(w, p)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
