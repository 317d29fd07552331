// Package server runs the local HTTP callback used to authorize Google Sheets exports.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
// [RequestLogger] logs every request through charmbracelet/log.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// # Google Authorization
//
// [Flow] starts a temporary server on the redirect address, opens the consent page in the browser and waits for the
// callback. The token is stored as JSON at google.token_path and turned into Sheets and Drive client options by
// [GoogleClientOptions].
package server
