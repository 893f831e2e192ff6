// Package auth provides authentication middleware for waterworm-server.
//
// APIKeyMiddleware(mode, header, key, open...) wraps an http.Handler and
// validates the API key from the named header or the api_key query parameter.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). Paths listed in open, such as the
// health check, are never checked. When the key is incorrect or absent the
// middleware answers 401 immediately.
package auth
