// Package common contains constants and small helpers shared by the client
// packages.
package common

const (
	// AuthorizationHeader carries "Bearer <token>" on HTTP requests and on
	// the realtime CONNECT frame.
	AuthorizationHeader = "Authorization"

	// BearerPrefix precedes the token value in AuthorizationHeader.
	BearerPrefix = "Bearer "

	// RequestIDHeader tags each outbound HTTP request for log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Bearer formats token as an Authorization header value.
func Bearer(token string) string {
	return BearerPrefix + token
}
