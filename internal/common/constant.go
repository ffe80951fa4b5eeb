package common

// AccessTokenHeaderName is the HTTP header carrying the bearer access token.
const AccessTokenHeaderName = "Authorization"

// AccessTokenScheme prefixes the access token inside AccessTokenHeaderName.
const AccessTokenScheme = "Bearer"

// RefreshTokenCookieName and RefreshTokenCookiePath describe the HTTP-only
// cookie that transports the refresh token.
const (
	RefreshTokenCookieName = "refreshToken"
	RefreshTokenCookiePath = "/api"
)

// IdempotencyKeyHeaderName lets clients retry order placement safely.
const IdempotencyKeyHeaderName = "Idempotency-Key"

// RequestIDHeaderName is echoed back on every HTTP response.
const RequestIDHeaderName = "X-Request-ID"
