// Package auth implements the control surface's single-operator JWT
// authentication (§6): one DJ credential pair, bcrypt-hashed at startup,
// guarding every mutating `/api/*` route behind a signed HS256 token.
// Adapted from the teacher's auth.go, restructured around radioerr.Kind
// (so a failed login or a rejected token reports through the same error
// taxonomy as every other package) and a gin.HandlerFunc entry point
// instead of the teacher's net/http.Handler-wrapping middleware, since
// internal/httpapi is gin-based rather than stdlib net/http.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// Config holds the operator credential and token tunables for one Auth
// instance, per §6's control-surface auth contract.
type Config struct {
	Username  string
	Password  string
	JWTSecret string
	TokenTTL  time.Duration

	// MaxLoginFailures is the number of failed attempts a remote address
	// may make within LoginWindow before further logins from it are
	// rejected with an Unauthorized "too many login attempts" error.
	MaxLoginFailures int
	LoginWindow      time.Duration
}

// jwtHeader is the fixed header for the HS256 tokens this package issues
// and the only one it accepts — algorithm confusion attacks (an attacker
// supplying "none" or "RS256") are rejected by ValidateToken regardless of
// what this struct would decode.
type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// OperatorClaims is the JWT payload identifying the authenticated
// operator and the token's validity window.
type OperatorClaims struct {
	Operator  string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Auth issues and validates operator tokens for one deployment's DJ
// credential, grounded on the teacher's bcrypt-at-startup +
// HMAC-SHA256-signed-JWT approach.
type Auth struct {
	username     string
	passwordHash []byte
	jwtSecret    string
	tokenTTL     time.Duration

	limiter *loginLimiter
}

// New builds an Auth instance, hashing cfg.Password with bcrypt
// immediately so the plaintext is never retained or compared at runtime.
func New(cfg Config) *Auth {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxLoginFailures <= 0 {
		cfg.MaxLoginFailures = 5
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = 15 * time.Minute
	}

	if len(cfg.JWTSecret) < 32 {
		slog.Warn("auth: JWT secret is shorter than 32 characters, insecure for production")
	}
	if cfg.JWTSecret == "change-me-in-production-please" {
		slog.Warn("auth: using the default JWT secret, change it before deploying")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("auth: failed to hash operator password, login will always fail", "error", err)
		hash = []byte("$2a$10$INVALIDHASHXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX")
	}

	return &Auth{
		username:     cfg.Username,
		passwordHash: hash,
		jwtSecret:    cfg.JWTSecret,
		tokenTTL:     cfg.TokenTTL,
		limiter:      newLoginLimiter(cfg.MaxLoginFailures, cfg.LoginWindow),
	}
}

// Authenticate checks username/password against the configured operator
// credential and, on success, returns a signed token. remoteAddr (an
// http.Request.RemoteAddr or gin's ClientIP) keys the rate limiter.
func (a *Auth) Authenticate(username, password, remoteAddr string) (string, error) {
	ip := extractIP(remoteAddr)

	if !a.limiter.allow(ip) {
		retryAfter := a.limiter.retryAfter(ip)
		slog.Warn("auth: login rate-limited", "ip", ip, "retry_after_seconds", int(retryAfter.Seconds()))
		return "", radioerr.New(radioerr.Unauthorized, "too many login attempts, try again later")
	}

	usernameMatch := constantTimeEqual(username, a.username)
	// Always run bcrypt even when the username is already known to be
	// wrong, so a mismatched username and a mismatched password take the
	// same amount of time.
	passwordMatch := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil

	if !usernameMatch || !passwordMatch {
		a.limiter.recordFailure(ip)
		return "", radioerr.New(radioerr.Unauthorized, "invalid credentials")
	}

	a.limiter.recordSuccess(ip)
	return a.issueToken(username)
}

// issueToken signs a fresh OperatorClaims for subject.
func (a *Auth) issueToken(subject string) (string, error) {
	now := time.Now()
	claims := OperatorClaims{
		Operator:  subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(a.tokenTTL).Unix(),
	}
	return a.sign(claims)
}

// ValidateToken parses, verifies, and checks the expiry of a bearer token,
// returning its claims on success.
func (a *Auth) ValidateToken(tokenStr string) (*OperatorClaims, error) {
	if len(tokenStr) > 4096 {
		return nil, radioerr.New(radioerr.Unauthorized, "token too long")
	}

	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, radioerr.New(radioerr.Unauthorized, "malformed token")
	}

	headerJSON, err := base64URLDecode(parts[0])
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Unauthorized, "decode token header", err)
	}
	var header jwtHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, radioerr.Wrap(radioerr.Unauthorized, "parse token header", err)
	}
	if header.Alg != "HS256" || header.Typ != "JWT" {
		return nil, radioerr.New(radioerr.Unauthorized, "unsupported token algorithm")
	}

	signingInput := parts[0] + "." + parts[1]
	if !constantTimeEqualB64(a.computeHMAC(signingInput), parts[2]) {
		return nil, radioerr.New(radioerr.Unauthorized, "invalid token signature")
	}

	claimsJSON, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Unauthorized, "decode token claims", err)
	}
	var claims OperatorClaims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, radioerr.Wrap(radioerr.Unauthorized, "parse token claims", err)
	}

	now := time.Now().Unix()
	if now > claims.ExpiresAt {
		return nil, radioerr.New(radioerr.Unauthorized, "token has expired")
	}
	if claims.IssuedAt > now+60 {
		return nil, radioerr.New(radioerr.Unauthorized, "token issued in the future")
	}
	if claims.Operator == "" {
		return nil, radioerr.New(radioerr.Unauthorized, "token has no subject")
	}

	return &claims, nil
}

// operatorClaimsKey is the gin context key GinMiddleware stores validated
// claims under, so a handler downstream of it can look up who's calling
// without re-parsing the bearer token.
const operatorClaimsKey = "auth.operatorClaims"

// GinMiddleware authenticates every request behind it via a Bearer token,
// aborting with a radioerr-shaped 401 on failure. This replaces the
// teacher's net/http Middleware/MiddlewareFunc pair with a single
// gin-native entry point, since every consumer of this package is a gin
// route.
func (a *Auth) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if header == "" || !strings.HasPrefix(header, prefix) {
			abortUnauthorized(c, "authentication required")
			return
		}

		token := strings.TrimSpace(header[len(prefix):])
		claims, err := a.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(operatorClaimsKey, claims)
		c.Next()
	}
}

// OperatorFromContext returns the claims GinMiddleware attached to c, if
// any route ever needs to know which operator issued a request.
func OperatorFromContext(c *gin.Context) (*OperatorClaims, bool) {
	v, ok := c.Get(operatorClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*OperatorClaims)
	return claims, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(radioerr.Unauthorized.HTTPStatus(), gin.H{"status": "error", "error": message})
}

// sign produces a complete signingInput.signature JWT string.
func (a *Auth) sign(claims OperatorClaims) (string, error) {
	header := jwtHeader{Alg: "HS256", Typ: "JWT"}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", radioerr.Wrap(radioerr.Internal, "marshal token header", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", radioerr.Wrap(radioerr.Internal, "marshal token claims", err)
	}

	signingInput := base64URLEncode(headerJSON) + "." + base64URLEncode(claimsJSON)
	return signingInput + "." + a.computeHMAC(signingInput), nil
}

// computeHMAC returns the base64url-encoded HMAC-SHA256 of input under
// the configured JWT secret.
func (a *Auth) computeHMAC(input string) string {
	mac := hmac.New(sha256.New, []byte(a.jwtSecret))
	mac.Write([]byte(input))
	return base64URLEncode(mac.Sum(nil))
}

func constantTimeEqualB64(a, b string) bool {
	aDec, errA := base64URLDecode(a)
	bDec, errB := base64URLDecode(b)
	if errA != nil || errB != nil {
		return false
	}
	return hmac.Equal(aDec, bDec)
}

// constantTimeEqual compares two strings in constant time regardless of
// length, to avoid leaking username existence through timing.
func constantTimeEqual(a, b string) bool {
	h1 := sha256.Sum256([]byte(a))
	h2 := sha256.Sum256([]byte(b))
	return hmac.Equal(h1[:], h2[:])
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(s)
	}
	return data, err
}

// extractIP strips the port from a RemoteAddr/ClientIP string, handling
// both IPv4 ("1.2.3.4:1234") and bracketed IPv6 ("[::1]:1234").
func extractIP(remoteAddr string) string {
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[1:idx]
		}
		return strings.Trim(remoteAddr, "[]")
	}
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}

// loginFailures records one IP's recent failed-login timestamps.
type loginFailures struct {
	timestamps []time.Time
}

// loginLimiter is a sliding-window per-IP failed-login rate limiter.
type loginLimiter struct {
	mu       sync.Mutex
	failures map[string]*loginFailures
	maxFails int
	window   time.Duration
}

func newLoginLimiter(maxFails int, window time.Duration) *loginLimiter {
	l := &loginLimiter{
		failures: make(map[string]*loginFailures),
		maxFails: maxFails,
		window:   window,
	}
	go l.cleanupLoop()
	return l
}

func (l *loginLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.failures[ip]
	if !ok {
		return true
	}
	l.prune(entry)
	return len(entry.timestamps) < l.maxFails
}

func (l *loginLimiter) recordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.failures[ip]
	if !ok {
		entry = &loginFailures{}
		l.failures[ip] = entry
	}
	l.prune(entry)
	entry.timestamps = append(entry.timestamps, time.Now())
}

func (l *loginLimiter) recordSuccess(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, ip)
}

func (l *loginLimiter) retryAfter(ip string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.failures[ip]
	if !ok || len(entry.timestamps) == 0 {
		return 0
	}
	l.prune(entry)
	if len(entry.timestamps) < l.maxFails {
		return 0
	}
	return time.Until(entry.timestamps[0].Add(l.window))
}

// prune drops timestamps outside the window. Caller must hold l.mu.
func (l *loginLimiter) prune(entry *loginFailures) {
	cutoff := time.Now().Add(-l.window)
	n := 0
	for _, t := range entry.timestamps {
		if t.After(cutoff) {
			entry.timestamps[n] = t
			n++
		}
	}
	entry.timestamps = entry.timestamps[:n]
}

func (l *loginLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		for ip, entry := range l.failures {
			l.prune(entry)
			if len(entry.timestamps) == 0 {
				delete(l.failures, ip)
			}
		}
		l.mu.Unlock()
	}
}
