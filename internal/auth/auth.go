package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const callerContextKey contextKey = "caller"

const (
	issuer = "eventharvest"

	// secretCaller identifies requests authorized with the raw shared secret.
	secretCaller = "cron"
)

// Claims represents the JWT claims a scheduler may present instead of the
// raw secret.
type Claims struct {
	Caller string `json:"caller"`
	jwt.RegisteredClaims
}

// GenerateToken creates an HS256 token signed with the cron secret.
func GenerateToken(caller string, secret string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Caller: caller,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns the caller.
func ValidateToken(tokenString string, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.Caller, nil
	}

	return "", fmt.Errorf("invalid token")
}

// Authorize checks the request's bearer credential against secret. The
// credential may be the secret itself or a token signed with it. An empty
// secret disables the check.
func Authorize(r *http.Request, secret string) (string, bool) {
	if secret == "" {
		return secretCaller, true
	}

	header := r.Header.Get("Authorization")
	credential, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || credential == "" {
		return "", false
	}

	if subtle.ConstantTimeCompare([]byte(credential), []byte(secret)) == 1 {
		return secretCaller, true
	}

	caller, err := ValidateToken(credential, secret)
	if err != nil {
		return "", false
	}
	return caller, true
}

// CronMiddleware rejects requests that fail Authorize with 401 and a JSON
// error body.
func CronMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := Authorize(r, secret)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
				return
			}

			ctx := context.WithValue(r.Context(), callerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext returns who authorized the request.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerContextKey).(string)
	return caller, ok
}
