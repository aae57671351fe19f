package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/cache"
	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/repository"
)

const (
	// minAuthDuration is the minimum time spent on failed credential checks
	// to blunt timing attacks against the key lookup.
	minAuthDuration = 200 * time.Millisecond

	// touchTimeout bounds the async last_used_at update.
	touchTimeout = 5 * time.Second
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger          *slog.Logger
	Repository      *repository.Repository
	Cache           *cache.Cache
	SessionVerifier *auth.SessionVerifier
}

// Auth returns a middleware that authenticates API requests. Two bearer
// forms are accepted on the same header: extension keys (bk_ prefix,
// verified against argon2id hashes with a Redis-cached fast path) and
// session JWTs minted by the web identity provider. The resulting
// AuthContext is injected into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_credentials")
				writeAuthError(w)
				return
			}

			if auth.IsExtensionKey(token) {
				authenticateExtensionKey(cfg, w, r, next, token)
				return
			}

			authenticateSession(cfg, w, r, next, token)
		})
	}
}

// authenticateSession validates a session JWT and forwards the request.
func authenticateSession(cfg AuthConfig, w http.ResponseWriter, r *http.Request, next http.Handler, token string) {
	claims, err := cfg.SessionVerifier.Verify(token)
	if err != nil {
		logAuthFailure(cfg.Logger, r, "invalid_session_token")
		writeAuthError(w)
		return
	}

	authCtx := &model.AuthContext{
		UserID: claims.Subject,
		Email:  claims.Email,
		Source: model.AuthSourceSession,
	}

	ctx := auth.ContextWithAuth(r.Context(), authCtx)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// authenticateExtensionKey validates an extension key, cache-first, and
// forwards the request on success.
func authenticateExtensionKey(cfg AuthConfig, w http.ResponseWriter, r *http.Request, next http.Handler, token string) {
	startTime := time.Now()

	// Keep failed verifications at a roughly constant duration.
	failed := true
	defer func() {
		if !failed {
			return
		}
		elapsed := time.Since(startTime)
		if elapsed < minAuthDuration {
			time.Sleep(minAuthDuration - elapsed)
		}
	}()

	parsed, err := auth.ParseExtensionKey(token)
	if err != nil {
		logAuthFailure(cfg.Logger, r, "invalid_key_format")
		writeAuthError(w)
		return
	}

	// Check cache first
	cacheKey := auth.QuickHash(token)
	authCtx, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey)

	if authCtx != nil {
		failed = false
		cfg.Logger.Debug("authentication successful",
			slog.String("key_id", authCtx.KeyID),
			slog.String("user_id", authCtx.UserID),
			slog.Bool("cache_hit", true),
			slog.String("request_id", GetRequestID(r.Context())),
		)

		ctx := auth.ContextWithAuth(r.Context(), authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
		return
	}

	// Cache miss - lookup by prefix
	keys, err := cfg.Repository.GetExtensionKeysByPrefix(r.Context(), parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		writeAuthError(w)
		return
	}

	// Verify against each candidate key (handles prefix collisions)
	var matchedKey *model.ExtensionKey
	for _, k := range keys {
		match, err := auth.VerifySecret(token, k.KeyHash)
		if err != nil {
			continue
		}
		if match {
			matchedKey = k
			break
		}
	}

	if matchedKey == nil || matchedKey.IsRevoked() {
		logAuthFailure(cfg.Logger, r, "invalid_key")
		writeAuthError(w)
		return
	}

	authCtx = &model.AuthContext{
		UserID: matchedKey.UserID,
		Source: model.AuthSourceExtensionKey,
		KeyID:  matchedKey.ID,
		Scopes: matchedKey.Scopes,
	}

	// Cache the result. Revocation takes effect once the TTL lapses.
	_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)

	// Update last_used_at asynchronously, detached from the request context.
	keyID := matchedKey.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		_ = cfg.Repository.TouchExtensionKey(ctx, keyID)
	}()

	failed = false
	cfg.Logger.Debug("authentication successful",
		slog.String("key_id", authCtx.KeyID),
		slog.String("user_id", authCtx.UserID),
		slog.Bool("cache_hit", false),
		slog.String("request_id", GetRequestID(r.Context())),
	)

	ctx := auth.ContextWithAuth(r.Context(), authCtx)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// extractBearer pulls the bearer token from the Authorization header.
func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"invalid or missing credentials","errorCode":1000}`))
}
