package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"opsline/internal/repo"
)

type AuthConfig struct {
	JWTSecret              string
	AllowLegacyActorHeader bool
	Logger                 *slog.Logger
}

// Principal is the authenticated caller. EntityID is the active entity
// carried by a token; the X-Entity-Id header overrides it per request.
type Principal struct {
	ActorID     string
	EntityID    string
	Roles       []string
	Permissions []string
	Source      string
}

const (
	sourceJWT    = "jwt"
	sourceAPIKey = "api_key"
	sourceLegacy = "legacy_header"

	devTokenTTL    = 12 * time.Hour
	devTokenIssuer = "opsline-dev"
)

var (
	errNoCredentials      = errors.New("no credentials")
	errInvalidCredentials = errors.New("invalid credentials")
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFromRequest returns the authenticated caller or a 401 error.
func principalFromRequest(ctx context.Context) (Principal, huma.StatusError) {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok && p.ActorID != "" {
		return p, nil
	}
	return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func actorIDFromContext(ctx context.Context) (string, huma.StatusError) {
	p, err := principalFromRequest(ctx)
	if err != nil {
		return "", err
	}
	return p.ActorID, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Entity      string   `json:"ent,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// authenticator resolves a Principal from bearer tokens, API keys or, when
// enabled, the unauthenticated X-Actor-Id header, in that order.
type authenticator struct {
	cfg  AuthConfig
	repo repo.Repo
}

func (a authenticator) logger() *slog.Logger {
	if a.cfg.Logger != nil {
		return a.cfg.Logger
	}
	return slog.Default()
}

func (a authenticator) authenticate(req *http.Request) (Principal, error) {
	if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
		token, ok := bearerToken(authz)
		if !ok {
			return Principal{}, errInvalidCredentials
		}
		return a.fromJWT(token)
	}
	if key := strings.TrimSpace(req.Header.Get("X-Api-Key")); key != "" {
		return a.fromAPIKey(req.Context(), key)
	}
	if actor := strings.TrimSpace(req.Header.Get("X-Actor-Id")); actor != "" && a.cfg.AllowLegacyActorHeader {
		a.logger().Warn("legacy X-Actor-Id header used without authentication", "actor_id", actor, "path", req.URL.Path)
		return Principal{ActorID: actor, Source: sourceLegacy}, nil
	}
	return Principal{}, errNoCredentials
}

func (a authenticator) fromJWT(token string) (Principal, error) {
	if strings.TrimSpace(a.cfg.JWTSecret) == "" {
		return Principal{}, errInvalidCredentials
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Principal{}, errInvalidCredentials
	}
	return Principal{
		ActorID:     claims.Subject,
		EntityID:    claims.Entity,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		Source:      sourceJWT,
	}, nil
}

func (a authenticator) fromAPIKey(ctx context.Context, key string) (Principal, error) {
	apiKey, err := a.repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			a.logger().Error("api key lookup failed", "error", err)
		}
		return Principal{}, errInvalidCredentials
	}
	if apiKey.ActorID == "" {
		return Principal{}, errInvalidCredentials
	}
	return Principal{ActorID: apiKey.ActorID, Source: sourceAPIKey}, nil
}

// signDevToken mints an HS256 token for local testing.
func signDevToken(secret string, req DevLoginRequest, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(req.ActorID),
			Issuer:    devTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(devTokenTTL)),
		},
		Entity:      strings.TrimSpace(req.EntityID),
		Roles:       req.Roles,
		Permissions: req.Permissions,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware attaches the Principal to every request under basePath
// except the open paths. Missing credentials and bad credentials are both 401
// with different codes.
func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	a := authenticator{cfg: cfg, repo: r}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if (basePath != "" && !strings.HasPrefix(req.URL.Path, basePath)) || open[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			principal, err := a.authenticate(req)
			switch {
			case errors.Is(err, errNoCredentials):
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			case err != nil:
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
