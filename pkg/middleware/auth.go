package middleware

import (
	"context"
	"errors"
	"net/http"
	"noqbot/pkg/config"
	apperrors "noqbot/pkg/errors"
	httputil "noqbot/pkg/http"
	"noqbot/pkg/logger"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

const (
	identityKey contextKey = "identity"

	AuthCookieName = "noqbot_token"
)

var errMissingToken = errors.New("missing bearer token")

// Claims is the access token payload issued by the auth service.
type Claims struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	ClientID string `json:"clientId,omitempty"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID   string
	Role     string
	ClientID string
}

// CanAccessClient reports whether the identity may act on clientID.
func (i Identity) CanAccessClient(clientID string) bool {
	if i.Role == config.RoleSuperAdmin {
		return true
	}
	return i.ClientID != "" && i.ClientID == clientID
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

type Authenticator struct {
	secret    []byte
	log       *logger.Logger
	skipPaths map[string]bool
}

func NewAuthenticator(secret string, log *logger.Logger, skipPaths []string) *Authenticator {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	if secret == "" {
		log.Warn("JWT secret not configured, every authenticated route will answer 401")
	}
	return &Authenticator{secret: []byte(secret), log: log, skipPaths: skip}
}

// Handler resolves the caller identity from a Bearer token or the auth cookie.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.authenticate(r)
		if err != nil {
			a.log.Warn("Authentication failed",
				"request_id", RequestIDFromContext(r.Context()),
				"path", r.URL.Path,
				"error", err,
			)
			_ = httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		ctx := WithIdentity(r.Context(), Identity{
			UserID:   claims.UserID,
			Role:     claims.Role,
			ClientID: claims.ClientID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("authentication disabled")
	}

	token := extractToken(r)
	if token == "" {
		return nil, errMissingToken
	}

	return ParseToken(a.secret, token)
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}

func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" || !validRole(claims.Role) {
		return nil, errors.New("token missing userId or role")
	}
	return claims, nil
}

// SignToken issues an HS256 token for id. Used by tooling and tests.
func SignToken(secret []byte, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   id.UserID,
		Role:     id.Role,
		ClientID: id.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func validRole(role string) bool {
	switch role {
	case config.RoleSuperAdmin, config.RoleClientAdmin, config.RoleStaff:
		return true
	}
	return false
}

// RequireRole gates a route on the caller's role and on the :clientId path
// parameter matching the caller's tenant.
func RequireRole(log *logger.Logger, next httprouter.Handle, roles ...string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			_ = httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		if !slices.Contains(roles, id.Role) {
			log.Warn("Role not allowed",
				"request_id", RequestIDFromContext(r.Context()),
				"user_id", id.UserID,
				"role", id.Role,
				"path", r.URL.Path,
			)
			_ = httputil.WriteError(w, apperrors.Forbidden("Forbidden"))
			return
		}

		if clientID := ps.ByName("clientId"); clientID != "" && !id.CanAccessClient(clientID) {
			log.Warn("Cross-tenant access denied",
				"request_id", RequestIDFromContext(r.Context()),
				"user_id", id.UserID,
				"token_client_id", id.ClientID,
				"client_id", clientID,
			)
			_ = httputil.WriteError(w, apperrors.Forbidden("Forbidden"))
			return
		}

		next(w, r, ps)
	}
}
