package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
)

const defaultTokenTTL = 24 * time.Hour

// Revoker records logged-out tokens. It is satisfied by
// *cache.RedisRevoker and *cache.MemoryRevoker.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	RevokeIssuedBefore(ctx context.Context, userID int, at time.Time, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string, userID int, issuedAt time.Time) (bool, error)
}

// UserLoader resolves the subject of a token.
type UserLoader interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

func (t *Tokens) issue(userID int) (string, jwt.RegisteredClaims, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	return signed, claims, err
}

func (t *Tokens) parse(tokenString string) (jwt.RegisteredClaims, int, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired(), jwt.WithIssuedAt())
	if err != nil {
		return claims, 0, err
	}
	if !token.Valid {
		return claims, 0, errors.New("invalid token")
	}
	if claims.ID == "" || claims.IssuedAt == nil {
		return claims, 0, errors.New("missing token id")
	}
	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return claims, 0, errors.New("invalid subject")
	}
	return claims, userID, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// Authenticator resolves the bearer token to an active user and places it
// on the request context.
type Authenticator struct {
	tokens  *Tokens
	revoker Revoker
	users   UserLoader
	ErrorReporter
}

func NewAuthenticator(tokens *Tokens, revoker Revoker, users UserLoader, reporter ErrorReporter) *Authenticator {
	return &Authenticator{tokens: tokens, revoker: revoker, users: users, ErrorReporter: reporter}
}

func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		claims, userID, err := a.tokens.parse(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		revoked, err := a.revoker.IsRevoked(r.Context(), claims.ID, userID, claims.IssuedAt.Time)
		if err != nil {
			a.serverError(w, r, err)
			return
		}
		if revoked {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		user, err := a.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			a.serverError(w, r, err)
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusUnauthorized, "Your account has been deactivated. Please contact an administrator.")
			return
		}

		ctx := withUser(r.Context(), user)
		ctx = context.WithValue(ctx, contextTokenKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthHandler provides login, logout and the current-user endpoint.
type AuthHandler struct {
	users   *services.UserService
	tokens  *Tokens
	revoker Revoker
	ErrorReporter
}

func NewAuthHandler(users *services.UserService, tokens *Tokens, revoker Revoker, reporter ErrorReporter) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, revoker: revoker, ErrorReporter: reporter}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, auth *Authenticator) {
	r.Post("/login", handler.Login)
	r.With(auth.RequireAuth).Post("/logout", handler.Logout)
	r.With(auth.RequireAuth).Get("/auth/user", handler.Me)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string     `json:"token"`
	TokenType string     `json:"token_type"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

// Login verifies credentials and returns a fresh token. Tokens issued to
// the user before this login stop working.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	token, claims, err := h.tokens.issue(user.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if err := h.revoker.RevokeIssuedBefore(r.Context(), user.ID, claims.IssuedAt.Time, h.tokens.TTL()); err != nil {
		h.fail(w, r, err)
		return
	}

	writeData(w, http.StatusOK, "Login successful", AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	})
}

// Logout revokes the token used for this request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(contextTokenKey).(jwt.RegisteredClaims)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := h.revoker.Revoke(r.Context(), claims.ID, ttl); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Successfully logged out")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeData(w, http.StatusOK, "", user)
}
