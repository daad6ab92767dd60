package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/ledger"
)

type Claims struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	jwt.RegisteredClaims
}

type contextKey int

const (
	claimsKey contextKey = iota
	chatKey
)

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func chatFrom(ctx context.Context) *ledger.Chat {
	c, _ := ctx.Value(chatKey).(*ledger.Chat)
	return c
}

// Auth handlers
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := generateRandomString(32)
	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": a.oauthConfig.AuthCodeURL(state),
		"state":    state,
	})
}

func (a *API) issueToken(user *DiscordUser, accessToken string, now time.Time) (string, error) {
	claims := &Claims{
		UserID:      user.ID,
		Username:    getUsername(user),
		AccessToken: accessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return token, nil
}

func (a *API) authenticateUser(ctx context.Context, code string) (string, *DiscordUser, error) {
	token, err := a.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("token exchange failed: %w", err)
	}

	user, err := a.discord.User(ctx, token.AccessToken)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	tokenString, err := a.issueToken(user, token.AccessToken, time.Now())
	if err != nil {
		return "", nil, err
	}
	return tokenString, user, nil
}

func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}

	tokenString, user, err := a.authenticateUser(r.Context(), code)
	if err != nil {
		a.log.Warn("login failed", zap.String("request_id", requestID(r)), zap.Error(err))
		writeError(w, http.StatusBadGateway, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":    tokenString,
		"user_id":  user.ID,
		"username": getUsername(user),
	})
}

// Tokens are stateless; the client drops its copy.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// Middleware
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return a.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// chatAccessMiddleware admits callers who belong to the chat's guild.
func (a *API) chatAccessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		chatID := mux.Vars(r)["chat_id"]

		chat, err := a.engine.Chat(r.Context(), chatID)
		if errors.Is(err, ledger.ErrChatNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		if err != nil {
			a.internalError(w, r, "load chat", err)
			return
		}

		ok, err := a.userHasGuildAccess(r.Context(), claims.AccessToken, chat.GuildID)
		if err != nil {
			a.log.Warn("guild lookup failed", zap.String("request_id", requestID(r)), zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to get guilds")
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		ctx := context.WithValue(r.Context(), chatKey, chat)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) userHasGuildAccess(ctx context.Context, accessToken, guildID string) (bool, error) {
	if guildID == "" {
		return false, nil
	}
	guilds, err := a.discord.Guilds(ctx, accessToken)
	if err != nil {
		return false, err
	}
	for _, guild := range guilds {
		if guild.ID == guildID {
			return true, nil
		}
	}
	return false, nil
}
