package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/susu3304/debitbot/internal/config"
	"github.com/susu3304/debitbot/internal/engine"
)

type API struct {
	router      *mux.Router
	engine      *engine.Engine
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	discord     DiscordClient
	metrics     http.Handler
	health      func(ctx context.Context) error
	log         *zap.Logger
	server      *http.Server
}

type Option func(*API)

// WithDiscord replaces the Discord REST client used for login and guild
// checks.
func WithDiscord(c DiscordClient) Option {
	return func(a *API) { a.discord = c }
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// WithHealthCheck makes /healthz report the result of check.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(a *API) { a.health = check }
}

func New(cfg *config.Config, eng *engine.Engine, log *zap.Logger, opts ...Option) *API {
	api := &API{
		router:    mux.NewRouter(),
		engine:    eng,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		discord:   newDiscordHTTP(http.DefaultClient),
		log:       log,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}
	for _, o := range opts {
		o(api)
	}

	api.setupRoutes()
	api.server = &http.Server{
		Addr:              cfg.WebBind,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return api
}

func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)

	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	if a.metrics != nil {
		a.router.Handle("/metrics", a.metrics).Methods("GET")
	}

	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/user/guilds", a.handleUserGuilds).Methods("GET")

	chats := protected.PathPrefix("/chats/{chat_id}").Subrouter()
	chats.Use(a.chatAccessMiddleware)
	chats.HandleFunc("/state", a.handleState).Methods("GET")
	chats.HandleFunc("/groups", a.handleGroups).Methods("GET")
	chats.HandleFunc("/logs", a.handleLogs).Methods("GET")
	chats.HandleFunc("/stats/{name}", a.handleStat).Methods("GET")
	chats.HandleFunc("/commands", a.handleCommand).Methods("POST")
}

// Handler returns the router wrapped in CORS handling.
func (a *API) Handler() http.Handler {
	// With a wildcard origin, credentials must stay disabled.
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	a.log.Info("API server listening", zap.String("addr", "http://"+a.config.WebBind))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
