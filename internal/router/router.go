// Package router monta as rotas HTTP e a cadeia de middlewares.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/KromaEnergia/api-auth/internal/auth"
	"github.com/KromaEnergia/api-auth/internal/config"
	"github.com/KromaEnergia/api-auth/internal/csrf"
	"github.com/KromaEnergia/api-auth/internal/notificacao"
	"github.com/KromaEnergia/api-auth/internal/ratelimit"
	"github.com/KromaEnergia/api-auth/internal/usuario"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App reúne o handler final e os componentes que o main precisa controlar.
type App struct {
	Handler      http.Handler
	Issuer       *auth.Issuer
	RefreshStore *auth.RefreshStore
}

// New constrói todos os componentes a partir da Config. Falha apenas por
// configuração inválida (ex.: segredo ausente), o que deve abortar a inicialização.
func New(cfg config.Config, db *gorm.DB, rateStore ratelimit.Store, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	issuer, err := auth.NewIssuer(cfg.AccessSecret, cfg.RefreshSecret, auth.NewEmailRoleResolver(cfg.AdminEmails))
	if err != nil {
		return nil, err
	}

	credentials := usuario.NewCredentialStore(db)
	store := auth.NewRefreshStore(db, issuer, credentials, cfg.MaxRefreshTokensPerUser, logger.Named("refresh"))
	store.RevokeFamilyOnReuse = cfg.RevokeFamilyOnReuse
	if cfg.SecurityWebhookURL != "" {
		store.Alerter = notificacao.NewWebhook(cfg.SecurityWebhookURL, logger.Named("webhook"))
	}

	service := auth.NewService(credentials, issuer, store, logger.Named("auth"))
	authHandler := auth.NewHandler(service, cfg.TrustProxy)
	usuarioHandler := usuario.NewHandler(db, service, logger.Named("usuario"))

	guard := csrf.New(csrf.Options{
		Secret:       cfg.CSRFSecret,
		TestMode:     cfg.IsTest(),
		CookieSecure: cfg.CookieSecure,
		Binding:      cfg.CSRFSessionBinding,
		TrustProxy:   cfg.TrustProxy,
	}, logger.Named("csrf"))

	global := ratelimit.New(rateStore, "global", cfg.GlobalRateMax, cfg.GlobalRateWindow, ratelimit.GlobalMessage)
	global.TrustProxy = cfg.TrustProxy
	global.Logger = logger.Named("ratelimit")

	login := ratelimit.New(rateStore, "login", cfg.LoginRateMax, cfg.LoginRateWindow, ratelimit.LoginMessage)
	login.SkipSuccessful = true
	login.TrustProxy = cfg.TrustProxy
	login.Logger = logger.Named("ratelimit")

	r := mux.NewRouter()
	r.Use(global.Middleware, requestLogger(logger.Named("http")))

	r.HandleFunc("/health", health).Methods(http.MethodGet)

	// Rotas de autenticação (sem CSRF)
	authR := r.PathPrefix("/auth").Subrouter()
	authR.HandleFunc("/register", usuarioHandler.Register).Methods(http.MethodPost)
	authR.Handle("/login", login.Middleware(http.HandlerFunc(authHandler.Login))).Methods(http.MethodPost)
	authR.HandleFunc("/refresh", authHandler.Refresh).Methods(http.MethodPost)
	authR.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/csrf-token", guard.Handler).Methods(http.MethodGet)

	// Rotas protegidas: access token + CSRF nas mutações
	protected := api.NewRoute().Subrouter()
	protected.Use(auth.Middleware(issuer, logger.Named("auth")), guard.Protect)
	protected.HandleFunc("/me", usuarioHandler.Me).Methods(http.MethodGet)
	protected.HandleFunc("/me", usuarioHandler.AtualizarMe).Methods(http.MethodPut)
	protected.HandleFunc("/me/password", usuarioHandler.AlterarSenha).Methods(http.MethodPut)
	protected.HandleFunc("/auth/logout-all", authHandler.LogoutAll).Methods(http.MethodPost)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireAdmin)
	admin.HandleFunc("/usuarios/{id}/logout-all", usuarioHandler.EncerrarSessoes).Methods(http.MethodPost)
	admin.HandleFunc("/usuarios/{id}/reset-senha", usuarioHandler.ResetarSenha).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", csrf.HeaderName},
		AllowCredentials: true,
	})

	return &App{
		Handler:      c.Handler(r),
		Issuer:       issuer,
		RefreshStore: store,
	}, nil
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
