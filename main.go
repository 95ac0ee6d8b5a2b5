package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/smartvest/backend/src/config"
	"github.com/username/smartvest/backend/src/database"
	"github.com/username/smartvest/backend/src/handlers"
	"github.com/username/smartvest/backend/src/logger"
	"github.com/username/smartvest/backend/src/model"
	"github.com/username/smartvest/backend/src/security"
	"github.com/username/smartvest/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":    true,
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("SmartVest backend server starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		stdlog.Fatal("JWT_SECRET configuration invalid: must be at least 32 characters.")
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	quoteService := services.NewQuoteService(
		config.Cfg.FinnhubBaseURL,
		config.Cfg.FinnhubAPIKey,
		config.Cfg.QuoteTimeout,
		config.Cfg.QuoteCacheTTL,
	)
	ledgerStore := model.NewLedgerStore(database.DB)

	assistantService, err := services.NewAssistantService(context.Background(), config.Cfg.GeminiAPIKey, config.Cfg.GeminiModel)
	if err != nil {
		logger.L.Warn("Assistant disabled", "reason", err)
		assistantService = nil
	}

	userHandler := handlers.NewUserHandler(authService, ledgerStore, quoteService)
	txHandler := handlers.NewTransactionHandler(ledgerStore)
	chatHandler := handlers.NewChatHandler(assistantService, ledgerStore, quoteService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "SmartVest API is running!"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", userHandler.RegisterUserHandler)
			r.Post("/auth/login", userHandler.LoginUserHandler)
			r.Get("/users/{username}/profile", userHandler.PublicProfileHandler)
			r.Get("/users/top", userHandler.TopUsersHandler)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(userHandler.AuthMiddleware)

			r.Get("/user/profile", userHandler.ProfileHandler)
			r.Post("/user/profile/privacy", userHandler.UpdatePrivacyHandler)

			r.Post("/transaction/buy", txHandler.HandleBuy)
			r.Post("/transaction/sell", txHandler.HandleSell)
			r.Post("/transaction/deposit", txHandler.HandleDeposit)
			r.Get("/transaction/history", txHandler.HandleHistory)

			r.Post("/chat/send", chatHandler.SendMessageHandler)
			r.Get("/chat/sessions", chatHandler.SessionsHandler)
			r.Get("/chat/history", chatHandler.HistoryHandler)
			r.Delete("/chat/sessions/{sessionID}", chatHandler.DeleteSessionHandler)
		})
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
