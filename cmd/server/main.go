package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"securechat/internal/common"
	"securechat/internal/dbmysql"
	"securechat/internal/di"
)

func main() {
	log.Println("Starting secure chat server...")

	app, cleanup, err := di.InitializeApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer cleanup()

	// Migrations run in main, once, at startup.
	if err := app.DB.AutoMigrate(
		&dbmysql.User{},
		&dbmysql.Conversation{},
		&dbmysql.ConversationParticipant{},
		&dbmysql.Message{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	cfg := app.Config

	router := mux.NewRouter()
	router.Use(common.LoggingMiddleware)
	router.Use(common.CORSMiddleware(cfg.Server.CORSAllowOrigin))

	general := common.NewRateLimiter(cfg.RateLimit.GeneralRPS, cfg.RateLimit.Burst)
	messages := common.NewRateLimiter(cfg.RateLimit.MessagesRPS, cfg.RateLimit.Burst)
	router.Use(general.Middleware)
	router.Use(routeMiddleware(messages.Middleware, http.MethodPost, "/messages"))

	identity := common.IdentityMiddleware(cfg.Auth.JWTEnabled, cfg.Auth.JWTSecret)
	router.Use(skipPublicRoutes(identity))

	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	app.UserHandler.RegisterRoutes(router)
	app.ChatHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// routeMiddleware applies mw only to requests matching method and path.
func routeMiddleware(mw mux.MiddlewareFunc, method, path string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == method && r.URL.Path == path {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// skipPublicRoutes exempts registration, login, health, and avatar downloads
// from the identity requirement.
func skipPublicRoutes(identity mux.MiddlewareFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		protected := identity(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r) {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func isPublicRoute(r *http.Request) bool {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/users":
		return true
	case r.Method == http.MethodPost && r.URL.Path == "/login":
		return true
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		return true
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/avatars/"):
		return true
	}
	return false
}
