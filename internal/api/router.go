package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/construex/whatsapp-designer/internal/agent"
	"github.com/construex/whatsapp-designer/internal/api/handler"
	customMiddleware "github.com/construex/whatsapp-designer/internal/api/middleware"
	"github.com/construex/whatsapp-designer/internal/config"
	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/construex/whatsapp-designer/internal/gateway"
	"github.com/construex/whatsapp-designer/internal/repository/memory"
	"github.com/construex/whatsapp-designer/internal/repository/postgres"
	"github.com/construex/whatsapp-designer/internal/repository/redis"
	"github.com/construex/whatsapp-designer/internal/service"
	"github.com/construex/whatsapp-designer/internal/session"
	"github.com/construex/whatsapp-designer/internal/whatsapp"
)

// NewRouter creates and configures the HTTP router. Both db and
// redisClient may be nil; the service then runs with in-memory
// deduplication and no transcript persistence.
func NewRouter(cfg *config.Config, db *postgres.DB, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// External collaborators
	messenger := whatsapp.NewClient(whatsapp.Config{
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		GraphBaseURL:  cfg.WhatsApp.GraphBaseURL,
		Timeout:       cfg.WhatsApp.Timeout,
	})

	designAgent := agent.NewClient(agent.Config{
		StartEndpoint:  cfg.Agent.StartEndpoint,
		EditEndpoint:   cfg.Agent.EditEndpoint,
		UploadEndpoint: cfg.Agent.UploadEndpoint,
		AuthorizeToken: cfg.Agent.AuthorizeToken,
		Subdomain:      cfg.Agent.Subdomain,
		UserType:       cfg.Agent.UserType,
		CDNBase:        cfg.Agent.CDNBase,
		Timeout:        cfg.Agent.Timeout,
	})

	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout)

	var deduper domain.Deduper
	if redisClient != nil {
		deduper = redis.NewDeduper(redisClient, cfg.Session.DedupTTL)
	} else {
		deduper = memory.NewDeduper(cfg.Session.DedupTTL)
	}

	var transcripts domain.TranscriptRepository
	if db != nil {
		transcripts = postgres.NewTranscriptRepository(db.Pool)
	}

	// Core services
	store := session.NewStore(cfg.Session.Timeout, cfg.Session.EditTimeout)
	conversation := service.NewConversation(store, messenger, designAgent, gatewayClient, deduper, transcripts)

	// Handlers
	webhookHandler := handler.NewWebhookHandler(conversation, cfg.WhatsApp.VerifyToken)

	r.Get("/health", handler.HealthCheck)
	r.Get("/ready", handler.ReadyCheck(db))

	r.Get("/webhook", webhookHandler.Verify)
	r.Post("/webhook", webhookHandler.Receive)

	if transcripts != nil {
		transcriptHandler := handler.NewTranscriptHandler(transcripts)
		r.Get("/api/v1/users/{userID}/transcripts", transcriptHandler.ListByUser)
	}

	return r
}
