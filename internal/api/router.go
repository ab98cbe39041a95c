package api

import (
	"net/http"
	"time"

	// Registers the swagger docs served under /api/swagger.
	_ "docdash/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// jsonTimeout bounds every non-streaming request.
const jsonTimeout = 60 * time.Second

// NewRouter wires the handlers into a chi router. allowedOrigins feeds the
// CORS policy for the browser dashboard; an empty list allows any origin.
func NewRouter(chatHandler *ChatHandler, modelHandler *ModelHandler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
	}).Handler)

	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(jsonTimeout))

			r.Get("/settings", chatHandler.GetSettings)
			r.Post("/settings", chatHandler.UpdateSettings)

			r.Get("/conversations", chatHandler.ListConversations)
			r.Post("/conversations", chatHandler.CreateConversation)
			r.Get("/conversations/{conversationID}", chatHandler.GetConversation)
			r.Put("/conversations/{conversationID}/title", chatHandler.RenameConversation)
			r.Delete("/conversations/{conversationID}", chatHandler.DeleteConversation)

			r.Get("/models", modelHandler.HandleListModels)
		})

		// Replies can take minutes, so neither route has a timeout. The
		// fallback still ends when the client cancels.
		r.Group(func(r chi.Router) {
			r.Post("/conversations/{conversationID}/messages/stream", chatHandler.HandleStreamMessage)
			r.Post("/conversations/{conversationID}/messages", chatHandler.HandleMessage)
		})
	})

	return r
}
