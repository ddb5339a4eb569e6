// Package server exposes the engines over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/chat"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/pipeline"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/search"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/store"
)

// Server wires the HTTP routes to the engines.
type Server struct {
	repo     store.Repository
	pipe     *pipeline.Pipeline
	search   *search.Engine
	chat     *chat.Engine
	interval float64
	log      *slog.Logger
}

func New(repo store.Repository, pipe *pipeline.Pipeline, searchEngine *search.Engine, chatEngine *chat.Engine, frameInterval float64, log *slog.Logger) *Server {
	return &Server{
		repo:     repo,
		pipe:     pipe,
		search:   searchEngine,
		chat:     chatEngine,
		interval: frameInterval,
		log:      log,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)

	r.Route("/videos", func(r chi.Router) {
		r.Post("/", s.handleSubmitVideo)
		r.Get("/", s.handleListVideos)
		r.Route("/{videoID}", func(r chi.Router) {
			r.Get("/", s.handleGetVideo)
			r.Delete("/", s.handleDeleteVideo)
			r.Post("/process", s.handleProcess)

			r.Post("/transcript", s.handleAcquireTranscript)
			r.Get("/transcript", s.handleGetTranscript)

			r.Post("/sections", s.handleBuildSections)
			r.Post("/sections/regenerate", s.handleBuildSections)
			r.Get("/sections", s.handleGetSections)

			r.Post("/frames", s.handleSampleFrames)
			r.Get("/frames", s.handleGetFrames)
			r.Get("/frames/summary", s.handleFrameSummary)

			r.Post("/embeddings", s.handleIndexEmbeddings)

			r.Post("/search", s.handleSearch)
			r.Post("/search/timestamp", s.handleTimestampSearch)
			r.Post("/search/image", s.handleImageSearch)

			r.Post("/chat", s.handleChat)
			r.Get("/questions", s.handleQuestions)
		})
	})
	r.Get("/conversations/{conversationID}", s.handleGetConversation)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond))
	})
}
