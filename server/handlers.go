package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/frames"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitVideoRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (s *Server) handleSubmitVideo(w http.ResponseWriter, r *http.Request) {
	var req submitVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, core.NewError(core.KindInvalidInput, "invalid JSON body"))
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.fail(w, core.NewError(core.KindInvalidInput, "url is required"))
		return
	}
	video := &core.VideoAsset{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Title:     strings.TrimSpace(req.Title),
		Status:    core.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateVideo(r.Context(), video); err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusCreated, video)
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.repo.ListVideos(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.repo.GetVideo(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, video)
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.Delete(r.Context(), chi.URLParam(r, "videoID")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipe.Process(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleAcquireTranscript(w http.ResponseWriter, r *http.Request) {
	segs, err := s.pipe.AcquireTranscript(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"segments": segs})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	segs, err := s.repo.Segments(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"segments": segs})
}

func (s *Server) handleBuildSections(w http.ResponseWriter, r *http.Request) {
	secs, err := s.pipe.BuildSections(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"sections": secs})
}

func (s *Server) handleGetSections(w http.ResponseWriter, r *http.Request) {
	secs, err := s.repo.Sections(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"sections": secs})
}

func (s *Server) handleSampleFrames(w http.ResponseWriter, r *http.Request) {
	fs, err := s.pipe.SampleFrames(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"frames": fs})
}

func (s *Server) handleGetFrames(w http.ResponseWriter, r *http.Request) {
	fs, err := s.repo.Frames(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"frames": fs})
}

func (s *Server) handleFrameSummary(w http.ResponseWriter, r *http.Request) {
	fs, err := s.repo.Frames(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, frames.Summarize(fs, s.interval))
}

func (s *Server) handleIndexEmbeddings(w http.ResponseWriter, r *http.Request) {
	report, err := s.pipe.IndexEmbeddings(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, report)
}

type searchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	TopK  *int   `json:"top_k"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, core.NewError(core.KindInvalidInput, "invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.fail(w, core.NewError(core.KindInvalidInput, "query is required"))
		return
	}
	topK := s.search.DefaultTopK()
	if req.TopK != nil {
		topK = *req.TopK
	}
	results, err := s.search.Query(r.Context(), chi.URLParam(r, "videoID"), req.Query, req.Mode, topK)
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

type imageSearchRequest struct {
	Image     string `json:"image"` // base64-encoded query image
	ImagePath string `json:"image_path"`
	TopK      *int   `json:"top_k"`
}

func (s *Server) handleImageSearch(w http.ResponseWriter, r *http.Request) {
	var req imageSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, core.NewError(core.KindInvalidInput, "invalid JSON body"))
		return
	}
	path := strings.TrimSpace(req.ImagePath)
	if req.Image != "" {
		data, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			s.fail(w, core.NewError(core.KindInvalidInput, "image is not valid base64"))
			return
		}
		tmp, err := os.CreateTemp("", "query-*.jpg")
		if err != nil {
			s.fail(w, err)
			return
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			s.fail(w, err)
			return
		}
		tmp.Close()
		path = tmp.Name()
	}
	if path == "" {
		s.fail(w, core.NewError(core.KindInvalidInput, "image or image_path is required"))
		return
	}
	topK := s.search.DefaultTopK()
	if req.TopK != nil {
		topK = *req.TopK
	}
	results, err := s.search.QueryByImage(r.Context(), chi.URLParam(r, "videoID"), path, topK)
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

type timestampSearchRequest struct {
	Timestamp float64 `json:"timestamp"`
	Radius    float64 `json:"radius_sec"`
}

func (s *Server) handleTimestampSearch(w http.ResponseWriter, r *http.Request) {
	var req timestampSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, core.NewError(core.KindInvalidInput, "invalid JSON body"))
		return
	}
	res, err := s.search.Window(r.Context(), chi.URLParam(r, "videoID"), req.Timestamp, req.Radius)
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, res)
}

type chatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, core.NewError(core.KindInvalidInput, "invalid JSON body"))
		return
	}
	answer, err := s.chat.Ask(r.Context(), chi.URLParam(r, "videoID"), req.ConversationID, req.Question)
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, answer)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.chat.SuggestedQuestions(r.Context(), chi.URLParam(r, "videoID"), 4)
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.repo.GetConversation(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, conv)
}

// fail maps structured error kinds onto HTTP status codes. Untyped errors
// are logged and surfaced as a generic 500 so provider payloads never leak.
func (s *Server) fail(w http.ResponseWriter, err error) {
	kind := core.ErrKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case core.KindInvalidInput, core.KindInvalidMode, core.KindInvalidTopK:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindAlreadyProcessing:
		status = http.StatusConflict
	case core.KindVideoNotReady, core.KindNoSearchableContent:
		status = http.StatusConflict
	case core.KindAcquisitionFailed, core.KindSegmentationFailed, core.KindFrameExtraction:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
		core.WriteJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	core.WriteJSON(w, status, map[string]string{"error": err.Error(), "kind": string(kind)})
}
