package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/neuraletter/neuraletter/internal/scheduler"
	"github.com/neuraletter/neuraletter/internal/store"
	"github.com/neuraletter/neuraletter/pkg/enrich"
)

// Server provides the HTTP API.
type Server struct {
	store   store.Store
	service *enrich.Service
	sched   *scheduler.Scheduler
	port    int
}

// New creates a new HTTP server. sched may be nil when the process runs
// without the scheduling loop.
func New(s store.Store, service *enrich.Service, sched *scheduler.Scheduler, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:   s,
		service: service,
		sched:   sched,
		port:    port,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/topics", s.handleTopics)
	mux.HandleFunc("/api/v1/topics/", s.handleTopicByID)
	mux.HandleFunc("/api/v1/updates", s.handleUpdates)
	mux.HandleFunc("/api/v1/collect", s.handleCollect)
	mux.HandleFunc("/api/v1/agents/generate", s.handleGenerateAgent)

	addr := fmt.Sprintf(":%d", s.port)
	fmt.Fprintf(os.Stderr, "neuraletter server listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTopics(w, r)
	case http.MethodPost:
		s.createTopic(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	var topics []store.Topic
	var err error

	if user := r.URL.Query().Get("user"); user != "" {
		topics, err = s.store.ListTopicsByUser(r.Context(), user)
	} else {
		topics, err = s.store.ListTopics(r.Context())
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  topics,
		"count": len(topics),
	})
}

func (s *Server) createTopic(w http.ResponseWriter, r *http.Request) {
	var topic store.Topic
	if err := json.NewDecoder(r.Body).Decode(&topic); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if topic.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "associated_user_id is required"})
		return
	}
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}

	if err := s.store.CreateTopic(r.Context(), &topic); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// A topic created with a run time goes straight onto the schedule.
	if s.sched != nil && topic.NextUpdateTime != nil {
		s.sched.ScheduleAt(topic.ID, *topic.NextUpdateTime)
	}

	writeJSON(w, http.StatusCreated, topic)
}

func (s *Server) handleTopicByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/topics/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "topic not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		topic, err := s.store.GetTopic(r.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if topic == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "topic not found"})
			return
		}
		writeJSON(w, http.StatusOK, topic)

	case http.MethodDelete:
		if err := s.store.DeleteTopic(r.Context(), id); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if s.sched != nil {
			s.sched.Cancel(id)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.UpdateListOpts{
		TopicID: r.URL.Query().Get("topic"),
		BatchID: r.URL.Query().Get("batch"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}

	updates, err := s.store.ListUpdates(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  updates,
		"count": len(updates),
	})
}

// handleCollect triggers a collection run for one topic. The run happens
// in the background on a fresh context so it outlives the request; the
// response only acknowledges the start.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	topicID := r.URL.Query().Get("topic")
	if topicID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic query parameter is required"})
		return
	}

	topic, err := s.store.GetTopic(r.Context(), topicID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if topic == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "topic not found"})
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "enrich"
	}
	if mode != "enrich" && mode != "crawl" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode must be enrich or crawl"})
		return
	}

	go func() {
		ctx := context.Background()
		var result *enrich.Result
		if mode == "crawl" {
			result = s.service.Crawl(ctx, topic)
		} else {
			result = s.service.Enrich(ctx, topic)
		}
		fmt.Fprintf(os.Stderr, "collect: topic %s %s run finished: %s (%d updates)\n",
			topicID, mode, result.Status, len(result.UpdatesCreated))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "started",
		"topic_id": topicID,
		"mode":     mode,
	})
}

func (s *Server) handleGenerateAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	agent, err := s.service.ProvisionExtractionAgent(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, agent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
