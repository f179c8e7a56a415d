// Package server is the HTTP surface of the analysis engine.
package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/core"
	"github.com/lacunalabs/lacuna/internal/core/extraction"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
	"github.com/lacunalabs/lacuna/internal/store"
)

// changePollTimeout bounds how long GET /changes holds a connection open
// before answering with an empty change set.
const changePollTimeout = 25 * time.Second

type Server struct {
	Engine *core.Engine
	Store  store.Store
	Log    *zap.Logger
}

func NewServer(engine *core.Engine, st store.Store, log *zap.Logger) *Server {
	return &Server{Engine: engine, Store: st, Log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/documents", s.UploadDocuments)
	r.GET("/documents", s.ListDocuments)
	r.GET("/documents/:id", s.GetDocument)
	r.DELETE("/documents/:id", s.DeleteDocument)

	r.POST("/analysis/run", s.RunAnalysis)

	r.GET("/topics", s.ListTopics)
	r.GET("/graph", s.TopicNetwork)
	r.GET("/gaps", s.ListGaps)
	r.GET("/contradictions", s.ListContradictions)
	r.POST("/contradictions/:id/status", s.UpdateContradictionStatus)
	r.GET("/questions", s.ListQuestions)

	r.GET("/settings", s.GetSettings)
	r.PUT("/settings", s.UpdateSettings)

	r.GET("/changes", s.PollChanges)

	return r
}

// UploadDocuments accepts a multipart form with one or more "files" parts
// and runs the full ingestion pipeline over them before responding.
func (s *Server) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	files := make([]extraction.IngestFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file: " + header.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file: " + header.Filename})
			return
		}
		files = append(files, extraction.IngestFile{Name: header.Filename, Content: content})
	}

	results, err := s.Engine.IngestDocuments(c.Request.Context(), files)
	if errors.Is(err, extraction.ErrIngestRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.Log.Error("document upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) ListDocuments(c *gin.Context) {
	docs, err := s.Store.ListDocuments(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) GetDocument(c *gin.Context) {
	doc, err := s.Store.GetDocument(c.Request.Context(), ids.DocumentID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) DeleteDocument(c *gin.Context) {
	err := s.Engine.DeleteDocument(c.Request.Context(), ids.DocumentID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) RunAnalysis(c *gin.Context) {
	summary, err := s.Engine.RunAnalysis(c.Request.Context())
	if errors.Is(err, core.ErrAnalysisRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.Log.Error("analysis run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) ListTopics(c *gin.Context) {
	topics, err := s.Store.ListTopics(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

func (s *Server) TopicNetwork(c *gin.Context) {
	network, err := s.Engine.TopicNetwork(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, network)
}

func (s *Server) ListGaps(c *gin.Context) {
	gaps, err := s.Store.ListGaps(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gaps": gaps})
}

func (s *Server) ListContradictions(c *gin.Context) {
	contradictions, err := s.Store.ListContradictions(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contradictions": contradictions})
}

type updateStatusRequest struct {
	Status model.ContradictionStatus `json:"status"`
}

func (s *Server) UpdateContradictionStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	switch req.Status {
	case model.ContradictionPending, model.ContradictionConfirmed, model.ContradictionDismissed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	err := s.Store.UpdateContradictionStatus(c.Request.Context(), ids.ContradictionID(c.Param("id")), req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) ListQuestions(c *gin.Context) {
	questions, err := s.Store.ListQuestions(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (s *Server) GetSettings(c *gin.Context) {
	settings, err := s.Store.EnsureSettings(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	// The API key never leaves the server.
	settings.APIKey = ""
	c.JSON(http.StatusOK, settings)
}

func (s *Server) UpdateSettings(c *gin.Context) {
	var req model.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.ChunkSize <= 0 || req.ChunkOverlap < 0 || req.ChunkOverlap >= req.ChunkSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chunking settings"})
		return
	}
	if req.ExtractionConcurrency <= 0 || req.QuestionConcurrency <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "concurrency must be positive"})
		return
	}

	// An omitted API key keeps the stored one.
	if req.APIKey == "" {
		current, err := s.Store.EnsureSettings(c.Request.Context())
		if err != nil {
			s.fail(c, err)
			return
		}
		req.APIKey = current.APIKey
	}

	if err := s.Engine.UpdateSettings(c.Request.Context(), &req); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// PollChanges long-polls the store's change feed. It answers with the kinds
// that changed since the request began, or an empty list on timeout.
func (s *Server) PollChanges(c *gin.Context) {
	events, cancel := s.Store.Subscribe(16)
	defer cancel()

	timer := time.NewTimer(changePollTimeout)
	defer timer.Stop()

	changed := []store.EntityKind{}
	select {
	case ev, ok := <-events:
		if ok {
			changed = append(changed, ev.Kind)
			// Drain whatever arrived in the same burst.
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						c.JSON(http.StatusOK, gin.H{"changed": changed})
						return
					}
					changed = append(changed, ev.Kind)
				default:
					c.JSON(http.StatusOK, gin.H{"changed": changed})
					return
				}
			}
		}
	case <-timer.C:
	case <-c.Request.Context().Done():
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	s.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
