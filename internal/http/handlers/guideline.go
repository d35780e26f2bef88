package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/http/response"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/services"
)

type GuidelineHandler struct {
	log       *logger.Logger
	synthesis services.SynthesisService
	sync      services.SyncService
}

func NewGuidelineHandler(log *logger.Logger, synthesis services.SynthesisService, syncSvc services.SyncService) *GuidelineHandler {
	return &GuidelineHandler{
		log:       log.With("handler", "GuidelineHandler"),
		synthesis: synthesis,
		sync:      syncSvc,
	}
}

type generateRequest struct {
	StartPage    int    `json:"start_page"`
	EndPage      int    `json:"end_page"`
	AutoSyncToDB *bool  `json:"auto_sync_to_db"`
	Version      string `json:"version"`
}

func (h *GuidelineHandler) GenerateGuidelines(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}

	req := generateRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
	}

	mode := domain.GenerationConsolidated
	switch req.Version {
	case "", "v2":
	case "v1":
		mode = domain.GenerationLegacy
	default:
		response.RespondError(c, http.StatusBadRequest, "validation_error", nil)
		return
	}
	autoSync := true
	if req.AutoSyncToDB != nil {
		autoSync = *req.AutoSyncToDB
	}

	report, err := h.synthesis.Run(c.Request.Context(), services.SynthesisInput{
		BookID:    bookID,
		StartPage: req.StartPage,
		EndPage:   req.EndPage,
		Mode:      mode,
		AutoSync:  autoSync,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, report)
}

func (h *GuidelineHandler) ListGuidelines(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	subtopics, err := h.sync.ListGuidelines(c.Request.Context(), bookID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"book_id":         bookID,
		"total_subtopics": len(subtopics),
		"guidelines":      subtopics,
	})
}

// SubtopicHistory returns the append-only revision trail, oldest first.
func (h *GuidelineHandler) SubtopicHistory(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	topicKey := c.Param("topic")
	subtopicKey := c.Param("subtopic")

	subtopic, err := h.sync.GetSubtopic(c.Request.Context(), bookID, topicKey, subtopicKey)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	revisions, err := h.sync.History(c.Request.Context(), subtopic.ID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"subtopic_id": subtopic.ID,
		"revisions":   revisions,
	})
}

func (h *GuidelineHandler) ReviewSubtopic(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	topicKey := c.Param("topic")
	subtopicKey := c.Param("subtopic")

	subtopic, err := h.sync.Review(c.Request.Context(), bookID, topicKey, subtopicKey)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, subtopic)
}
