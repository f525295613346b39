package http

import (
	"net/http"
	"strconv"

	"github.com/bazasystems/madaris/internal/auth"
	"github.com/bazasystems/madaris/internal/models"
	"github.com/bazasystems/madaris/internal/syncqueue"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SyncHandler handles offline batch submission and queue review endpoints.
type SyncHandler struct {
	svc *syncqueue.Service
	db  *gorm.DB
}

// NewSyncHandler constructs a SyncHandler.
func NewSyncHandler(svc *syncqueue.Service, db *gorm.DB) *SyncHandler {
	return &SyncHandler{svc: svc, db: db}
}

// syncRequest defines the batch body uploaded after reconnecting.
type syncRequest struct {
	Requests []syncqueue.Intent `json:"requests"`
}

// Submit queues a batch of offline intents for review. Items that cannot
// be classified are reported back per index; the rest are queued.
func (h *SyncHandler) Submit(c *gin.Context) {
	var body syncRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	accountID := accountIDFromContext(c)
	queued, rejected := h.svc.Submit(c.Request.Context(), accountID, body.Requests)
	auth.LogActivity(c.Request.Context(), h.db, accountID, models.ActionSync)

	out := gin.H{"queued": queued}
	if len(rejected) > 0 {
		out["rejected"] = rejected
	}
	c.JSON(http.StatusOK, out)
}

// List returns the review queue, newest first.
func (h *SyncHandler) List(c *gin.Context) {
	updates, errList := h.svc.List(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(updates))
	for _, update := range updates {
		entry := gin.H{
			"id":        update.ID,
			"entity":    update.Entity,
			"action":    update.Action,
			"status":    update.Status,
			"target_id": update.TargetID,
			"payload":   update.Payload,
			"timestamp": update.Timestamp,
		}
		if update.AccountID != nil {
			entry["account_id"] = *update.AccountID
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

// Count returns how many updates are awaiting review.
func (h *SyncHandler) Count(c *gin.Context) {
	count, errCount := h.svc.Count(c.Request.Context())
	if errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// pendingID parses the :id route parameter.
func pendingID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// Approve applies one pending update.
func (h *SyncHandler) Approve(c *gin.Context) {
	id, ok := pendingID(c)
	if !ok {
		return
	}
	if errApprove := h.svc.Approve(c.Request.Context(), id); errApprove != nil {
		if errApprove == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errApprove.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ApproveAll applies the whole queue, reporting per-item failures.
func (h *SyncHandler) ApproveAll(c *gin.Context) {
	result, errApprove := h.svc.ApproveAll(c.Request.Context())
	if errApprove != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := gin.H{"applied": result.Applied}
	if len(result.Errors) > 0 {
		out["errors"] = result.Errors
	}
	c.JSON(http.StatusOK, out)
}

// Reject discards one pending update without applying it.
func (h *SyncHandler) Reject(c *gin.Context) {
	id, ok := pendingID(c)
	if !ok {
		return
	}
	if errReject := h.svc.Reject(c.Request.Context(), id); errReject != nil {
		if errReject == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RejectAll discards the whole queue.
func (h *SyncHandler) RejectAll(c *gin.Context) {
	discarded, errReject := h.svc.RejectAll(c.Request.Context())
	if errReject != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"discarded": discarded})
}
