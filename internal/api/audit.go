package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/models"
)

const (
	// defaultMaxEntries caps a query when max_entries is absent.
	defaultMaxEntries = 50
	// maxIngestEntries bounds one POST /audit/events body.
	maxIngestEntries = 1000
)

// AuditHandler serves audit log endpoints.
type AuditHandler struct {
	svc    AuditService
	ingest AuditIngester
	pruner AuditPruner
	log    *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(svc AuditService, ingest AuditIngester, pruner AuditPruner, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, ingest: ingest, pruner: pruner, log: log}
}

// auditListResponse is the JSON payload of GET /api/v1/audit.
type auditListResponse struct {
	Data     []models.AuditEntry `json:"data"`
	Warnings []string            `json:"warnings"`
	Count    int                 `json:"count"`
}

// Query handles GET /api/v1/audit.
func (h *AuditHandler) Query(c *gin.Context) {
	sess, ok := getSession(c)
	if !ok {
		return
	}

	maxEntries, err := queryInt(c, "max_entries", defaultMaxEntries)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidValue, err.Error())
		return
	}
	pageSize, err := queryInt(c, "page_size", 0)
	if err != nil || pageSize < 0 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidValue, "page_size must be a non-negative integer")
		return
	}

	filter := models.AuditFilter{
		ObjectType:  c.Query("type"),
		Name:        c.Query("name"),
		Action:      c.Query("action"),
		Username:    c.Query("user"),
		Project:     c.Query("project"),
		Environment: c.Query("environment"),
		Parameter:   c.Query("parameter"),
		Before:      c.Query("before"),
		After:       c.Query("after"),
		MaxEntries:  maxEntries,
		PageSize:    pageSize,
	}

	result, err := h.svc.Query(c.Request.Context(), sess, filter)
	if err != nil {
		respondServiceError(c, h.log, err, "querying audit log")
		return
	}

	entries := result.Entries
	if entries == nil {
		entries = []models.AuditEntry{}
	}

	c.JSON(http.StatusOK, auditListResponse{
		Data:     entries,
		Warnings: result.Warnings,
		Count:    len(entries),
	})
}

// Get handles GET /api/v1/audit/:id.
func (h *AuditHandler) Get(c *gin.Context) {
	sess, ok := getSession(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "id must be a positive integer")
		return
	}

	entry, err := h.svc.Get(c.Request.Context(), sess, id)
	if err != nil {
		respondServiceError(c, h.log, err, "getting audit entry")
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Summary handles GET /api/v1/audit/summary.
func (h *AuditHandler) Summary(c *gin.Context) {
	sess, ok := getSession(c)
	if !ok {
		return
	}

	sum, err := h.svc.Summary(c.Request.Context(), sess)
	if err != nil {
		respondServiceError(c, h.log, err, "summarizing audit log")
		return
	}

	c.JSON(http.StatusOK, sum)
}

// Purge handles DELETE /api/v1/audit. It applies the retention policy to the
// caller's organization now; max_days and max_records override the policy.
func (h *AuditHandler) Purge(c *gin.Context) {
	sess, ok := getSession(c)
	if !ok {
		return
	}

	policy := h.pruner.Policy()

	var err error
	if policy.MaxDays, err = queryInt(c, "max_days", policy.MaxDays); err != nil || policy.MaxDays < 0 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidValue, "max_days must be a non-negative integer")
		return
	}
	if policy.MaxRecords, err = queryInt(c, "max_records", policy.MaxRecords); err != nil || policy.MaxRecords < 0 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidValue, "max_records must be a non-negative integer")
		return
	}

	res, err := h.pruner.PruneOrg(c.Request.Context(), sess.OrgID, policy)
	if err != nil {
		respondServiceError(c, h.log, err, "purging audit log")
		return
	}

	h.log.WithFields(logrus.Fields{
		"action":  "audit.purge",
		"org_id":  sess.OrgID,
		"user":    sess.UserName,
		"deleted": res.Total(),
	}).Info("audit")

	c.JSON(http.StatusOK, res)
}

// recordRequest is the body of POST /api/v1/audit/events.
type recordRequest struct {
	Entries []models.NewAuditEntry `json:"entries"`
}

// Record handles POST /api/v1/audit/events. Entries are queued and written
// asynchronously; the response carries their event ids.
func (h *AuditHandler) Record(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if len(req.Entries) == 0 || len(req.Entries) > maxIngestEntries {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest,
			"entries must contain between 1 and "+strconv.Itoa(maxIngestEntries)+" items")
		return
	}

	sess, ok := getSession(c)
	if !ok {
		return
	}

	ids, err := h.ingest.Submit(c.Request.Context(), sess, req.Entries)
	if err != nil {
		respondServiceError(c, h.log, err, "queueing audit entries")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"event_ids": ids, "accepted": len(ids)})
}
