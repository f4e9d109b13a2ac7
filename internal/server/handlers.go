package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opentalon/leadgate/internal/store"
)

const (
	defaultChannel   = "UNKNOWN"
	defaultListLimit = 50
	maxListLimit     = 500
)

type listQuery struct {
	Limit  int `form:"limit" binding:"min=0"`
	Offset int `form:"offset" binding:"min=0"`
}

type intakeRequest struct {
	FullName    string `json:"nombre_apellido" binding:"required,notblank"`
	Company     string `json:"empresa" binding:"required,notblank"`
	Phone       string `json:"telefono2" binding:"required,notblank"`
	Email       string `json:"correo" binding:"required,email"`
	TaxID       string `json:"ruc_dni"`
	Requirement string `json:"treq_requerimiento"`
	Channel     string `json:"origen"`
	Advisor     string `json:"asesor_tecnico"`
	Notes       string `json:"observacion"`
	SubmittedAt string `json:"submission_time"`
}

func (r intakeRequest) record() store.LeadRecord {
	channel := strings.TrimSpace(r.Channel)
	if channel == "" {
		channel = defaultChannel
	}
	return store.LeadRecord{
		FullName:    strings.TrimSpace(r.FullName),
		Company:     strings.TrimSpace(r.Company),
		Phone:       strings.TrimSpace(r.Phone),
		Email:       strings.TrimSpace(r.Email),
		TaxID:       strings.TrimSpace(r.TaxID),
		Requirement: r.Requirement,
		Channel:     channel,
		Advisor:     r.Advisor,
		Notes:       r.Notes,
		SubmittedAt: r.SubmittedAt,
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"status": "error", "message": msg})
}

// createRecord stores the lead, then runs the side effects. None of them can
// fail the request once the insert succeeded.
func (s *Server) createRecord(c *gin.Context) {
	var req intakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid lead: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	rec := req.record()

	id, err := s.deps.Leads.InsertLead(ctx, rec)
	if err != nil {
		s.logger.Error("insert lead", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "could not store lead")
		return
	}
	rec.ID = id
	s.deps.Metrics.LeadIngested()
	log := s.logger.With(zap.Int64("lead_id", id))

	if err := s.deps.Mailing.AddContact(ctx, rec); err != nil {
		log.Warn("add mailing contact", zap.Error(err))
	}

	notified := false
	if strings.TrimSpace(rec.Requirement) != "" {
		if err := s.deps.Notifier.NotifyLead(ctx, rec); err != nil {
			log.Warn("notify lead", zap.Error(err))
		} else {
			notified = true
		}
	}

	analyzed := false
	if s.deps.Analyzer != nil {
		out := s.deps.Analyzer.Analyze(ctx, rec.Lead(), id)
		analyzed = out.Success
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":            "success",
		"message":           "lead stored",
		"record_id":         id,
		"origen":            rec.Channel,
		"notification_sent": notified,
		"analyzed":          analyzed,
	})
}

func (s *Server) listRecords(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		errorJSON(c, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}
	switch {
	case q.Limit == 0:
		q.Limit = defaultListLimit
	case q.Limit > maxListLimit:
		q.Limit = maxListLimit
	}
	records, err := s.deps.Leads.ListLeads(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		s.logger.Error("list leads", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "could not list leads")
		return
	}
	if records == nil {
		records = []store.LeadRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "records": records})
}

func (s *Server) loadLead(c *gin.Context) (*store.LeadRecord, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorJSON(c, http.StatusBadRequest, "invalid lead id")
		return nil, false
	}
	rec, err := s.deps.Leads.GetLead(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "lead not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get lead", zap.Int64("lead_id", id), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "could not load lead")
		return nil, false
	}
	return rec, true
}

func (s *Server) getRecord(c *gin.Context) {
	rec, ok := s.loadLead(c)
	if !ok {
		return
	}
	body := gin.H{"status": "success", "record": rec}
	if s.deps.Analyses != nil {
		if a, err := s.deps.Analyses.GetAnalysis(c.Request.Context(), rec.ID); err == nil {
			body["analysis"] = a
		} else if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("get analysis", zap.Int64("lead_id", rec.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) analyzeLead(c *gin.Context) {
	if s.deps.Analyzer == nil {
		errorJSON(c, http.StatusServiceUnavailable, "analysis not configured")
		return
	}
	rec, ok := s.loadLead(c)
	if !ok {
		return
	}
	out := s.deps.Analyzer.Analyze(c.Request.Context(), rec.Lead(), rec.ID)
	c.JSON(http.StatusOK, gin.H{"status": "success", "analysis": out})
}

func (s *Server) info(c *gin.Context) {
	if s.deps.Inspector == nil {
		errorJSON(c, http.StatusServiceUnavailable, "orchestrator not configured")
		return
	}
	c.JSON(http.StatusOK, s.deps.Inspector.Info())
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Inspector == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}
	h := s.deps.Inspector.Health()
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}
