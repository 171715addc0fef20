package dashboard

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dhvanip/nagarseva/internal/broadcast"
	"github.com/dhvanip/nagarseva/internal/intake"
	"github.com/dhvanip/nagarseva/internal/models"
	"github.com/dhvanip/nagarseva/internal/repo"
)

var validStatuses = map[string]bool{
	models.StatusOpen:       true,
	models.StatusInProgress: true,
	models.StatusResolved:   true,
	models.StatusClosed:     true,
}

var validSeverities = map[string]bool{
	models.SeverityLow:      true,
	models.SeverityMedium:   true,
	models.SeverityHigh:     true,
	models.SeverityCritical: true,
}

// listFilter builds the repo filter from query params, clamped to the
// operator's ward assignment.
func listFilter(c *gin.Context) (repo.ListFilter, error) {
	f := repo.ListFilter{
		Status:     c.Query("status"),
		Severity:   c.Query("severity"),
		CategoryID: c.Query("category"),
	}

	claims := operator(c)
	if raw := c.Query("ward"); raw != "" {
		ward, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("ward must be a number")
		}
		if !claims.canAccessWard(ward) {
			return f, errForbidden
		}
		f.WardID = &ward
	} else if claims.Role != "admin" && len(claims.Wards) > 0 {
		f.WardIn = claims.Wards
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return f, fmt.Errorf("limit must be a non-negative number")
		}
		f.Limit = limit
	} else {
		f.Limit = 100
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return f, fmt.Errorf("offset must be a non-negative number")
		}
		f.Offset = offset
	}
	return f, nil
}

var errForbidden = errors.New("ward not permitted")

func (s *Server) handleListIssues(c *gin.Context) {
	f, err := listFilter(c)
	if errors.Is(err, errForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": "ward not permitted"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issues, total, err := s.repo.ListComplaints(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]map[string]any, 0, len(issues))
	for i := range issues {
		out = append(out, intake.IssueSummary(&issues[i]))
	}
	c.JSON(http.StatusOK, gin.H{"issues": out, "total": total})
}

func (s *Server) handleGetIssue(c *gin.Context) {
	issue, err := s.repo.GetComplaint(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !operator(c).canAccessWard(issue.WardID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "ward not permitted"})
		return
	}

	out := intake.IssueSummary(issue)
	out["citizenId"] = issue.CitizenID
	out["rmcResponse"] = issue.RMCResponse
	out["resolvedAt"] = issue.ResolvedAt
	out["feedbackRating"] = issue.FeedbackRating
	out["feedbackComment"] = issue.FeedbackComment

	photos := make([]gin.H, 0, len(issue.Photos))
	for _, p := range issue.Photos {
		photos = append(photos, gin.H{"path": p.Path, "caption": p.Caption, "mimeType": p.MimeType})
	}
	voiceNotes := make([]gin.H, 0, len(issue.VoiceNotes))
	for _, v := range issue.VoiceNotes {
		voiceNotes = append(voiceNotes, gin.H{"path": v.Path, "transcript": v.Transcript})
	}
	out["photos"] = photos
	out["voiceNotes"] = voiceNotes

	c.JSON(http.StatusOK, out)
}

type updateIssueRequest struct {
	Status          *string `json:"status"`
	Severity        *string `json:"severity"`
	RMCResponse     *string `json:"rmcResponse"`
	WardOfficer     *string `json:"wardOfficer"`
	FeedbackRating  *int    `json:"feedbackRating"`
	FeedbackComment *string `json:"feedbackComment"`
}

func (s *Server) handleUpdateIssue(c *gin.Context) {
	var req updateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Status != nil && !validStatuses[*req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if req.Severity != nil && !validSeverities[*req.Severity] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid severity"})
		return
	}
	if req.FeedbackRating != nil && (*req.FeedbackRating < 1 || *req.FeedbackRating > 5) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feedback rating must be 1-5"})
		return
	}

	id := c.Param("id")
	existing, err := s.repo.GetComplaint(c.Request.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !operator(c).canAccessWard(existing.WardID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "ward not permitted"})
		return
	}

	updated, err := s.repo.UpdateComplaint(c.Request.Context(), id, repo.UpdatePatch{
		Status:          req.Status,
		Severity:        req.Severity,
		RMCResponse:     req.RMCResponse,
		WardOfficer:     req.WardOfficer,
		FeedbackRating:  req.FeedbackRating,
		FeedbackComment: req.FeedbackComment,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	ward := updated.WardID
	s.hub.Publish(broadcast.Event{
		Type:   broadcast.TypeIssueUpdated,
		Data:   intake.IssueSummary(updated),
		WardID: &ward,
	})

	c.JSON(http.StatusOK, intake.IssueSummary(updated))
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.repo.ComplaintStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	active := 0
	if s.sessions != nil {
		active = s.sessions.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"complaints":          stats,
		"activeConversations": active,
		"dashboardClients":    s.hub.Count(),
	})
}

// handleExportIssues streams the (ward-clamped) complaint list as CSV.
func (s *Server) handleExportIssues(c *gin.Context) {
	f, err := listFilter(c)
	if errors.Is(err, errForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": "ward not permitted"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.Limit = 0 // exports are unpaginated
	f.Offset = 0

	issues, _, err := s.repo.ListComplaints(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="complaints.csv"`)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"id", "status", "severity", "category", "ward", "officer", "address", "description", "created_at", "resolved_at"})
	for i := range issues {
		issue := &issues[i]
		resolved := ""
		if issue.ResolvedAt != nil {
			resolved = issue.ResolvedAt.Format("2006-01-02 15:04:05")
		}
		w.Write([]string{
			issue.ID,
			issue.Status,
			issue.Severity,
			issue.CategoryLabel,
			strconv.Itoa(issue.WardID),
			issue.WardOfficer,
			issue.Address,
			issue.Description,
			issue.CreatedAt.Format("2006-01-02 15:04:05"),
			resolved,
		})
	}
	w.Flush()
}
