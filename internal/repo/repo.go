// Package repo provides database access for complaints, citizens, and
// dashboard operators.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dhvanip/nagarseva/internal/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("repo: not found")

// Repository wraps the gorm handle with complaint-domain queries.
type Repository struct {
	db *gorm.DB
}

// New creates a Repository over an open database handle.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateComplaint persists a complaint and its attachments in one shot.
// The caller assigns the ID before calling.
func (r *Repository) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if c.ID == "" {
		return fmt.Errorf("repo: complaint ID is required")
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("repo: create complaint: %w", err)
	}
	return nil
}

// GetComplaint loads one complaint with its photos and voice notes.
func (r *Repository) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	var c models.Complaint
	err := r.db.WithContext(ctx).
		Preload("Photos").
		Preload("VoiceNotes").
		First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repo: get complaint: %w", err)
	}
	return &c, nil
}

// UpdatePatch carries the fields an operator may change on a complaint.
// Nil fields are left untouched.
type UpdatePatch struct {
	Status          *string
	Severity        *string
	RMCResponse     *string
	WardOfficer     *string
	FeedbackRating  *int
	FeedbackComment *string
}

// UpdateComplaint applies a patch. Moving a complaint to resolved stamps
// ResolvedAt in the same write; the citizen's resolved counter follows.
func (r *Repository) UpdateComplaint(ctx context.Context, id string, patch UpdatePatch) (*models.Complaint, error) {
	updates := map[string]any{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
		if *patch.Status == models.StatusResolved {
			now := time.Now()
			updates["resolved_at"] = &now
		}
	}
	if patch.Severity != nil {
		updates["severity"] = *patch.Severity
	}
	if patch.RMCResponse != nil {
		updates["rmc_response"] = *patch.RMCResponse
	}
	if patch.WardOfficer != nil {
		updates["ward_officer"] = *patch.WardOfficer
	}
	if patch.FeedbackRating != nil {
		updates["feedback_rating"] = *patch.FeedbackRating
	}
	if patch.FeedbackComment != nil {
		updates["feedback_comment"] = *patch.FeedbackComment
	}
	if len(updates) == 0 {
		return r.GetComplaint(ctx, id)
	}

	res := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("repo: update complaint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	c, err := r.GetComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil && *patch.Status == models.StatusResolved {
		err := r.db.WithContext(ctx).
			Model(&models.Citizen{}).
			Where("phone = ?", c.CitizenID).
			UpdateColumn("resolved_reports", gorm.Expr("resolved_reports + 1")).Error
		if err != nil {
			return nil, fmt.Errorf("repo: bump resolved count: %w", err)
		}
	}
	return c, nil
}

// ListFilter narrows ListComplaints. Zero values mean "no filter". WardIn
// restricts results to a ward set, e.g. a ward officer's assignment.
type ListFilter struct {
	WardID     *int
	WardIn     []int
	Status     string
	Severity   string
	CategoryID string
	Limit      int
	Offset     int
}

// ListComplaints returns complaints newest-first plus the unpaginated total.
func (r *Repository) ListComplaints(ctx context.Context, f ListFilter) ([]models.Complaint, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Complaint{})
	if f.WardID != nil {
		q = q.Where("ward_id = ?", *f.WardID)
	}
	if len(f.WardIn) > 0 {
		q = q.Where("ward_id IN ?", f.WardIn)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.CategoryID != "" {
		q = q.Where("category_id = ?", f.CategoryID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("repo: count complaints: %w", err)
	}

	q = q.Order("created_at DESC").Preload("Photos").Preload("VoiceNotes")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.Complaint
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("repo: list complaints: %w", err)
	}
	return out, total, nil
}

// Stats aggregates complaint counts for the dashboard.
type Stats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	BySeverity map[string]int64 `json:"bySeverity"`
	ByWard     map[int]int64    `json:"byWard"`
	Citizens   int64            `json:"citizens"`
}

type bucketCount struct {
	Bucket string
	N      int64
}

type wardCount struct {
	WardID int
	N      int64
}

// ComplaintStats computes the aggregate counters.
func (r *Repository) ComplaintStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:   make(map[string]int64),
		BySeverity: make(map[string]int64),
		ByWard:     make(map[int]int64),
	}

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Complaint{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("repo: total count: %w", err)
	}
	if err := db.Model(&models.Citizen{}).Count(&stats.Citizens).Error; err != nil {
		return nil, fmt.Errorf("repo: citizen count: %w", err)
	}

	var rows []bucketCount
	err := db.Model(&models.Complaint{}).
		Select("status AS bucket, COUNT(*) AS n").
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repo: status counts: %w", err)
	}
	for _, row := range rows {
		stats.ByStatus[row.Bucket] = row.N
	}

	rows = rows[:0]
	err = db.Model(&models.Complaint{}).
		Select("severity AS bucket, COUNT(*) AS n").
		Group("severity").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repo: severity counts: %w", err)
	}
	for _, row := range rows {
		stats.BySeverity[row.Bucket] = row.N
	}

	var wards []wardCount
	err = db.Model(&models.Complaint{}).
		Select("ward_id, COUNT(*) AS n").
		Group("ward_id").Scan(&wards).Error
	if err != nil {
		return nil, fmt.Errorf("repo: ward counts: %w", err)
	}
	for _, row := range wards {
		stats.ByWard[row.WardID] = row.N
	}

	return stats, nil
}

// UpsertCitizen records a submission against the citizen's aggregate row:
// creates the row on first contact, then bumps TotalReports and LastActive.
func (r *Repository) UpsertCitizen(ctx context.Context, phone, language string, wardID int, now time.Time) (*models.Citizen, error) {
	var citizen models.Citizen
	err := r.db.WithContext(ctx).
		Where(models.Citizen{Phone: phone}).
		Attrs(models.Citizen{Name: "Anonymous User", CreatedAt: now}).
		FirstOrCreate(&citizen).Error
	if err != nil {
		return nil, fmt.Errorf("repo: upsert citizen: %w", err)
	}

	citizen.TotalReports++
	citizen.Language = language
	citizen.WardID = wardID
	citizen.LastActive = now
	if err := r.db.WithContext(ctx).Save(&citizen).Error; err != nil {
		return nil, fmt.Errorf("repo: save citizen: %w", err)
	}
	return &citizen, nil
}

// GetCitizen loads one citizen aggregate row.
func (r *Repository) GetCitizen(ctx context.Context, phone string) (*models.Citizen, error) {
	var citizen models.Citizen
	err := r.db.WithContext(ctx).First(&citizen, "phone = ?", phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repo: get citizen: %w", err)
	}
	return &citizen, nil
}

// GetOperator loads a dashboard operator by username.
func (r *Repository) GetOperator(ctx context.Context, username string) (*models.Operator, error) {
	var op models.Operator
	err := r.db.WithContext(ctx).First(&op, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repo: get operator: %w", err)
	}
	return &op, nil
}

// CreateOperator adds a dashboard login.
func (r *Repository) CreateOperator(ctx context.Context, op *models.Operator) error {
	if err := r.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("repo: create operator: %w", err)
	}
	return nil
}
