package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Review states for a ChangeRecord. The download/approve gate is strict:
// approval is reachable only after at least one recorded download.
const (
	ReviewStateDetected   = "detected"
	ReviewStateDownloaded = "downloaded"
	ReviewStateApproved   = "approved"
)

// PreconditionError reports a review-state transition attempted out of
// order, such as approving a change that was never downloaded. It is
// surfaced to the caller and mutates nothing.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition failed: %s", e.Op, e.Reason)
}

// ChangeRecord is the result of comparing version n-1 to version n of a
// source. It exists one-to-one with the version that triggered it; the
// baseline version has none. Created atomically with its DocumentVersion.
type ChangeRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	MonitoredSourceID uint  `gorm:"not null;index:idx_changes_source" json:"monitoredSourceId"`
	DocumentVersionID uint  `gorm:"not null;uniqueIndex:idx_changes_version" json:"documentVersionId"`
	PreviousVersionID *uint `json:"previousVersionId,omitempty"`

	// Category values: "binary_only", "text_changed", "relocated".
	Category string `gorm:"type:varchar(50);not null;index:idx_changes_category" json:"category"`

	// AffectedPages holds 0-based page indices whose digests differ.
	AffectedPages JSON   `gorm:"type:json" json:"affectedPages"`
	DiffSummary   string `gorm:"type:text" json:"diffSummary,omitempty"`
	PagesAdded    int    `json:"pagesAdded"`
	PagesRemoved  int    `json:"pagesRemoved"`

	// SimilarityScore is the 0-100 lexical overlap against the prior
	// version's text, when computed.
	SimilarityScore float64 `json:"similarityScore"`

	// RelocatedFromURL is set when this version was fetched after identity
	// resolution moved the source to a new URL.
	RelocatedFromURL string `gorm:"type:varchar(2048)" json:"relocatedFromUrl,omitempty"`

	// Review workflow.
	ReviewState        string     `gorm:"type:varchar(20);not null;default:'detected';index:idx_changes_review_state" json:"reviewState"`
	DownloadCount      int        `gorm:"not null;default:0" json:"downloadCount"`
	ManualIntervention bool       `gorm:"not null;default:false" json:"manualIntervention"`
	DetectedAt         time.Time  `json:"detectedAt"`
	FirstDownloadedAt  *time.Time `json:"firstDownloadedAt,omitempty"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy         string     `gorm:"type:varchar(255)" json:"approvedBy,omitempty"`
}

// TableName specifies the table name.
func (ChangeRecord) TableName() string {
	return "change_records"
}

// BeforeCreate hook to apply defaults.
func (c *ChangeRecord) BeforeCreate(tx *gorm.DB) error {
	if c.ReviewState == "" {
		c.ReviewState = ReviewStateDetected
	}
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now()
	}
	return nil
}

// SetAffectedPages stores the 0-based indices of pages whose digests differ.
func (c *ChangeRecord) SetAffectedPages(pages []int) {
	c.AffectedPages = jsonInts(pages)
}

// AffectedPageList returns the 0-based affected page indices.
func (c *ChangeRecord) AffectedPageList() []int {
	return decodeInts(c.AffectedPages)
}

// GetChangeRecord retrieves a change record by ID.
func GetChangeRecord(db *gorm.DB, id uint) (*ChangeRecord, error) {
	var record ChangeRecord
	if err := db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// GetPendingChanges returns change records that still need review action,
// oldest first. Binary-only changes carry no text difference to review and
// are excluded from the queue.
func GetPendingChanges(db *gorm.DB, limit int) ([]ChangeRecord, error) {
	var records []ChangeRecord
	q := db.Where("review_state != ?", ReviewStateApproved).
		Where("category != ?", "binary_only").
		Order("detected_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

// RecordDownload increments the download counter and moves a freshly
// detected record to the downloaded state. Safe to repeat; the first
// download unlocks approval.
func (c *ChangeRecord) RecordDownload(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var current ChangeRecord
		if err := tx.First(&current, c.ID).Error; err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"download_count": gorm.Expr("download_count + 1"),
		}
		if current.ReviewState == ReviewStateDetected {
			updates["review_state"] = ReviewStateDownloaded
		}
		if current.FirstDownloadedAt == nil {
			updates["first_downloaded_at"] = now
		}
		if err := tx.Model(&ChangeRecord{}).Where("id = ?", c.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(c, c.ID).Error
	})
}

// Approve transitions the record to approved. Fails with PreconditionError
// when no download has been recorded; the record is left untouched.
func (c *ChangeRecord) Approve(db *gorm.DB, approver string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var current ChangeRecord
		if err := tx.First(&current, c.ID).Error; err != nil {
			return err
		}

		if current.DownloadCount == 0 {
			return &PreconditionError{
				Op:     "approve",
				Reason: fmt.Sprintf("change record %d has no recorded downloads", c.ID),
			}
		}
		if current.ReviewState == ReviewStateApproved {
			// Idempotent: approving twice is not an error.
			*c = current
			return nil
		}

		now := time.Now()
		if err := tx.Model(&ChangeRecord{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
			"review_state": ReviewStateApproved,
			"approved_at":  now,
			"approved_by":  approver,
		}).Error; err != nil {
			return err
		}
		return tx.First(c, c.ID).Error
	})
}

// FlagManualIntervention marks that a human edited the source's title or URL
// outside the resolved pipeline. Orthogonal to the download/approve gate;
// tracked for automation-rate reporting.
func (c *ChangeRecord) FlagManualIntervention(db *gorm.DB) error {
	c.ManualIntervention = true
	return db.Model(c).Update("manual_intervention", true).Error
}
