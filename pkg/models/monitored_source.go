package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MonitoredSource is the registry entry for one externally hosted PDF that is
// tracked for changes. The URL column always reflects the last successfully
// resolved location; each DocumentVersion keeps the URL it was actually
// fetched from, so relocation never rewrites history.
type MonitoredSource struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	SourceUUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sources_uuid" json:"sourceUuid"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	URL        string    `gorm:"type:varchar(2048);not null;uniqueIndex:idx_sources_url" json:"url"`

	// ListingURL is the parent page crawled when the document URL stops
	// resolving. When empty, the resolver falls back to the URL's parent
	// path segment.
	ListingURL string `gorm:"type:varchar(2048)" json:"listingUrl,omitempty"`

	// Enabled gates cycle processing. Sources with history are never
	// deleted, only disabled.
	Enabled bool `gorm:"not null;default:true;index:idx_sources_enabled" json:"enabled"`

	// Last-known identity, refreshed from the most recent version that
	// carried extraction results.
	FormNumber string `gorm:"type:varchar(50);index:idx_sources_form_number" json:"formNumber,omitempty"`
	Title      string `gorm:"type:varchar(500)" json:"title,omitempty"`

	// Cached response validators and quick hash for the cheap fetch tiers.
	ETag          string     `gorm:"type:varchar(255)" json:"etag,omitempty"`
	LastModified  *time.Time `json:"lastModified,omitempty"`
	ContentLength *int64     `json:"contentLength,omitempty"`
	QuickHash     string     `gorm:"type:varchar(64)" json:"quickHash,omitempty"`

	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	LastChangeAt  *time.Time `json:"lastChangeAt,omitempty"`
}

// TableName specifies the table name.
func (MonitoredSource) TableName() string {
	return "monitored_sources"
}

// BeforeCreate hook to ensure SourceUUID is set.
func (s *MonitoredSource) BeforeCreate(tx *gorm.DB) error {
	if s.SourceUUID == uuid.Nil {
		s.SourceUUID = uuid.New()
	}
	return nil
}

// GetEnabledSources returns all sources eligible for a monitoring cycle.
func GetEnabledSources(db *gorm.DB) ([]MonitoredSource, error) {
	var sources []MonitoredSource
	err := db.Where("enabled = ?", true).
		Order("id ASC").
		Find(&sources).Error
	return sources, err
}

// GetSourceByURL retrieves a source by its current URL.
func GetSourceByURL(db *gorm.DB, url string) (*MonitoredSource, error) {
	var source MonitoredSource
	if err := db.Where("url = ?", url).First(&source).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

// Disable soft-disables the source, preserving its history.
func (s *MonitoredSource) Disable(db *gorm.DB) error {
	s.Enabled = false
	return db.Model(s).Update("enabled", false).Error
}

// UpdateValidators stores the response validators observed on the last
// successful fetch so the next cycle can run the cheap tiers.
func (s *MonitoredSource) UpdateValidators(db *gorm.DB, etag string, lastModified *time.Time, contentLength *int64, quickHash string) error {
	s.ETag = etag
	s.LastModified = lastModified
	s.ContentLength = contentLength
	s.QuickHash = quickHash
	return db.Model(s).Updates(map[string]interface{}{
		"e_tag":          etag,
		"last_modified":  lastModified,
		"content_length": contentLength,
		"quick_hash":     quickHash,
	}).Error
}

// Relocate points the source at a newly resolved URL. Callers run this inside
// the resolver transaction so a failed re-fetch does not strand the source at
// a URL that was never verified.
func (s *MonitoredSource) Relocate(db *gorm.DB, newURL string) error {
	s.URL = newURL
	return db.Model(s).Update("url", newURL).Error
}

// UpdateIdentity refreshes the last-known form number and title.
func (s *MonitoredSource) UpdateIdentity(db *gorm.DB, formNumber, title string) error {
	updates := map[string]interface{}{}
	if formNumber != "" {
		s.FormNumber = formNumber
		updates["form_number"] = formNumber
	}
	if title != "" {
		s.Title = title
		updates["title"] = title
	}
	if len(updates) == 0 {
		return nil
	}
	return db.Model(s).Updates(updates).Error
}

// TouchChecked records that a cycle examined this source.
func (s *MonitoredSource) TouchChecked(db *gorm.DB, at time.Time) error {
	s.LastCheckedAt = &at
	return db.Model(s).Update("last_checked_at", at).Error
}

// TouchChanged records that a cycle detected a change for this source.
func (s *MonitoredSource) TouchChanged(db *gorm.DB, at time.Time) error {
	s.LastChangeAt = &at
	return db.Model(s).Update("last_change_at", at).Error
}
