package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// DocumentVersion is one observed snapshot of a monitored source. Versions
// are append-only: sequence numbers per source are strictly increasing and
// gapless, and digest fields are never rewritten after creation.
//
// The raw, canonical, and text blob references retain enough material to
// recompute every digest from storage for audit verification.
type DocumentVersion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	MonitoredSourceID uint `gorm:"not null;index:idx_versions_source;uniqueIndex:idx_versions_source_seq" json:"monitoredSourceId"`
	SequenceNumber    int  `gorm:"not null;uniqueIndex:idx_versions_source_seq" json:"sequenceNumber"`

	// Digests. DocHash fingerprints the canonical bytes, RawHash the bytes
	// as fetched, TextHash the normalized page text concatenation.
	DocHash    string `gorm:"type:varchar(64);not null;index:idx_versions_doc_hash" json:"docHash"`
	RawHash    string `gorm:"type:varchar(64);not null" json:"rawHash"`
	TextHash   string `gorm:"type:varchar(64);not null" json:"textHash"`
	PageHashes JSON   `gorm:"type:json" json:"pageHashes"`

	// Blob references into the configured BlobStore.
	RawBlobRef       string `gorm:"type:varchar(512);not null" json:"rawBlobRef"`
	CanonicalBlobRef string `gorm:"type:varchar(512);not null" json:"canonicalBlobRef"`
	TextBlobRef      string `gorm:"type:varchar(512);not null" json:"textBlobRef"`

	// Best-effort enrichment; absence never blocks version creation.
	Title           string  `gorm:"type:varchar(500)" json:"title,omitempty"`
	FormNumber      string  `gorm:"type:varchar(50)" json:"formNumber,omitempty"`
	TitleConfidence float64 `json:"titleConfidence,omitempty"`

	// Extraction metadata.
	ExtractionMethod string `gorm:"type:varchar(50)" json:"extractionMethod,omitempty"`
	OCRUsed          bool   `gorm:"not null;default:false" json:"ocrUsed"`
	LowConfidence    bool   `gorm:"not null;default:false" json:"lowConfidence"`
	PageCount        int    `json:"pageCount"`
	TextLength       int    `json:"textLength"`

	// FetchedFrom is the URL this snapshot was actually retrieved from,
	// which may differ from the source's current URL after relocation.
	FetchedFrom string    `gorm:"type:varchar(2048);not null" json:"fetchedFrom"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// TableName specifies the table name.
func (DocumentVersion) TableName() string {
	return "document_versions"
}

// BeforeCreate validates append-only integrity requirements.
func (v *DocumentVersion) BeforeCreate(tx *gorm.DB) error {
	if v.MonitoredSourceID == 0 {
		return errors.New("document version requires a monitored source")
	}
	if v.SequenceNumber < 1 {
		return errors.New("document version sequence numbers start at 1")
	}
	if v.FetchedAt.IsZero() {
		v.FetchedAt = time.Now()
	}
	return nil
}

// SetPageHashes stores the ordered per-page digests.
func (v *DocumentVersion) SetPageHashes(hashes []string) {
	v.PageHashes = jsonStrings(hashes)
	v.PageCount = len(hashes)
}

// PageHashList returns the ordered per-page digests.
func (v *DocumentVersion) PageHashList() []string {
	return decodeStrings(v.PageHashes)
}

// GetLatestVersion returns the most recent version for a source, or
// gorm.ErrRecordNotFound when the source has no history yet.
func GetLatestVersion(db *gorm.DB, sourceID uint) (*DocumentVersion, error) {
	var version DocumentVersion
	err := db.Where("monitored_source_id = ?", sourceID).
		Order("sequence_number DESC").
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// GetVersionHistory returns versions for a source, newest first.
func GetVersionHistory(db *gorm.DB, sourceID uint, limit int) ([]DocumentVersion, error) {
	var versions []DocumentVersion
	q := db.Where("monitored_source_id = ?", sourceID).
		Order("sequence_number DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&versions).Error
	return versions, err
}

// NextSequenceNumber computes the sequence number the next version of this
// source must use. Callers hold the source lock and run inside the persist
// transaction so the number stays gapless under concurrent cycles.
func NextSequenceNumber(db *gorm.DB, sourceID uint) (int, error) {
	latest, err := GetLatestVersion(db, sourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return latest.SequenceNumber + 1, nil
}
