package models

import (
	"time"

	"gorm.io/gorm"
)

// MonitoringCycle records one execution pass over the enabled sources. The
// tallies are audit bookkeeping only; per-source state never depends on them.
type MonitoringCycle struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StartedAt time.Time `gorm:"not null" json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	TotalSources int `gorm:"not null;default:0" json:"totalSources"`

	// Per-outcome tallies.
	Baseline    int `gorm:"not null;default:0" json:"baseline"`
	Unchanged   int `gorm:"not null;default:0" json:"unchanged"`
	BinaryOnly  int `gorm:"not null;default:0" json:"binaryOnly"`
	TextChanged int `gorm:"not null;default:0" json:"textChanged"`
	Relocated   int `gorm:"not null;default:0" json:"relocated"`
	Errors      int `gorm:"not null;default:0" json:"errors"`
	NotFound    int `gorm:"not null;default:0" json:"notFound"`

	// Partial is set when the cycle was cancelled between sources and the
	// remaining queue was abandoned.
	Partial bool `gorm:"not null;default:false" json:"partial"`
}

// TableName specifies the table name.
func (MonitoringCycle) TableName() string {
	return "monitoring_cycles"
}

// BeforeCreate hook to stamp the start time.
func (m *MonitoringCycle) BeforeCreate(tx *gorm.DB) error {
	if m.StartedAt.IsZero() {
		m.StartedAt = time.Now()
	}
	return nil
}

// Finish persists the final tallies and closes the cycle.
func (m *MonitoringCycle) Finish(db *gorm.DB, partial bool) error {
	now := time.Now()
	m.EndedAt = &now
	m.Partial = partial
	return db.Model(m).Updates(map[string]interface{}{
		"ended_at":      now,
		"total_sources": m.TotalSources,
		"baseline":      m.Baseline,
		"unchanged":     m.Unchanged,
		"binary_only":   m.BinaryOnly,
		"text_changed":  m.TextChanged,
		"relocated":     m.Relocated,
		"errors":        m.Errors,
		"not_found":     m.NotFound,
		"partial":       partial,
	}).Error
}

// GetRecentCycles returns cycles, newest first.
func GetRecentCycles(db *gorm.DB, limit int) ([]MonitoringCycle, error) {
	var cycles []MonitoringCycle
	q := db.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&cycles).Error
	return cycles, err
}
