package monitor

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/formwatch/formwatch/pkg/models"
)

// Register adds a source to the registry. The baseline version is taken the
// next time a cycle runs, or immediately via ProcessSource.
func (e *Engine) Register(name, url, listingURL string) (*models.MonitoredSource, error) {
	source := &models.MonitoredSource{
		Name:       name,
		URL:        url,
		ListingURL: listingURL,
		Enabled:    true,
	}
	if err := e.db.Create(source).Error; err != nil {
		return nil, fmt.Errorf("failed to register source: %w", err)
	}
	e.logger.Info("source registered", "source", source.ID, "url", url)
	return source, nil
}

// Download retrieves the raw document bytes for a change's new version and
// records the download, which is what unlocks approval.
type Download struct {
	Filename string
	Data     []byte
	Record   *models.ChangeRecord
}

// DownloadChange fetches the raw blob behind a change record and advances
// the review state to downloaded.
func (e *Engine) DownloadChange(ctx context.Context, changeID uint) (*Download, error) {
	record, err := models.GetChangeRecord(e.db, changeID)
	if err != nil {
		return nil, err
	}

	var version models.DocumentVersion
	if err := e.db.First(&version, record.DocumentVersionID).Error; err != nil {
		return nil, err
	}

	data, err := e.blobs.Get(ctx, version.RawBlobRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored document: %w", err)
	}
	if err := record.RecordDownload(e.db); err != nil {
		return nil, err
	}

	name := version.FormNumber
	if name == "" {
		name = fmt.Sprintf("document-%d", version.MonitoredSourceID)
	}
	return &Download{
		Filename: fmt.Sprintf("%s-v%d.pdf", name, version.SequenceNumber),
		Data:     data,
		Record:   record,
	}, nil
}

// ApproveChange transitions a change record to approved. The underlying
// state machine rejects approval of a never-downloaded change with a
// PreconditionError.
func (e *Engine) ApproveChange(changeID uint, approver string) (*models.ChangeRecord, error) {
	record, err := models.GetChangeRecord(e.db, changeID)
	if err != nil {
		return nil, err
	}
	if err := record.Approve(e.db, approver); err != nil {
		return nil, err
	}
	e.logger.Info("change approved", "change", record.ID, "by", approver)
	return record, nil
}

// SourceEdit is a manual correction to a source's identity or location.
// Empty fields are left untouched.
type SourceEdit struct {
	Title string
	URL   string
}

// EditSource applies a manual correction and flags the source's latest
// change record as manually intervened, so automation-rate reporting counts
// it honestly.
func (e *Engine) EditSource(sourceID uint, edit SourceEdit) (*models.MonitoredSource, error) {
	var source models.MonitoredSource
	if err := e.db.First(&source, sourceID).Error; err != nil {
		return nil, err
	}
	if edit.Title == "" && edit.URL == "" {
		return &source, nil
	}

	lock := e.lockFor(source.ID)
	lock.Lock()
	defer lock.Unlock()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if edit.Title != "" {
			if err := source.UpdateIdentity(tx, "", edit.Title); err != nil {
				return err
			}
		}
		if edit.URL != "" && edit.URL != source.URL {
			if err := source.Relocate(tx, edit.URL); err != nil {
				return err
			}
		}

		var latest models.ChangeRecord
		err := tx.Where("monitored_source_id = ?", source.ID).
			Order("detected_at DESC").
			First(&latest).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		return latest.FlagManualIntervention(tx)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("source edited", "source", source.ID, "title", edit.Title, "url", edit.URL)
	return &source, nil
}

// AutomationStats summarizes how much of the review workload the pipeline
// resolved without a human touching the source.
type AutomationStats struct {
	TotalChanges int64
	Manual       int64
	Approved     int64
	WindowDays   int
}

// AutomationRate reports change counts over the trailing window.
func (e *Engine) AutomationRate(windowDays int) (*AutomationStats, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	since := time.Now().AddDate(0, 0, -windowDays)

	stats := &AutomationStats{WindowDays: windowDays}
	base := e.db.Model(&models.ChangeRecord{}).Where("detected_at >= ?", since)
	if err := base.Session(&gorm.Session{}).Count(&stats.TotalChanges).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("manual_intervention = ?", true).Count(&stats.Manual).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("review_state = ?", models.ReviewStateApproved).Count(&stats.Approved).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
