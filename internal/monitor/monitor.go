// Package monitor owns the version and audit lifecycle: it drives monitoring
// cycles over the enabled sources, runs the fetch/canonicalize/hash/classify
// pipeline, persists versions and change records atomically, and exposes the
// review state machine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/formwatch/formwatch/pkg/canonical"
	"github.com/formwatch/formwatch/pkg/diff"
	"github.com/formwatch/formwatch/pkg/extract"
	"github.com/formwatch/formwatch/pkg/fetch"
	"github.com/formwatch/formwatch/pkg/hashing"
	"github.com/formwatch/formwatch/pkg/models"
	"github.com/formwatch/formwatch/pkg/resolve"
	"github.com/formwatch/formwatch/pkg/storage"
)

// Outcome is the per-source result of one cycle, rolled up into the
// MonitoringCycle tallies.
type Outcome string

const (
	OutcomeBaseline    Outcome = "baseline"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeBinaryOnly  Outcome = "binary_only"
	OutcomeTextChanged Outcome = "text_changed"
	OutcomeRelocated   Outcome = "relocated"
	OutcomeError       Outcome = "error"
	OutcomeNotFound    Outcome = "not_found"
)

// Engine drives monitoring cycles and the review workflow.
type Engine struct {
	db       *gorm.DB
	blobs    storage.BlobStore
	fetcher  fetch.Fetcher
	planner  *fetch.Planner
	pipeline *extract.Pipeline
	titles   extract.TitleExtractor
	resolver *resolve.Resolver
	workers  int
	logger   hclog.Logger

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// Options wires the Engine's collaborators.
type Options struct {
	DB       *gorm.DB
	Blobs    storage.BlobStore
	Fetcher  fetch.Fetcher
	Planner  *fetch.Planner
	Pipeline *extract.Pipeline

	// Titles enriches versions with extracted identity. Nil skips
	// enrichment; version creation never depends on it.
	Titles extract.TitleExtractor

	// ResolverConfig holds the identity-resolution thresholds.
	ResolverConfig resolve.Config

	// Workers bounds source-level parallelism within a cycle.
	Workers int

	Logger hclog.Logger
}

// New creates an Engine. The resolver is constructed here so its candidate
// inspection runs through the same fetch and extract stack as the pipeline.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	e := &Engine{
		db:       opts.DB,
		blobs:    opts.Blobs,
		fetcher:  opts.Fetcher,
		planner:  opts.Planner,
		pipeline: opts.Pipeline,
		titles:   opts.Titles,
		workers:  workers,
		logger:   logger.Named("monitor"),
		locks:    make(map[uint]*sync.Mutex),
	}
	e.resolver = resolve.NewResolver(opts.Fetcher, &candidateInspector{engine: e}, opts.ResolverConfig, logger)
	return e
}

// lockFor returns the mutex serializing pipeline work for one source. At
// most one in-flight pipeline execution per source, ever: this is what keeps
// sequence numbers gapless when a manual run overlaps a slow cycle.
func (e *Engine) lockFor(sourceID uint) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[sourceID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[sourceID] = lock
	}
	return lock
}

// RunCycle processes every enabled source with bounded parallelism and
// records the audit tally. Cancellation is cooperative between sources: the
// current source finishes, the remaining queue is abandoned, and the cycle
// is recorded as partial.
func (e *Engine) RunCycle(ctx context.Context) (*models.MonitoringCycle, error) {
	sources, err := models.GetEnabledSources(e.db)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	cycle := &models.MonitoringCycle{TotalSources: len(sources)}
	if err := e.db.Create(cycle).Error; err != nil {
		return nil, fmt.Errorf("failed to start cycle: %w", err)
	}
	e.logger.Info("cycle started", "cycle", cycle.ID, "sources", len(sources))

	var tallyMu sync.Mutex
	var cycleErrs *multierror.Error
	partial := false

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)
	for i := range sources {
		source := &sources[i]

		if ctx.Err() != nil {
			partial = true
			break
		}
		group.Go(func() error {
			outcome, procErr := e.ProcessSource(groupCtx, source)

			tallyMu.Lock()
			defer tallyMu.Unlock()
			switch outcome {
			case OutcomeBaseline:
				cycle.Baseline++
			case OutcomeUnchanged:
				cycle.Unchanged++
			case OutcomeBinaryOnly:
				cycle.BinaryOnly++
			case OutcomeTextChanged:
				cycle.TextChanged++
			case OutcomeRelocated:
				cycle.Relocated++
			case OutcomeNotFound:
				cycle.NotFound++
			case OutcomeError:
				cycle.Errors++
			}
			if procErr != nil {
				cycleErrs = multierror.Append(cycleErrs, fmt.Errorf("source %d (%s): %w", source.ID, source.URL, procErr))
			}
			// Source failures never abort the cycle.
			return nil
		})
	}
	_ = group.Wait()
	if ctx.Err() != nil {
		partial = true
	}

	if err := cycle.Finish(e.db, partial); err != nil {
		cycleErrs = multierror.Append(cycleErrs, fmt.Errorf("failed to close cycle: %w", err))
	}
	e.logger.Info("cycle finished",
		"cycle", cycle.ID,
		"baseline", cycle.Baseline,
		"unchanged", cycle.Unchanged,
		"binary_only", cycle.BinaryOnly,
		"text_changed", cycle.TextChanged,
		"relocated", cycle.Relocated,
		"not_found", cycle.NotFound,
		"errors", cycle.Errors,
		"partial", partial)
	return cycle, cycleErrs.ErrorOrNil()
}

// ProcessSource runs the tiered pipeline for a single source under its
// source lock and returns the cycle outcome.
func (e *Engine) ProcessSource(ctx context.Context, source *models.MonitoredSource) (Outcome, error) {
	lock := e.lockFor(source.ID)
	lock.Lock()
	defer lock.Unlock()

	outcome, err := e.processLocked(ctx, source)
	if touchErr := source.TouchChecked(e.db, time.Now()); touchErr != nil {
		e.logger.Warn("failed to record check time", "source", source.ID, "error", touchErr)
	}
	return outcome, err
}

func (e *Engine) processLocked(ctx context.Context, source *models.MonitoredSource) (Outcome, error) {
	cached := fetch.Cached{
		Validators: fetch.Validators{
			ETag:          source.ETag,
			LastModified:  source.LastModified,
			ContentLength: source.ContentLength,
		},
		QuickHash: source.QuickHash,
	}

	plan, err := e.planner.Check(ctx, source.URL, cached)
	if err != nil {
		var fetchErr *fetch.FetchError
		if errors.As(err, &fetchErr) {
			e.logger.Warn("fetch failed, attempting resolution", "source", source.ID, "url", source.URL, "error", err)
			return e.recoverSource(ctx, source)
		}
		return OutcomeError, err
	}

	if plan.Outcome == fetch.OutcomeUnchanged {
		e.refreshValidators(source, plan.Validators, source.QuickHash)
		return OutcomeUnchanged, nil
	}

	return e.ingest(ctx, source, plan, source.URL, "")
}

// ingest runs the full pipeline over a fetched body and persists the
// resulting version and change record. relocatedFrom is non-empty when the
// body came from a resolver-adopted URL; fetchedFrom is the URL the bytes
// actually came from.
func (e *Engine) ingest(ctx context.Context, source *models.MonitoredSource, plan *fetch.PlanResult, fetchedFrom, relocatedFrom string) (Outcome, error) {
	canonicalBytes, err := canonical.Canonicalize(plan.Body)
	if err != nil {
		var malformed *canonical.MalformedDocumentError
		if errors.As(err, &malformed) {
			e.logger.Error("document is malformed", "source", source.ID, "error", err)
		}
		return OutcomeError, err
	}

	// Extract degrades internally: an unparseable document yields an empty
	// low-confidence result and the version is still taken.
	extraction, err := e.pipeline.Extract(ctx, plan.Body)
	if err != nil {
		return OutcomeError, err
	}

	result := hashing.Hash(canonicalBytes, extraction.PageTexts())

	prior, priorText, err := e.loadPrior(ctx, source)
	if err != nil {
		return OutcomeError, err
	}

	var priorHashes *hashing.Result
	if prior != nil {
		priorHashes = &hashing.Result{
			DocHash:    prior.DocHash,
			TextHash:   prior.TextHash,
			PageHashes: prior.PageHashList(),
		}
	}
	classification := diff.Classify(priorHashes, result, priorText, extraction.FullText())

	if classification.Category == diff.CategoryUnchanged && relocatedFrom == "" {
		// Content identical; only the cached validators move forward.
		e.refreshValidators(source, plan.Validators, plan.QuickHash)
		return OutcomeUnchanged, nil
	}

	version, err := e.persistVersion(ctx, persistRequest{
		source:         source,
		plan:           plan,
		canonicalBytes: canonicalBytes,
		extraction:     extraction,
		hashes:         result,
		classification: classification,
		prior:          prior,
		priorText:      priorText,
		fetchedFrom:    fetchedFrom,
		relocatedFrom:  relocatedFrom,
	})
	if err != nil {
		return OutcomeError, err
	}
	e.logger.Info("version persisted",
		"source", source.ID,
		"sequence", version.SequenceNumber,
		"category", classification.Category)

	if relocatedFrom != "" {
		return OutcomeRelocated, nil
	}
	switch classification.Category {
	case diff.CategoryBaseline:
		return OutcomeBaseline, nil
	case diff.CategoryBinaryOnly:
		return OutcomeBinaryOnly, nil
	default:
		return OutcomeTextChanged, nil
	}
}

// loadPrior returns the latest version and its stored text. A missing text
// blob degrades to empty prior text rather than failing the source.
func (e *Engine) loadPrior(ctx context.Context, source *models.MonitoredSource) (*models.DocumentVersion, string, error) {
	prior, err := models.GetLatestVersion(e.db, source.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	text, err := e.blobs.Get(ctx, prior.TextBlobRef)
	if err != nil {
		e.logger.Warn("prior text blob unreadable", "source", source.ID, "ref", prior.TextBlobRef, "error", err)
		return prior, "", nil
	}
	return prior, string(text), nil
}

type persistRequest struct {
	source         *models.MonitoredSource
	plan           *fetch.PlanResult
	canonicalBytes []byte
	extraction     *extract.Result
	hashes         hashing.Result
	classification diff.Classification
	prior          *models.DocumentVersion
	priorText      string
	fetchedFrom    string
	relocatedFrom  string
}

// persistVersion commits the version row, its change record, and the source
// updates in one transaction. The sequence number is read inside the
// transaction so it and the version row commit or roll back together; the
// blobs are written inside it too, before the row creates, so a committed
// version never references missing blob data. A rollback can orphan blobs,
// which is harmless since nothing references them.
func (e *Engine) persistVersion(ctx context.Context, req persistRequest) (*models.DocumentVersion, error) {
	newText := req.extraction.FullText()
	identity := e.extractIdentity(ctx, newText)

	var version *models.DocumentVersion
	err := e.db.Transaction(func(tx *gorm.DB) error {
		seq, err := models.NextSequenceNumber(tx, req.source.ID)
		if err != nil {
			return err
		}

		rawRef, err := e.blobs.Put(ctx, storage.VersionKey(req.source.SourceUUID, seq, storage.ArtifactRaw), req.plan.Body)
		if err != nil {
			return fmt.Errorf("failed to store raw blob: %w", err)
		}
		canonicalRef, err := e.blobs.Put(ctx, storage.VersionKey(req.source.SourceUUID, seq, storage.ArtifactCanonical), req.canonicalBytes)
		if err != nil {
			return fmt.Errorf("failed to store canonical blob: %w", err)
		}
		textRef, err := e.blobs.Put(ctx, storage.VersionKey(req.source.SourceUUID, seq, storage.ArtifactText), []byte(newText))
		if err != nil {
			return fmt.Errorf("failed to store text blob: %w", err)
		}

		version = &models.DocumentVersion{
			MonitoredSourceID: req.source.ID,
			SequenceNumber:    seq,
			DocHash:           req.hashes.DocHash,
			RawHash:           req.plan.RawHash,
			TextHash:          req.hashes.TextHash,
			RawBlobRef:        rawRef,
			CanonicalBlobRef:  canonicalRef,
			TextBlobRef:       textRef,
			ExtractionMethod:  req.extraction.Method,
			OCRUsed:           req.extraction.OCRUsed,
			LowConfidence:     req.extraction.LowConfidence,
			TextLength:        req.extraction.TextLength(),
			FetchedFrom:       req.fetchedFrom,
			FetchedAt:         time.Now(),
		}
		version.SetPageHashes(req.hashes.PageHashes)
		if identity != nil {
			version.Title = identity.Title
			version.FormNumber = identity.FormNumber
			version.TitleConfidence = identity.Confidence
		}
		if err := tx.Create(version).Error; err != nil {
			return err
		}

		if req.prior != nil {
			record := &models.ChangeRecord{
				MonitoredSourceID: req.source.ID,
				DocumentVersionID: version.ID,
				PreviousVersionID: &req.prior.ID,
				Category:          changeCategory(req.classification, req.relocatedFrom),
				DiffSummary:       req.classification.DiffSummary,
				PagesAdded:        req.classification.PagesAdded,
				PagesRemoved:      req.classification.PagesRemoved,
				RelocatedFromURL:  req.relocatedFrom,
			}
			record.SetAffectedPages(req.classification.AffectedPages)
			if req.classification.TextHashChanged {
				record.SimilarityScore = diff.Similarity(req.priorText, newText)
			}
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}

		if req.relocatedFrom != "" {
			if err := req.source.Relocate(tx, req.fetchedFrom); err != nil {
				return err
			}
		}
		if identity != nil {
			if err := req.source.UpdateIdentity(tx, identity.FormNumber, identity.Title); err != nil {
				return err
			}
		}
		if err := req.source.UpdateValidators(tx,
			req.plan.Validators.ETag,
			req.plan.Validators.LastModified,
			req.plan.Validators.ContentLength,
			req.plan.QuickHash); err != nil {
			return err
		}
		return req.source.TouchChanged(tx, time.Now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist version: %w", err)
	}
	return version, nil
}

// changeCategory maps the classifier's verdict onto the stored category. A
// move with otherwise identical or cosmetically changed content is recorded
// as a relocation; a move with real text changes keeps the text_changed
// category and carries relocated_from_url alongside it.
func changeCategory(c diff.Classification, relocatedFrom string) string {
	if relocatedFrom != "" && c.Category != diff.CategoryTextChanged {
		return string(diff.CategoryRelocated)
	}
	return string(c.Category)
}

// extractIdentity runs best-effort title enrichment. Failures are logged
// and ignored; version creation never blocks on enrichment.
func (e *Engine) extractIdentity(ctx context.Context, text string) *extract.Identity {
	if e.titles == nil || text == "" {
		return nil
	}
	identity, err := e.titles.ExtractIdentity(ctx, text)
	if err != nil {
		e.logger.Warn("title extraction failed", "provider", e.titles.Name(), "error", err)
		return nil
	}
	return identity
}

// refreshValidators caches the latest response validators on the source.
func (e *Engine) refreshValidators(source *models.MonitoredSource, v fetch.Validators, quickHash string) {
	if err := source.UpdateValidators(e.db, v.ETag, v.LastModified, v.ContentLength, quickHash); err != nil {
		e.logger.Warn("failed to update validators", "source", source.ID, "error", err)
	}
}

// recoverSource runs identity resolution after a fetch failure. On a
// successful match the document is fetched from its new URL and the full
// pipeline reruns; the source URL moves inside the persist transaction so a
// failed re-fetch never strands the source at an unverified URL.
func (e *Engine) recoverSource(ctx context.Context, source *models.MonitoredSource) (Outcome, error) {
	_, priorText, err := e.loadPrior(ctx, source)
	if err != nil {
		return OutcomeError, err
	}

	resolution, err := e.resolver.Resolve(ctx, resolve.Request{
		SourceURL:  source.URL,
		ListingURL: source.ListingURL,
		FormNumber: source.FormNumber,
		Title:      source.Title,
		PriorText:  priorText,
	})
	if err != nil {
		return OutcomeError, err
	}
	if !resolution.Status.Moved() {
		e.logger.Warn("source not found after resolution", "source", source.ID, "url", source.URL)
		return OutcomeNotFound, nil
	}

	e.logger.Info("source relocated",
		"source", source.ID,
		"from", source.URL,
		"to", resolution.URL,
		"status", resolution.Status,
		"reason", resolution.Reason)

	// Full pipeline against the new URL; an empty cache forces tier 3.
	plan, err := e.planner.Check(ctx, resolution.URL, fetch.Cached{})
	if err != nil {
		return OutcomeError, fmt.Errorf("re-fetch after resolution failed: %w", err)
	}
	return e.ingest(ctx, source, plan, resolution.URL, source.URL)
}
