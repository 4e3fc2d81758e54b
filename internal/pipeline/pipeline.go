// Package pipeline runs the per-paper ingestion state machine on an
// in-process worker pool: download, extract, clean, index. Each paper
// advances monotonically and at most one run per paper is in flight.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

// PaperStore is the persistence surface the runner needs.
type PaperStore interface {
	Get(ctx context.Context, arxivID string) (models.Paper, error)
	MarkDownloaded(ctx context.Context, arxivID, localPath string) error
	MarkExtracted(ctx context.Context, arxivID string) error
	MarkCleaned(ctx context.Context, arxivID string) error
	MarkIndexed(ctx context.Context, arxivID, collection string) error
	MarkFailed(ctx context.Context, arxivID, stage, reason string) error
	ResetForRetry(ctx context.Context, arxivID string) error
}

type Downloader interface {
	Fetch(ctx context.Context, url, paperID string) (string, error)
	Path(paperID string) string
}

type Extractor interface {
	Text(path string) (string, error)
}

type Indexer interface {
	Index(ctx context.Context, paperID, title, text string) (string, error)
}

// Cleaner normalizes extracted text. It must not fail; a cleaner that
// cannot improve the text returns it unchanged.
type Cleaner func(text string) string

type Runner struct {
	store      PaperStore
	downloader Downloader
	extractor  Extractor
	cleaner    Cleaner
	indexer    Indexer
	log        *zap.Logger

	workers int
	queue   chan string

	mu       sync.Mutex
	inflight map[string]struct{}

	wg   sync.WaitGroup
	stop context.CancelFunc
}

func NewRunner(store PaperStore, dl Downloader, ex Extractor, cl Cleaner, ix Indexer, workers, queueSize int, log *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Runner{
		store:      store,
		downloader: dl,
		extractor:  ex,
		cleaner:    cl,
		indexer:    ix,
		log:        log,
		workers:    workers,
		queue:      make(chan string, queueSize),
		inflight:   make(map[string]struct{}),
	}
}

// Start launches the worker pool. Workers drain the queue until Stop.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.stop = context.WithCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.log.Info("pipeline workers started", zap.Int("workers", r.workers))
}

// Stop cancels in-flight work and waits for the workers to exit.
func (r *Runner) Stop() {
	if r.stop != nil {
		r.stop()
	}
	r.wg.Wait()
}

// Enqueue schedules a paper run. It returns false when the paper is
// already queued or running, or the queue is full; the paper will be
// picked up by a later search or an explicit retry.
func (r *Runner) Enqueue(paperID string) bool {
	r.mu.Lock()
	if _, busy := r.inflight[paperID]; busy {
		r.mu.Unlock()
		return false
	}
	r.inflight[paperID] = struct{}{}
	r.mu.Unlock()

	select {
	case r.queue <- paperID:
		return true
	default:
		r.release(paperID)
		r.log.Warn("pipeline queue full, dropping enqueue", zap.String("paper_id", paperID))
		return false
	}
}

// EnqueueRetry resets a paper to the start of the pipeline and
// schedules a fresh run. The in-flight slot is claimed before the
// reset so a concurrent Enqueue cannot start a run against the
// half-reset row.
func (r *Runner) EnqueueRetry(ctx context.Context, paperID string) (bool, error) {
	r.mu.Lock()
	if _, busy := r.inflight[paperID]; busy {
		r.mu.Unlock()
		return false, nil
	}
	r.inflight[paperID] = struct{}{}
	r.mu.Unlock()

	if err := r.store.ResetForRetry(ctx, paperID); err != nil {
		r.release(paperID)
		return false, err
	}

	select {
	case r.queue <- paperID:
		return true, nil
	default:
		r.release(paperID)
		r.log.Warn("pipeline queue full, dropping retry", zap.String("paper_id", paperID))
		return false, nil
	}
}

func (r *Runner) release(paperID string) {
	r.mu.Lock()
	delete(r.inflight, paperID)
	r.mu.Unlock()
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case paperID := <-r.queue:
			if err := r.Process(ctx, paperID); err != nil {
				r.log.Error("pipeline run failed",
					zap.Int("worker", id),
					zap.String("paper_id", paperID),
					zap.Error(err),
				)
			}
			r.release(paperID)
		}
	}
}

// Process runs the full pipeline for one paper, resuming from its
// current stage. Completed stages are skipped, so a rerun of an
// indexed paper is a no-op. A stage failure records failed_stage and
// halts; later stages never run on a failed paper.
func (r *Runner) Process(ctx context.Context, paperID string) error {
	p, err := r.store.Get(ctx, paperID)
	if err != nil {
		return err
	}
	if p.Stage == models.StageIndexed {
		r.log.Debug("paper already indexed, skipping", zap.String("paper_id", paperID))
		return nil
	}
	if p.Stage == models.StageFailed {
		r.log.Debug("paper failed previously, waiting for explicit retry", zap.String("paper_id", paperID))
		return nil
	}

	if p.LocalPDFPath == "" {
		p.LocalPDFPath = r.downloader.Path(p.ArxivID)
	}
	// A downloaded stamp without the file on disk means the PDF was
	// lost, fetch it again rather than failing at extract.
	if p.DownloadedAt == nil || !util.FileExists(p.LocalPDFPath) {
		path, err := r.downloader.Fetch(ctx, p.PDFURL, p.ArxivID)
		if err != nil {
			return r.fail(ctx, p.ArxivID, "download", err)
		}
		p.LocalPDFPath = path
		if p.DownloadedAt == nil {
			if err := r.store.MarkDownloaded(ctx, p.ArxivID, path); err != nil {
				return err
			}
		}
	}

	var text string
	if p.ExtractedAt == nil || p.CleanedAt == nil {
		text, err = r.extractor.Text(p.LocalPDFPath)
		if err != nil {
			return r.fail(ctx, p.ArxivID, "extract", err)
		}
		if p.ExtractedAt == nil {
			if err := r.store.MarkExtracted(ctx, p.ArxivID); err != nil {
				return err
			}
		}
		text = r.cleaner(text)
		if p.CleanedAt == nil {
			if err := r.store.MarkCleaned(ctx, p.ArxivID); err != nil {
				return err
			}
		}
	} else {
		// Cleaned but not indexed, e.g. a crash between stages.
		// Extraction and cleaning are deterministic, run them again.
		text, err = r.extractor.Text(p.LocalPDFPath)
		if err != nil {
			return r.fail(ctx, p.ArxivID, "extract", err)
		}
		text = r.cleaner(text)
	}

	collection, err := r.indexer.Index(ctx, p.ArxivID, p.Title, text)
	if err != nil {
		return r.fail(ctx, p.ArxivID, "index", err)
	}
	if collection == "" {
		return r.fail(ctx, p.ArxivID, "index", fmt.Errorf("%w: no chunks produced", util.ErrIndexing))
	}
	if err := r.store.MarkIndexed(ctx, p.ArxivID, collection); err != nil {
		return err
	}
	r.log.Info("paper pipeline complete",
		zap.String("paper_id", p.ArxivID),
		zap.String("collection", collection),
	)
	return nil
}

func (r *Runner) fail(ctx context.Context, paperID, stage string, cause error) error {
	if err := r.store.MarkFailed(ctx, paperID, stage, cause.Error()); err != nil {
		r.log.Error("failed to record stage failure",
			zap.String("paper_id", paperID),
			zap.String("stage", stage),
			zap.Error(err),
		)
	}
	return fmt.Errorf("%s stage for %s: %w", stage, paperID, cause)
}
