package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

type PaperRepo struct {
	db *DB
}

func NewPaperRepo(db *DB) *PaperRepo {
	return &PaperRepo{db: db}
}

const paperColumns = `
arxiv_id, title, authors, COALESCE(abstract,''), published_date, COALESCE(pdf_url,''),
COALESCE(entry_id,''), source, COALESCE(local_pdf_path,''), COALESCE(vector_collection,''),
stage, COALESCE(failed_stage,''), status_notes,
downloaded_at, extracted_at, cleaned_at, indexed_at, created_at, updated_at`

func scanPaper(row pgx.Row) (models.Paper, error) {
	var p models.Paper
	err := row.Scan(
		&p.ArxivID, &p.Title, &p.Authors, &p.Abstract, &p.PublishedDate, &p.PDFURL,
		&p.EntryID, &p.Source, &p.LocalPDFPath, &p.VectorCollection,
		&p.Stage, &p.FailedStage, &p.StatusNotes,
		&p.DownloadedAt, &p.ExtractedAt, &p.CleanedAt, &p.IndexedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// UpsertFromSearch records a search hit. Re-discovering a paper
// refreshes its metadata but never regresses pipeline state or
// timestamps.
func (r *PaperRepo) UpsertFromSearch(ctx context.Context, p models.Paper) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO papers (arxiv_id, title, authors, abstract, published_date, pdf_url, entry_id, source)
VALUES ($1, $2, $3, NULLIF($4,''), $5, NULLIF($6,''), NULLIF($7,''), $8)
ON CONFLICT (arxiv_id)
DO UPDATE SET
  title = EXCLUDED.title,
  authors = EXCLUDED.authors,
  abstract = COALESCE(EXCLUDED.abstract, papers.abstract),
  published_date = COALESCE(EXCLUDED.published_date, papers.published_date),
  pdf_url = COALESCE(EXCLUDED.pdf_url, papers.pdf_url),
  entry_id = COALESCE(EXCLUDED.entry_id, papers.entry_id),
  updated_at = NOW()`,
		p.ArxivID, p.Title, p.Authors, p.Abstract, p.PublishedDate, p.PDFURL, p.EntryID, p.Source,
	)
	if err != nil {
		return fmt.Errorf("upsert paper: %w", err)
	}
	return nil
}

func (r *PaperRepo) Get(ctx context.Context, arxivID string) (models.Paper, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers WHERE arxiv_id=$1`, arxivID)
	p, err := scanPaper(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Paper{}, fmt.Errorf("%w: paper %s", util.ErrNotFound, arxivID)
	}
	if err != nil {
		return models.Paper{}, fmt.Errorf("get paper: %w", err)
	}
	return p, nil
}

func (r *PaperRepo) ListByIDs(ctx context.Context, arxivIDs []string) ([]models.Paper, error) {
	if len(arxivIDs) == 0 {
		return []models.Paper{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT `+paperColumns+` FROM papers WHERE arxiv_id = ANY($1)`, arxivIDs)
	if err != nil {
		return nil, fmt.Errorf("list papers by ids: %w", err)
	}
	defer rows.Close()

	out := make([]models.Paper, 0, len(arxivIDs))
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

// MarkDownloaded advances the paper past the download stage. Single
// statement, so a concurrent reader never sees a half-written stage.
func (r *PaperRepo) MarkDownloaded(ctx context.Context, arxivID, localPath string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET stage='downloaded', failed_stage=NULL, local_pdf_path=$2,
  downloaded_at=COALESCE(downloaded_at, NOW()), updated_at=NOW()
WHERE arxiv_id=$1`, arxivID, localPath)
	if err != nil {
		return fmt.Errorf("mark downloaded: %w", err)
	}
	return nil
}

func (r *PaperRepo) MarkExtracted(ctx context.Context, arxivID string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET stage='extracted', failed_stage=NULL,
  extracted_at=COALESCE(extracted_at, NOW()), updated_at=NOW()
WHERE arxiv_id=$1`, arxivID)
	if err != nil {
		return fmt.Errorf("mark extracted: %w", err)
	}
	return nil
}

func (r *PaperRepo) MarkCleaned(ctx context.Context, arxivID string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET stage='cleaned', failed_stage=NULL,
  cleaned_at=COALESCE(cleaned_at, NOW()), updated_at=NOW()
WHERE arxiv_id=$1`, arxivID)
	if err != nil {
		return fmt.Errorf("mark cleaned: %w", err)
	}
	return nil
}

func (r *PaperRepo) MarkIndexed(ctx context.Context, arxivID, collection string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET stage='indexed', failed_stage=NULL, vector_collection=$2,
  indexed_at=COALESCE(indexed_at, NOW()), updated_at=NOW()
WHERE arxiv_id=$1`, arxivID, collection)
	if err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	return nil
}

// MarkFailed records a stage failure and appends a human-readable note
// to the paper's running status history.
func (r *PaperRepo) MarkFailed(ctx context.Context, arxivID, stage, reason string) error {
	note := fmt.Sprintf(" (%s Failed: %s)", titleStage(stage), reason)
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET stage='failed', failed_stage=$2,
  status_notes = status_notes || $3, updated_at=NOW()
WHERE arxiv_id=$1`, arxivID, stage, note)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetForRetry returns a paper to discovered so a manual retry runs
// the whole pipeline again.
func (r *PaperRepo) ResetForRetry(ctx context.Context, arxivID string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET stage='discovered', failed_stage=NULL,
  downloaded_at=NULL, extracted_at=NULL, cleaned_at=NULL, indexed_at=NULL,
  vector_collection=NULL, updated_at=NOW()
WHERE arxiv_id=$1`, arxivID)
	if err != nil {
		return fmt.Errorf("reset paper for retry: %w", err)
	}
	return nil
}

func titleStage(stage string) string {
	switch stage {
	case "download":
		return "Download"
	case "extract":
		return "Extract"
	case "clean":
		return "Clean"
	case "index":
		return "Index"
	}
	return stage
}
