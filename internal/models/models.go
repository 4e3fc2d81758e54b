package models

import "time"

// Stage is the structured pipeline state of a paper. It advances
// monotonically; failed is terminal for the current run but a manual
// retry restarts the pipeline from scratch.
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageDownloaded Stage = "downloaded"
	StageExtracted  Stage = "extracted"
	StageCleaned    Stage = "cleaned"
	StageIndexed    Stage = "indexed"
	StageFailed     Stage = "failed"
)

type Paper struct {
	ArxivID          string     `json:"arxiv_id"`
	Title            string     `json:"title"`
	Authors          []string   `json:"authors"`
	Abstract         string     `json:"abstract,omitempty"`
	PublishedDate    *time.Time `json:"published_date,omitempty"`
	PDFURL           string     `json:"pdf_url,omitempty"`
	EntryID          string     `json:"entry_id,omitempty"`
	Source           string     `json:"source"`
	LocalPDFPath     string     `json:"local_pdf_path,omitempty"`
	VectorCollection string     `json:"vector_collection,omitempty"`
	Stage            Stage      `json:"stage"`
	FailedStage      string     `json:"failed_stage,omitempty"`
	StatusNotes      string     `json:"status_notes,omitempty"`
	DownloadedAt     *time.Time `json:"downloaded_at,omitempty"`
	ExtractedAt      *time.Time `json:"extracted_at,omitempty"`
	CleanedAt        *time.Time `json:"cleaned_at,omitempty"`
	IndexedAt        *time.Time `json:"indexed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ChatReady reports whether the paper's full text is indexed and can
// back a chat turn. indexed_at set implies vector_collection is set.
func (p Paper) ChatReady() bool {
	return p.IndexedAt != nil && p.VectorCollection != ""
}

// PaperStatus is the per-paper status object the web layer polls.
type PaperStatus struct {
	ArxivID          string     `json:"paper_id"`
	Title            string     `json:"title"`
	Stage            Stage      `json:"stage"`
	FailedStage      string     `json:"failed_stage,omitempty"`
	DownloadedAt     *time.Time `json:"downloaded_at"`
	ExtractedAt      *time.Time `json:"text_extracted_at"`
	CleanedAt        *time.Time `json:"cleaned_text_at"`
	IndexedAt        *time.Time `json:"indexed_at"`
	VectorCollection string     `json:"vector_collection,omitempty"`
	ChatReady        bool       `json:"is_ready_for_chat"`
	StatusNotes      string     `json:"processing_status_notes,omitempty"`
}

func (p Paper) Status() PaperStatus {
	return PaperStatus{
		ArxivID:          p.ArxivID,
		Title:            p.Title,
		Stage:            p.Stage,
		FailedStage:      p.FailedStage,
		DownloadedAt:     p.DownloadedAt,
		ExtractedAt:      p.ExtractedAt,
		CleanedAt:        p.CleanedAt,
		IndexedAt:        p.IndexedAt,
		VectorCollection: p.VectorCollection,
		ChatReady:        p.ChatReady(),
		StatusNotes:      p.StatusNotes,
	}
}

// TokenUsage carries provider-reported token counts. Nil means the
// provider returned no usage data, which is not an error.
type TokenUsage struct {
	InputTokens  *int `json:"input_tokens"`
	OutputTokens *int `json:"output_tokens"`
	TotalTokens  *int `json:"total_tokens"`
}

// PaperSummary is the per-paper abstract summary produced on search.
type PaperSummary struct {
	PaperID      string `json:"paper_id"`
	Title        string `json:"title"`
	Abstract     string `json:"abstract,omitempty"`
	Summary      string `json:"summary"`
	InputTokens  *int   `json:"input_tokens"`
	OutputTokens *int   `json:"output_tokens"`
}

// Synthesis is the cross-paper consolidated summary.
type Synthesis struct {
	Content      string `json:"content"`
	InputTokens  *int   `json:"input_tokens"`
	OutputTokens *int   `json:"output_tokens"`
}

// ContextChunk is one retrieved chunk with provenance.
type ContextChunk struct {
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

// PaperContext is the retrieval result for a single paper.
type PaperContext struct {
	Title  string         `json:"title"`
	Text   string         `json:"text"`
	Chunks []ContextChunk `json:"_chunks"`
}

type ChatSession struct {
	SessionID string    `json:"session_id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"session_name"`
	PaperIDs  []string  `json:"paper_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatMessage struct {
	MessageID int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}
