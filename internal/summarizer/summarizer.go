// Package summarizer produces the immediate per-paper summaries and
// the cross-paper synthesis returned on the synchronous search path.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"paperflow/internal/arxiv"
	"paperflow/internal/llm"
	"paperflow/internal/models"
	"paperflow/internal/prompts"
)

// placeholderSummary is returned for papers with no abstract; no model
// call is made for those.
const placeholderSummary = "Abstract not available to summarize."

const (
	temperature float32 = 0.0
	topP        float32 = 0.5
)

type Summarizer struct {
	completer llm.Completer
	prompts   *prompts.Library
	model     string

	summaryMaxTokens   int
	synthesisMaxTokens int

	log *zap.Logger
}

func New(completer llm.Completer, lib *prompts.Library, model string, summaryMaxTokens, synthesisMaxTokens int, log *zap.Logger) *Summarizer {
	if summaryMaxTokens <= 0 {
		summaryMaxTokens = 150
	}
	if synthesisMaxTokens <= 0 {
		synthesisMaxTokens = 300
	}
	return &Summarizer{
		completer:          completer,
		prompts:            lib,
		model:              model,
		summaryMaxTokens:   summaryMaxTokens,
		synthesisMaxTokens: synthesisMaxTokens,
		log:                log,
	}
}

// SummarizePapers builds one short summary per paper from its title and
// abstract.
func (s *Summarizer) SummarizePapers(ctx context.Context, papers []arxiv.Result) ([]models.PaperSummary, error) {
	sysPrompt, err := s.prompts.Text(prompts.SysPaperSummary)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.PaperSummary, 0, len(papers))
	for _, paper := range papers {
		out := models.PaperSummary{
			PaperID:  paper.PaperID,
			Title:    paper.Title,
			Abstract: paper.Abstract,
		}
		if strings.TrimSpace(paper.Abstract) == "" {
			zero := 0
			out.Summary = placeholderSummary
			out.InputTokens = &zero
			out.OutputTokens = &zero
			summaries = append(summaries, out)
			continue
		}

		userPrompt, err := s.prompts.Render(prompts.UserPaperSummary, map[string]string{
			"paper_title":    paper.Title,
			"paper_abstract": paper.Abstract,
		})
		if err != nil {
			return nil, err
		}
		comp, err := s.completer.Complete(ctx, s.model, []llm.Message{
			{Role: llm.RoleSystem, Content: sysPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		}, s.summaryMaxTokens, temperature, topP)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", paper.PaperID, err)
		}
		out.Summary = comp.Content
		out.InputTokens = comp.Usage.InputTokens
		out.OutputTokens = comp.Usage.OutputTokens
		summaries = append(summaries, out)
	}
	s.log.Info("individual summaries generated", zap.Int("papers", len(summaries)))
	return summaries, nil
}

// Synthesize asks the model for a single cross-paper answer to the
// original query, grounded on the per-paper summaries. Papers without
// a summary are skipped.
func (s *Summarizer) Synthesize(ctx context.Context, summaries []models.PaperSummary, query string) (models.Synthesis, error) {
	sysPrompt, err := s.prompts.Text(prompts.SysSynthesis)
	if err != nil {
		return models.Synthesis{}, err
	}

	blocks := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		if strings.TrimSpace(sum.Summary) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[%s] Title: %s\nSummary: %s", sum.PaperID, sum.Title, sum.Summary))
	}

	userPrompt, err := s.prompts.Render(prompts.UserSynthesis, map[string]string{
		"query":     query,
		"summaries": strings.Join(blocks, "\n"),
	})
	if err != nil {
		return models.Synthesis{}, err
	}
	comp, err := s.completer.Complete(ctx, s.model, []llm.Message{
		{Role: llm.RoleSystem, Content: sysPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}, s.synthesisMaxTokens, temperature, topP)
	if err != nil {
		return models.Synthesis{}, fmt.Errorf("synthesize: %w", err)
	}
	return models.Synthesis{
		Content:      comp.Content,
		InputTokens:  comp.Usage.InputTokens,
		OutputTokens: comp.Usage.OutputTokens,
	}, nil
}
