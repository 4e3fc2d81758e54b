package summarizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paperflow/internal/arxiv"
	"paperflow/internal/llm"
	"paperflow/internal/models"
	"paperflow/internal/prompts"
)

type fakeCompleter struct {
	responses []llm.Completion
	requests  [][]llm.Message
	maxTokens []int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, messages []llm.Message, maxTokens int, _, _ float32) (llm.Completion, error) {
	f.requests = append(f.requests, messages)
	f.maxTokens = append(f.maxTokens, maxTokens)
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func testLibrary(t *testing.T) *prompts.Library {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		prompts.SysPaperSummary:  "summarize",
		prompts.UserPaperSummary: "Title: {paper_title}\nAbstract: {paper_abstract}",
		prompts.SysSynthesis:     "synthesize",
		prompts.UserSynthesis:    "Q: {query}\nS:\n{summaries}",
		prompts.SysChat:          "chat",
		prompts.UserChat:         "{context} {user_query}",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(body), 0o644))
	}
	lib, err := prompts.NewLibrary(dir)
	require.NoError(t, err)
	return lib
}

func usage(in, out, total int) models.TokenUsage {
	return models.TokenUsage{InputTokens: &in, OutputTokens: &out, TotalTokens: &total}
}

func TestSummarizePapers(t *testing.T) {
	fc := &fakeCompleter{responses: []llm.Completion{
		{Content: "a short summary", Usage: usage(40, 20, 60)},
	}}
	s := New(fc, testLibrary(t), "model", 150, 300, zap.NewNop())

	papers := []arxiv.Result{
		{PaperID: "p1", Title: "One", Abstract: "full abstract"},
	}
	out, err := s.SummarizePapers(context.Background(), papers)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "a short summary", out[0].Summary)
	require.Equal(t, 40, *out[0].InputTokens)
	require.Equal(t, 20, *out[0].OutputTokens)

	require.Len(t, fc.requests, 1)
	require.Equal(t, llm.RoleSystem, fc.requests[0][0].Role)
	require.Contains(t, fc.requests[0][1].Content, "Title: One")
	require.Contains(t, fc.requests[0][1].Content, "full abstract")
	require.Equal(t, 150, fc.maxTokens[0])
}

func TestSummarizePapersMissingAbstract(t *testing.T) {
	fc := &fakeCompleter{responses: []llm.Completion{{Content: "should not be used"}}}
	s := New(fc, testLibrary(t), "model", 150, 300, zap.NewNop())

	out, err := s.SummarizePapers(context.Background(), []arxiv.Result{
		{PaperID: "p1", Title: "No Abstract", Abstract: "   "},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Abstract not available to summarize.", out[0].Summary)
	require.Equal(t, 0, *out[0].InputTokens)
	require.Equal(t, 0, *out[0].OutputTokens)
	require.Empty(t, fc.requests, "no model call for a missing abstract")
}

func TestSynthesize(t *testing.T) {
	fc := &fakeCompleter{responses: []llm.Completion{
		{Content: "consolidated answer", Usage: usage(100, 50, 150)},
	}}
	s := New(fc, testLibrary(t), "model", 150, 300, zap.NewNop())

	summaries := []models.PaperSummary{
		{PaperID: "p1", Title: "One", Summary: "sum one"},
		{PaperID: "p2", Title: "Two", Summary: ""},
		{PaperID: "p3", Title: "Three", Summary: "sum three"},
	}
	syn, err := s.Synthesize(context.Background(), summaries, "the query")
	require.NoError(t, err)
	require.Equal(t, "consolidated answer", syn.Content)
	require.Equal(t, 100, *syn.InputTokens)

	require.Len(t, fc.requests, 1)
	prompt := fc.requests[0][1].Content
	require.Contains(t, prompt, "Q: the query")
	require.Contains(t, prompt, "[p1] Title: One\nSummary: sum one")
	require.Contains(t, prompt, "[p3] Title: Three\nSummary: sum three")
	require.NotContains(t, prompt, "[p2]", "papers without a summary are skipped")
	require.Equal(t, 300, fc.maxTokens[0])
}
