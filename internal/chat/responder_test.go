package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paperflow/internal/llm"
	"paperflow/internal/models"
	"paperflow/internal/prompts"
)

type fakeCompleter struct {
	reply    string
	usage    models.TokenUsage
	messages []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, messages []llm.Message, _ int, _, _ float32) (llm.Completion, error) {
	f.messages = messages
	return llm.Completion{Content: f.reply, Usage: f.usage}, nil
}

func testLibrary(t *testing.T) *prompts.Library {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		prompts.SysPaperSummary:  "summarize",
		prompts.UserPaperSummary: "{paper_title} {paper_abstract}",
		prompts.SysSynthesis:     "synthesize",
		prompts.UserSynthesis:    "{query} {summaries}",
		prompts.SysChat:          "you are a research assistant",
		prompts.UserChat:         "Context:\n{context}\nQuestion: {user_query}",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(body), 0o644))
	}
	lib, err := prompts.NewLibrary(dir)
	require.NoError(t, err)
	return lib
}

func history(n int) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		out = append(out, models.ChatMessage{
			MessageID: int64(i + 1),
			Role:      role,
			Content:   fmt.Sprintf("message %d", i+1),
		})
	}
	return out
}

func TestWindowHistory(t *testing.T) {
	full := history(30)

	got := WindowHistory(full, 10)
	require.Len(t, got, 20)
	require.Equal(t, "message 11", got[0].Content, "oldest kept message")
	require.Equal(t, "message 30", got[19].Content, "newest message last")

	require.Len(t, WindowHistory(history(4), 10), 4)
	require.Nil(t, WindowHistory(full, 0))
	require.Nil(t, WindowHistory(nil, 10))
}

func TestRespondBuildsBoundedPrompt(t *testing.T) {
	fc := &fakeCompleter{reply: "the answer"}
	r := NewResponder(fc, testLibrary(t), "model", 4096, zap.NewNop())

	answer, _, err := r.Respond(context.Background(), "some context", "what about x", history(30), 10)
	require.NoError(t, err)
	require.Equal(t, "the answer", answer)

	// system + 20 windowed history messages + templated user turn.
	require.Len(t, fc.messages, 22)
	require.Equal(t, llm.RoleSystem, fc.messages[0].Role)
	require.Equal(t, "message 11", fc.messages[1].Content)
	require.Equal(t, "message 30", fc.messages[20].Content)

	last := fc.messages[21]
	require.Equal(t, llm.RoleUser, last.Role)
	require.Contains(t, last.Content, "some context")
	require.Contains(t, last.Content, "Question: what about x")
}

func TestRespondReportsUsage(t *testing.T) {
	in, out, total := 10, 5, 15
	fc := &fakeCompleter{
		reply: "ok",
		usage: models.TokenUsage{InputTokens: &in, OutputTokens: &out, TotalTokens: &total},
	}
	r := NewResponder(fc, testLibrary(t), "model", 4096, zap.NewNop())

	_, usage, err := r.Respond(context.Background(), "", "q", nil, 10)
	require.NoError(t, err)
	require.Equal(t, 10, *usage.InputTokens)
	require.Equal(t, 5, *usage.OutputTokens)
	require.Equal(t, 15, *usage.TotalTokens)
}
