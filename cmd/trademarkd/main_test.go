package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/search"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("REGISTRY_LATENCY", "0s")
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	out, err := runCLI(t, "search", "123456789")
	require.NoError(t, err)
	assert.Contains(t, out, "EX001")
	assert.Contains(t, out, "Pendente de Ação")
	assert.Contains(t, out, "required")

	_, err = runCLI(t, "search", "12")
	assert.Error(t, err)
}

func TestAttentionCommand_Empty(t *testing.T) {
	out, err := runCLI(t, "attention", "--user", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing needs attention.")
}

func TestArticlesCommand(t *testing.T) {
	out, err := runCLI(t, "articles", "marca", "-k", "2")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = runCLI(t, "articles", "zzzzqqq")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching articles.")
}

func TestArticlesCommand_Read(t *testing.T) {
	out, err := runCLI(t, "articles", "--read", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Como depositar uma marca?")
	assert.Contains(t, out, "2. Faça uma busca prévia\n\nAntes de pagar")
	assert.NotContains(t, out, "<p>")

	_, err = runCLI(t, "articles", "--read", "99")
	assert.ErrorContains(t, err, "not found")

	_, err = runCLI(t, "articles")
	assert.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	_, err := runCLI(t, "articles", "marca")
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestRenderAttention(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	p := domain.Process{
		CaseNumber: "123456789",
		BrandName:  "CAFÉ TECH",
		NiceClass:  "30",
		Dispatches: []domain.Dispatch{{Code: "EX001", Status: domain.DispatchPendingAction}},
		Deadlines: []domain.Deadline{
			{ID: "b", Title: "Later", Date: now.AddDate(0, 1, 0)},
			{ID: "a", Title: "Soon", Date: now.AddDate(0, 0, 2)},
		},
	}
	var buf bytes.Buffer
	renderAttention(&buf, []domain.Process{p}, now)
	out := buf.String()
	assert.Contains(t, out, "Café Tech")
	assert.Contains(t, out, "dispatch EX001, urgent deadline")
	assert.Contains(t, out, "2024-03-12 Soon (urgent)")
}

func TestRenderResults_TruncatesSnippet(t *testing.T) {
	var buf bytes.Buffer
	renderResults(&buf, []search.Result{{DocID: 1, Title: "T", Snippet: strings.Repeat("a", 200), Score: 0.5}})
	assert.Contains(t, buf.String(), "…")
	assert.NotContains(t, buf.String(), strings.Repeat("a", 100))
}
