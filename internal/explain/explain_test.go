package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

var exigencia = domain.Dispatch{
	Code:        "EX001",
	Description: "Exigência Formal",
	Status:      domain.DispatchPendingAction,
}

func TestExplain_NotConfigured(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	g := NewGemini(Config{BaseURL: srv.URL})
	assert.Equal(t, MsgNotConfigured, g.Explain(context.Background(), exigencia))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestExplain_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, SystemInstruction, req.SystemInstruction.Parts[0].Text)
		assert.True(t, strings.Contains(req.Contents[0].Parts[0].Text, "Código: EX001"))

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Responda "},{"text":"a exigência."}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(Config{APIKey: "k", BaseURL: srv.URL + "/", RPS: 100})
	assert.Equal(t, "Responda a exigência.", g.Explain(context.Background(), exigencia))
}

func TestExplain_FixedFallbacks(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"empty candidates", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"candidates":[]}`)) }, MsgEmpty},
		{"blank text", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`))
		}, MsgEmpty},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }, MsgFailed},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{`)) }, MsgFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			g := NewGemini(Config{APIKey: "k", BaseURL: srv.URL})
			assert.Equal(t, tc.want, g.Explain(context.Background(), exigencia))
		})
	}
}

func TestExplain_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	g := NewGemini(Config{APIKey: "k", BaseURL: srv.URL})
	assert.Equal(t, MsgFailed, g.Explain(ctx, exigencia))
}

func TestPromptAndStatic(t *testing.T) {
	p := Prompt(exigencia)
	assert.Contains(t, p, "Descrição: Exigência Formal")
	assert.Contains(t, p, "Status: Pendente de Ação")
	assert.Equal(t, "x", Static{Text: "x"}.Explain(context.Background(), exigencia))
}
