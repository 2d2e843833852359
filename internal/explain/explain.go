// Package explain turns an official dispatch into a plain-language
// explanation using the Gemini generateContent API. Explain never fails:
// every problem collapses into one of the fixed user-facing messages below.
package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

// Fixed responses.
const (
	MsgNotConfigured = "Chave de API não configurada. Por favor, configure a chave para usar a IA."
	MsgEmpty         = "Não foi possível gerar uma explicação no momento."
	MsgFailed        = "Erro ao consultar inteligência artificial. Tente novamente mais tarde."
)

// SystemInstruction frames the model as a Brazilian IP lawyer.
const SystemInstruction = `Você é um advogado especialista em propriedade intelectual no Brasil.
Seu objetivo é explicar despachos do INPI para leigos.
Use linguagem simples, direta e orientada a ação.
Não use juridiquês desnecessário.
Sempre termine com uma recomendação clara do próximo passo.`

// Defaults for Config.
const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultTimeout = 30 * time.Second
)

// Explainer produces an explanation for a dispatch.
type Explainer interface {
	Explain(ctx context.Context, d domain.Dispatch) string
}

// Config configures a Gemini client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	RPS     float64 // outbound calls per second; <= 0 disables throttling
}

// Gemini is an Explainer backed by the Gemini REST API.
type Gemini struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewGemini applies defaults to cfg and returns a client.
func NewGemini(cfg Config) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	g := &Gemini{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
	if cfg.RPS > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return g
}

// Prompt builds the user prompt for d.
func Prompt(d domain.Dispatch) string {
	return fmt.Sprintf("Explique o seguinte despacho do INPI para um leigo e diga o que fazer:\nCódigo: %s\nDescrição: %s\nStatus: %s\n",
		d.Code, d.Description, d.Status.Label())
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction content   `json:"systemInstruction"`
	Contents          []content `json:"contents"`
	GenerationConfig  struct {
		ThinkingConfig struct {
			ThinkingBudget int `json:"thinkingBudget"`
		} `json:"thinkingConfig"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Explain implements Explainer.
func (g *Gemini) Explain(ctx context.Context, d domain.Dispatch) string {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return MsgNotConfigured
	}
	l := log.Ctx(ctx).With().Str("component", "explain").Str("code", d.Code).Logger()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			l.Warn().Err(err).Msg("explain throttled")
			return MsgFailed
		}
	}

	text, err := g.generate(ctx, Prompt(d))
	if err != nil {
		l.Error().Err(err).Msg("explain request failed")
		return MsgFailed
	}
	if strings.TrimSpace(text) == "" {
		return MsgEmpty
	}
	return text
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	var body generateRequest
	body.SystemInstruction = content{Parts: []part{{Text: SystemInstruction}}}
	body.Contents = []content{{Role: "user", Parts: []part{{Text: prompt}}}}

	buf, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Static always returns Text. It backs the CLI and tests.
type Static struct {
	Text string
}

// Explain implements Explainer.
func (s Static) Explain(context.Context, domain.Dispatch) string { return s.Text }
