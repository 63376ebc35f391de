// Package detector implements event detection over an LLM.
package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"assistant_server/core/port/out"
	"assistant_server/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

const systemPrompt = `Sos un asistente que detecta eventos de calendario en mensajes de WhatsApp en español rioplatense.
Analizá el mensaje y decidí si el usuario quiere agendar algo (turno, reunión, cumpleaños, actividad).

Respondé SOLO con un JSON válido, sin texto adicional, con esta forma exacta:
{
  "detected": true/false,
  "confidence": 0.0-1.0,
  "event": {
    "title": "...",
    "date": "YYYY-MM-DD",
    "time": "HH:MM",
    "duration_minutes": 60,
    "location": "..." o null,
    "is_recurring": true/false,
    "recurrence_pattern": "..." o null
  },
  "missing_fields": ["date", "time", ...],
  "message": "pregunta breve para completar lo que falta, o confirmación"
}

Reglas:
- "mañana", "el jueves", "pasado mañana" se resuelven contra la fecha de hoy que te paso.
- Si no hay evento, detected=false y event=null.
- Horas siempre en formato 24hs.
- No inventes datos: lo que no está en el mensaje va a missing_fields.`

// OpenAIDetector implements out.EventDetectorPort with a chat completion.
type OpenAIDetector struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

var _ out.EventDetectorPort = (*OpenAIDetector)(nil)

// Config holds the detector's LLM settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewOpenAIDetector creates a new OpenAIDetector.
func NewOpenAIDetector(cfg Config) *OpenAIDetector {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIDetector{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		timeout:     timeout,
	}
}

// DetectEvent asks the model whether the message contains a schedulable event.
func (d *OpenAIDetector) DetectEvent(ctx context.Context, message, conversationContext string) (*out.DetectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Fecha de hoy: %s\n", time.Now().Format("2006-01-02 (Monday)"))
	if conversationContext != "" {
		userPrompt += fmt.Sprintf("Contexto de la conversación:\n%s\n", conversationContext)
	}
	userPrompt += fmt.Sprintf("Mensaje: %s", message)

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("event detection request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("event detection returned no choices")
	}

	result, err := parseDetection(resp.Choices[0].Message.Content)
	if err != nil {
		logger.Warn("[OpenAIDetector] Unparseable detection response: %v", err)
		return nil, err
	}
	return result, nil
}

// parseDetection decodes the model output, tolerating markdown code fences.
func parseDetection(content string) (*out.DetectionResult, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var result out.DetectionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("invalid detection payload: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range", result.Confidence)
	}
	return &result, nil
}
