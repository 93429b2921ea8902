package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// MaxPromptMessages is the number of most recent messages sent to the model
const MaxPromptMessages = 200

// ErrDisabled is returned when no Gemini API key is configured
var ErrDisabled = errors.New("digest generation is disabled")

// Generator writes short digests of conversations using Gemini
type Generator struct {
	apiKey  string
	model   string
	timeout time.Duration
	logger  zerolog.Logger

	mu          sync.Mutex
	genaiClient *genai.Client
}

// NewGenerator creates a new digest generator
func NewGenerator(apiKey, model string, timeoutSeconds int, logger zerolog.Logger) *Generator {
	return &Generator{
		apiKey:  apiKey,
		model:   model,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		logger:  logger.With().Str("component", "digest_generator").Logger(),
	}
}

// Enabled reports whether the generator has an API key
func (g *Generator) Enabled() bool {
	return g.apiKey != ""
}

// Close closes the generator and releases resources
func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.genaiClient != nil {
		err := g.genaiClient.Close()
		g.genaiClient = nil
		if err != nil {
			g.logger.Error().Err(err).Msg("Failed to close Gemini client")
			return err
		}
		g.logger.Info().Msg("Digest generator client closed")
	}
	return nil
}

// getClient returns or creates a genai client
func (g *Generator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.genaiClient != nil {
		return g.genaiClient, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	g.genaiClient = client
	g.logger.Info().Msg("Digest generator Gemini client created")
	return g.genaiClient, nil
}

// Digest summarizes a conversation
func (g *Generator) Digest(ctx context.Context, sessionID string, messages []models.Message) (*models.DigestResult, error) {
	if !g.Enabled() {
		return nil, ErrDisabled
	}
	if len(messages) == 0 {
		g.logger.Debug().Str("session_id", sessionID).Msg("No messages to digest")
		return &models.DigestResult{SessionID: sessionID, ModelUsed: g.model}, nil
	}

	g.logger.Info().
		Str("session_id", sessionID).
		Int("message_count", len(messages)).
		Msg("Starting digest generation")

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := g.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get genai client: %w", err)
	}

	model := client.GenerativeModel(g.model)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(1024)

	prompt := BuildPrompt(sessionID, messages)

	g.logger.Debug().
		Str("session_id", sessionID).
		Int("prompt_length", len(prompt)).
		Msg("Sending request to LLM")

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		g.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to generate digest")
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	result := &models.DigestResult{
		SessionID:    sessionID,
		Text:         CleanResponse(text),
		ModelUsed:    g.model,
		MessageCount: min(len(messages), MaxPromptMessages),
	}

	g.logger.Info().
		Str("session_id", sessionID).
		Int("response_length", len(result.Text)).
		Msg("Digest generation completed")

	return result, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates from LLM")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content parts in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// BuildPrompt constructs the prompt for a conversation digest
func BuildPrompt(sessionID string, messages []models.Message) string {
	var sb strings.Builder

	sb.WriteString("Resume la siguiente conversación entre un usuario y un asistente virtual (sesión ")
	sb.WriteString(sessionID)
	sb.WriteString(").\n\n")
	sb.WriteString("IMPORTANTE:\n")
	sb.WriteString("1. Escribe en español\n")
	sb.WriteString("2. Empieza con una frase que describa el objetivo del usuario\n")
	sb.WriteString("3. Después enumera de 3 a 5 puntos clave, uno por línea, empezando con \"- \"\n")
	sb.WriteString("4. Termina indicando si la consulta quedó resuelta\n")
	sb.WriteString("5. No inventes información que no aparezca en la conversación\n\n")

	toUse := messages
	if len(messages) > MaxPromptMessages {
		toUse = messages[len(messages)-MaxPromptMessages:]
		fmt.Fprintf(&sb, "[Se muestran los últimos %d de %d mensajes]\n\n", MaxPromptMessages, len(messages))
	}

	sb.WriteString("Conversación:\n\n")
	for _, msg := range toUse {
		fmt.Fprintf(&sb, "%s: %s\n", speaker(msg.Type), msg.Content)
	}

	sb.WriteString("\nResumen:")
	return sb.String()
}

func speaker(t models.MessageType) string {
	switch t {
	case models.MessageHuman:
		return "Usuario"
	case models.MessageAI:
		return "Asistente"
	default:
		return "Desconocido"
	}
}

// CleanResponse drops headers the model sometimes adds and blank line runs
func CleanResponse(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		lower := strings.ToLower(strings.TrimSpace(line))
		if lower == "resumen:" || lower == "**resumen**" || lower == "**resumen:**" {
			continue
		}
		if line == "" && (len(cleaned) == 0 || cleaned[len(cleaned)-1] == "") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
