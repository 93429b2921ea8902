package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chatlog-dashboard/internal/models"
)

// MaxMessageLength is the Telegram limit for one message
const MaxMessageLength = 4096

const barWidth = 10

var (
	entityStripper = strings.NewReplacer("_", "", "*", "", "[", "", "]", "", "`", "")
	codeStripper   = strings.NewReplacer("`", "")
)

// EntityText prepares text placed inside a bold or italic entity.
// Telegram Markdown V1 has no escaping there, so entity characters are removed.
func EntityText(text string) string {
	return entityStripper.Replace(text)
}

// codeText prepares text placed inside a code span
func codeText(text string) string {
	return codeStripper.Replace(text)
}

// Stats formats usage statistics as a Markdown message.
// scope names the user the stats were filtered by, empty for all users.
func Stats(stats models.StatsSummary, scope string) string {
	var sb strings.Builder

	if scope == "" {
		sb.WriteString("📊 *Estadísticas de conversaciones*\n\n")
	} else {
		fmt.Fprintf(&sb, "📊 *Estadísticas de %s*\n\n", EntityText(scope))
	}

	if stats.TotalMessages == 0 {
		sb.WriteString("Todavía no hay mensajes registrados.")
		return sb.String()
	}

	fmt.Fprintf(&sb, "💬 *Conversaciones:* %d\n", stats.TotalConversations)
	fmt.Fprintf(&sb, "✉️ *Mensajes:* %d\n", stats.TotalMessages)
	fmt.Fprintf(&sb, "🙋 *Usuario:* %d\n", stats.HumanMessages)
	fmt.Fprintf(&sb, "🤖 *Asistente:* %d\n", stats.AIMessages)

	if len(stats.MessagesByDay) > 0 {
		sb.WriteString("\n*Actividad:*\n`")
		for _, day := range stats.MessagesByDay {
			fmt.Fprintf(&sb, "%s %s %d\n", day.Label, Bar(day.Percentage), day.Count)
		}
		sb.WriteString("`")
	}

	if len(stats.RecentConversations) > 0 {
		sb.WriteString("\n*Recientes:*\n")
		for _, recent := range stats.RecentConversations {
			fmt.Fprintf(&sb, "• `%s` (%d mensajes)\n", codeText(recent.SessionID), recent.MessageCount)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// Bar renders a percentage as a fixed width text bar
func Bar(percentage int) string {
	percentage = min(max(percentage, 0), 100)
	filled := (percentage*barWidth + 50) / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// Conversations formats up to limit summaries as a Markdown message
func Conversations(summaries []models.ConversationSummary, limit int) string {
	if len(summaries) == 0 {
		return "📭 No hay conversaciones."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗂 *Conversaciones* (%d)\n", len(summaries))

	shown := summaries
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for i, s := range shown {
		fmt.Fprintf(&sb, "\n%d. *%s*\n", i+1, EntityText(s.Title))
		fmt.Fprintf(&sb, "`%s` · %d mensajes (%d 🙋 / %d 🤖)\n", codeText(s.SessionID), s.TotalMessages, s.HumanMessages, s.AIMessages)
		fmt.Fprintf(&sb, "_%s_\n", EntityText(s.Preview))
	}

	if len(summaries) > len(shown) {
		fmt.Fprintf(&sb, "\n… y %d más", len(summaries)-len(shown))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// Transcript formats the messages of a session as plain text
func Transcript(sessionID string, messages []models.Message) string {
	if len(messages) == 0 {
		return fmt.Sprintf("📭 La conversación %s no tiene mensajes.", sessionID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💬 Conversación %s (%d mensajes)\n", sessionID, len(messages))
	for _, msg := range messages {
		fmt.Fprintf(&sb, "\n%s\n%s\n", speaker(msg.Type), msg.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func speaker(t models.MessageType) string {
	switch t {
	case models.MessageHuman:
		return "Usuario:"
	case models.MessageAI:
		return "Asistente:"
	default:
		return "Desconocido:"
	}
}

// Digest formats a generated digest as plain text
func Digest(result *models.DigestResult) string {
	if result == nil || result.Text == "" {
		return "📭 No hay nada que resumir."
	}
	return fmt.Sprintf("📝 Resumen de %s\n\n%s\n\n🤖 %s · %d mensajes",
		result.SessionID, result.Text, result.ModelUsed, result.MessageCount)
}

// Split breaks text into chunks of at most limit runes, preferring line boundaries
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen <= limit {
			current.WriteString(line)
			currentLen += lineLen
			continue
		}

		flush()
		for lineLen > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			lineLen -= limit
		}
		current.WriteString(line)
		currentLen = lineLen
	}
	flush()

	return chunks
}
