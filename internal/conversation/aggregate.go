package conversation

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chatlog-dashboard/internal/models"
)

const (
	// TitleMaxLength is the maximum title length in characters
	TitleMaxLength = 50

	// PreviewMaxLength is the maximum length of each preview segment
	PreviewMaxLength = 60

	// DefaultTitle is used when a conversation has no human message
	DefaultTitle = "Conversación sin título"

	// EmptyPreview is used when a conversation has neither human nor AI messages
	EmptyPreview = "Sin contenido"

	// Ellipsis is appended to truncated text
	Ellipsis = "..."

	// RecentLimit is the number of sessions listed in the recent activity
	RecentLimit = 5

	humanPrefix = "Usuario: "
	aiPrefix    = "Asistente: "
)

// DayLabels are the fixed labels of the seven id-range buckets.
// They do not correspond to calendar days.
var DayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// sessionGroup accumulates the messages of one session in arrival order
type sessionGroup struct {
	sessionID      string
	firstMessageID int64
	messages       []models.Message
}

// groupRows groups rows by session_id keeping first-appearance order of sessions
func groupRows(rows []models.MessageRow) []*sessionGroup {
	index := make(map[string]*sessionGroup)
	groups := make([]*sessionGroup, 0)

	for _, row := range rows {
		group, exists := index[row.SessionID]
		if !exists {
			group = &sessionGroup{
				sessionID:      row.SessionID,
				firstMessageID: row.ID,
			}
			index[row.SessionID] = group
			groups = append(groups, group)
		}
		group.messages = append(group.messages, row.Reduce())
	}

	return groups
}

// GroupBySession turns id-ordered rows into conversation summaries,
// most recently active conversation first
func GroupBySession(rows []models.MessageRow) []models.ConversationSummary {
	groups := groupRows(rows)
	summaries := make([]models.ConversationSummary, 0, len(groups))

	for _, group := range groups {
		summaries = append(summaries, summarize(group))
	}

	slices.SortStableFunc(summaries, func(a, b models.ConversationSummary) int {
		return cmp.Compare(b.LastMessageID, a.LastMessageID)
	})

	return summaries
}

// summarize builds the summary of a single session
func summarize(group *sessionGroup) models.ConversationSummary {
	var firstHuman, firstAI *models.Message
	humanCount, aiCount := 0, 0

	for i := range group.messages {
		msg := &group.messages[i]
		switch msg.Type {
		case models.MessageHuman:
			if firstHuman == nil {
				firstHuman = msg
			}
			humanCount++
		case models.MessageAI:
			if firstAI == nil {
				firstAI = msg
			}
			aiCount++
		}
	}

	title := DefaultTitle
	if firstHuman != nil && firstHuman.Content != "" {
		title = Truncate(firstHuman.Content, TitleMaxLength)
	}

	return models.ConversationSummary{
		SessionID:      group.sessionID,
		Title:          title,
		Preview:        buildPreview(firstHuman, firstAI),
		TotalMessages:  len(group.messages),
		HumanMessages:  humanCount,
		AIMessages:     aiCount,
		FirstMessageID: group.firstMessageID,
		LastMessageID:  group.messages[len(group.messages)-1].ID,
		Messages:       group.messages,
	}
}

// buildPreview combines the first human message and the first AI reply
func buildPreview(firstHuman, firstAI *models.Message) string {
	parts := make([]string, 0, 2)
	if firstHuman != nil {
		parts = append(parts, humanPrefix+Truncate(firstHuman.Content, PreviewMaxLength))
	}
	if firstAI != nil {
		parts = append(parts, aiPrefix+Truncate(firstAI.Content, PreviewMaxLength))
	}
	if len(parts) == 0 {
		return EmptyPreview
	}
	return strings.Join(parts, " ")
}

// Truncate shortens text to maxLength characters, trimming trailing
// whitespace and appending an ellipsis when it was cut
func Truncate(text string, maxLength int) string {
	if text == "" {
		return ""
	}
	if maxLength < 0 {
		maxLength = 0
	}
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	runes := []rune(text)
	cut := strings.TrimRightFunc(string(runes[:maxLength]), unicode.IsSpace)
	return cut + Ellipsis
}

// ReduceRows converts rows into the reduced message list of a conversation
func ReduceRows(rows []models.MessageRow) []models.Message {
	messages := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.Reduce())
	}
	return messages
}

// ExtractUserID returns the owner of a session id of the form {userId}_{suffix}
func ExtractUserID(sessionID string) (string, bool) {
	userID, _, found := strings.Cut(sessionID, "_")
	if !found {
		return "", false
	}
	return userID, true
}

// ComputeStats computes usage statistics over id-ordered rows
func ComputeStats(rows []models.MessageRow) models.StatsSummary {
	if len(rows) == 0 {
		return models.StatsSummary{
			MessagesByDay:       []models.DayBucket{},
			RecentConversations: []models.RecentConversation{},
		}
	}

	stats := models.StatsSummary{TotalMessages: len(rows)}
	minID, maxID := rows[0].ID, rows[0].ID

	for _, row := range rows {
		switch row.Type() {
		case models.MessageHuman:
			stats.HumanMessages++
		case models.MessageAI:
			stats.AIMessages++
		}
		minID = min(minID, row.ID)
		maxID = max(maxID, row.ID)
	}

	groups := groupRows(rows)
	stats.TotalConversations = len(groups)
	stats.MessagesByDay = bucketByID(rows, minID, maxID)
	stats.RecentConversations = recentConversations(groups)

	return stats
}

// bucketByID splits [minID, maxID] into len(DayLabels) equal-width buckets
func bucketByID(rows []models.MessageRow, minID, maxID int64) []models.DayBucket {
	bucketCount := int64(len(DayLabels))
	idRange := maxID - minID + 1
	bucketSize := max((idRange+bucketCount-1)/bucketCount, 1)

	counts := make([]int, len(DayLabels))
	for _, row := range rows {
		index := (row.ID - minID) / bucketSize
		if index >= 0 && index < bucketCount {
			counts[index]++
		}
	}

	maxCount := 1
	for _, count := range counts {
		maxCount = max(maxCount, count)
	}

	buckets := make([]models.DayBucket, len(DayLabels))
	for i, label := range DayLabels {
		buckets[i] = models.DayBucket{
			Label:      label,
			Count:      counts[i],
			Percentage: int(math.Round(float64(counts[i]) / float64(maxCount) * 100)),
		}
	}

	return buckets
}

// recentConversations returns the most recently active sessions
func recentConversations(groups []*sessionGroup) []models.RecentConversation {
	recent := make([]models.RecentConversation, 0, len(groups))
	for _, group := range groups {
		lastID := group.messages[0].ID
		for _, msg := range group.messages {
			lastID = max(lastID, msg.ID)
		}
		recent = append(recent, models.RecentConversation{
			SessionID:    group.sessionID,
			LastID:       lastID,
			MessageCount: len(group.messages),
		})
	}

	slices.SortStableFunc(recent, func(a, b models.RecentConversation) int {
		return cmp.Compare(b.LastID, a.LastID)
	})

	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}
	return recent
}
