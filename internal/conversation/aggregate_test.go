package conversation

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgRow(id int64, sessionID string, msgType, content string) models.MessageRow {
	return models.MessageRow{
		ID:        id,
		SessionID: sessionID,
		Message:   models.MessagePayload{Type: msgType, Content: content},
	}
}

// randomRows builds an id-ordered log spread over a few sessions
func randomRows(t *testing.T, seed int64, n int) []models.MessageRow {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	types := []string{"human", "ai", "ai", "human", "system", ""}

	rows := make([]models.MessageRow, 0, n)
	id := int64(rng.Intn(50) + 1)
	for i := 0; i < n; i++ {
		session := fmt.Sprintf("u%d_s%d", rng.Intn(3), rng.Intn(4))
		content := strings.Repeat("palabra ", rng.Intn(15))
		rows = append(rows, msgRow(id, session, types[rng.Intn(len(types))], content))
		id += int64(rng.Intn(9) + 1)
	}
	return rows
}

func TestGroupBySessionScenarioRanksByLastMessage(t *testing.T) {
	rows := []models.MessageRow{
		msgRow(1, "u1_a", "human", "Hi"),
		msgRow(2, "u1_a", "ai", "Hello"),
		msgRow(3, "u1_b", "human", "X"),
	}

	summaries := GroupBySession(rows)
	require.Len(t, summaries, 2)

	assert.Equal(t, "u1_b", summaries[0].SessionID)
	assert.Equal(t, int64(3), summaries[0].LastMessageID)
	assert.Equal(t, "u1_a", summaries[1].SessionID)
	assert.Equal(t, int64(2), summaries[1].LastMessageID)

	a := summaries[1]
	assert.Equal(t, "Hi", a.Title)
	assert.Equal(t, "Usuario: Hi Asistente: Hello", a.Preview)
	assert.Equal(t, 2, a.TotalMessages)
	assert.Equal(t, 1, a.HumanMessages)
	assert.Equal(t, 1, a.AIMessages)
	assert.Equal(t, int64(1), a.FirstMessageID)
	assert.Equal(t, []models.Message{
		{ID: 1, Type: models.MessageHuman, Content: "Hi"},
		{ID: 2, Type: models.MessageAI, Content: "Hello"},
	}, a.Messages)

	assert.Equal(t, "Usuario: X", summaries[0].Preview)
}

func TestGroupBySessionEmptyInput(t *testing.T) {
	summaries := GroupBySession(nil)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}

func TestGroupBySessionAIOnlySession(t *testing.T) {
	summaries := GroupBySession([]models.MessageRow{
		msgRow(7, "u2_x", "ai", "Bienvenido"),
	})
	require.Len(t, summaries, 1)

	assert.Equal(t, DefaultTitle, summaries[0].Title)
	assert.Equal(t, "Asistente: Bienvenido", summaries[0].Preview)
	assert.Equal(t, 0, summaries[0].HumanMessages)
	assert.Equal(t, 1, summaries[0].AIMessages)
}

func TestGroupBySessionUnknownOnlySession(t *testing.T) {
	summaries := GroupBySession([]models.MessageRow{
		msgRow(1, "u2_x", "tool", "{}"),
		msgRow(2, "u2_x", "", ""),
	})
	require.Len(t, summaries, 1)

	assert.Equal(t, DefaultTitle, summaries[0].Title)
	assert.Equal(t, EmptyPreview, summaries[0].Preview)
	assert.Equal(t, 2, summaries[0].TotalMessages)
	assert.Equal(t, models.MessageUnknown, summaries[0].Messages[0].Type)
}

func TestGroupBySessionEmptyHumanContentFallsBackToDefaultTitle(t *testing.T) {
	summaries := GroupBySession([]models.MessageRow{
		msgRow(1, "u1_a", "human", ""),
		msgRow(2, "u1_a", "ai", "Hola"),
	})
	require.Len(t, summaries, 1)

	assert.Equal(t, DefaultTitle, summaries[0].Title)
	assert.Equal(t, "Usuario:  Asistente: Hola", summaries[0].Preview)
}

func TestGroupBySessionTruncatesTitleAndPreview(t *testing.T) {
	long := strings.Repeat("a", 45) + "     " + strings.Repeat("b", 20)
	summaries := GroupBySession([]models.MessageRow{
		msgRow(1, "u1_a", "human", long),
		msgRow(2, "u1_a", "ai", strings.Repeat("c", 80)),
	})
	require.Len(t, summaries, 1)

	assert.Equal(t, strings.Repeat("a", 45)+"...", summaries[0].Title)
	assert.Equal(t,
		"Usuario: "+Truncate(long, PreviewMaxLength)+" Asistente: "+strings.Repeat("c", 60)+"...",
		summaries[0].Preview)
}

func TestGroupBySessionTiesKeepFirstAppearanceOrder(t *testing.T) {
	// Out-of-order ids are not expected from the store, but equal keys must stay stable
	rows := []models.MessageRow{
		msgRow(5, "u1_first", "human", "a"),
		msgRow(5, "u1_second", "human", "b"),
	}

	summaries := GroupBySession(rows)
	require.Len(t, summaries, 2)
	assert.Equal(t, "u1_first", summaries[0].SessionID)
	assert.Equal(t, "u1_second", summaries[1].SessionID)
}

func TestGroupBySessionProperties(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		rows := randomRows(t, seed, int(seed)*4)
		summaries := GroupBySession(rows)

		sessions := make(map[string][]models.Message)
		maxIDs := make(map[string]int64)
		for _, row := range rows {
			sessions[row.SessionID] = append(sessions[row.SessionID], row.Reduce())
			maxIDs[row.SessionID] = max(maxIDs[row.SessionID], row.ID)
		}

		require.Len(t, summaries, len(sessions), "seed %d", seed)

		for i, summary := range summaries {
			assert.Equal(t, sessions[summary.SessionID], summary.Messages, "seed %d", seed)
			assert.Equal(t, maxIDs[summary.SessionID], summary.LastMessageID, "seed %d", seed)
			assert.Equal(t, summary.Messages[len(summary.Messages)-1].ID, summary.LastMessageID)
			assert.LessOrEqual(t, summary.HumanMessages+summary.AIMessages, summary.TotalMessages)
			assert.LessOrEqual(t, utf8.RuneCountInString(summary.Title), TitleMaxLength+len(Ellipsis))
			if i > 0 {
				assert.GreaterOrEqual(t, summaries[i-1].LastMessageID, summary.LastMessageID, "seed %d", seed)
			}
		}

		assert.Equal(t, summaries, GroupBySession(rows), "grouping must be deterministic")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{name: "empty", text: "", limit: 5, want: ""},
		{name: "shorter", text: "hola", limit: 5, want: "hola"},
		{name: "exact", text: "hola!", limit: 5, want: "hola!"},
		{name: "longer", text: "hola mundo", limit: 5, want: "hola..."},
		{name: "trailing space trimmed", text: "hola   mundo", limit: 6, want: "hola..."},
		{name: "leading space kept", text: "  hola mundo", limit: 6, want: "  hola..."},
		{name: "multibyte", text: "canción sin título", limit: 7, want: "canción..."},
		{name: "zero limit", text: "abc", limit: 0, want: "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.limit))
		})
	}
}

func TestTruncateLengthBound(t *testing.T) {
	inputs := []string{"", "a", strings.Repeat("é", 100), strings.Repeat("ab ", 40), "   "}
	for _, input := range inputs {
		for limit := 0; limit <= 70; limit += 7 {
			out := Truncate(input, limit)
			assert.LessOrEqual(t, utf8.RuneCountInString(out), limit+3)
			if utf8.RuneCountInString(input) <= limit {
				assert.Equal(t, input, out)
			}
		}
	}
}

func TestExtractUserID(t *testing.T) {
	userID, ok := ExtractUserID("abc-123_9f1c")
	assert.True(t, ok)
	assert.Equal(t, "abc-123", userID)

	userID, ok = ExtractUserID("a_b_c")
	assert.True(t, ok)
	assert.Equal(t, "a", userID)

	_, ok = ExtractUserID("nounderscore")
	assert.False(t, ok)

	_, ok = ExtractUserID("")
	assert.False(t, ok)
}

func TestReduceRows(t *testing.T) {
	messages := ReduceRows([]models.MessageRow{
		msgRow(1, "s_1", "human", "hola"),
		{ID: 2, SessionID: "s_1"},
	})
	assert.Equal(t, []models.Message{
		{ID: 1, Type: models.MessageHuman, Content: "hola"},
		{ID: 2, Type: models.MessageUnknown, Content: ""},
	}, messages)

	assert.NotNil(t, ReduceRows(nil))
}

func TestComputeStatsEmptyInput(t *testing.T) {
	stats := ComputeStats(nil)

	assert.Equal(t, models.StatsSummary{
		MessagesByDay:       []models.DayBucket{},
		RecentConversations: []models.RecentConversation{},
	}, stats)
}

func TestComputeStatsScenario(t *testing.T) {
	rows := []models.MessageRow{
		msgRow(1, "u1_a", "human", "Hi"),
		msgRow(2, "u1_a", "ai", "Hello"),
		msgRow(3, "u1_b", "human", "X"),
	}

	stats := ComputeStats(rows)

	assert.Equal(t, 2, stats.TotalConversations)
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 2, stats.HumanMessages)
	assert.Equal(t, 1, stats.AIMessages)

	// range 3 → bucket size 1: ids 1, 2, 3 land in Mon, Tue, Wed
	require.Len(t, stats.MessagesByDay, 7)
	assert.Equal(t, models.DayBucket{Label: "Mon", Count: 1, Percentage: 100}, stats.MessagesByDay[0])
	assert.Equal(t, models.DayBucket{Label: "Tue", Count: 1, Percentage: 100}, stats.MessagesByDay[1])
	assert.Equal(t, models.DayBucket{Label: "Wed", Count: 1, Percentage: 100}, stats.MessagesByDay[2])
	for _, bucket := range stats.MessagesByDay[3:] {
		assert.Equal(t, 0, bucket.Count)
		assert.Equal(t, 0, bucket.Percentage)
	}

	assert.Equal(t, []models.RecentConversation{
		{SessionID: "u1_b", LastID: 3, MessageCount: 1},
		{SessionID: "u1_a", LastID: 2, MessageCount: 2},
	}, stats.RecentConversations)
}

func TestComputeStatsBucketBoundaries(t *testing.T) {
	// ids 10..29 → range 20, bucket size ceil(20/7) = 3
	rows := make([]models.MessageRow, 0, 20)
	for id := int64(10); id < 30; id++ {
		rows = append(rows, msgRow(id, "u1_a", "human", "m"))
	}

	stats := ComputeStats(rows)

	counts := make([]int, 0, 7)
	labels := make([]string, 0, 7)
	for _, bucket := range stats.MessagesByDay {
		counts = append(counts, bucket.Count)
		labels = append(labels, bucket.Label)
	}
	assert.Equal(t, []int{3, 3, 3, 3, 3, 3, 2}, counts)
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, labels)
	assert.Equal(t, 67, stats.MessagesByDay[6].Percentage)
}

func TestComputeStatsSingleRow(t *testing.T) {
	stats := ComputeStats([]models.MessageRow{msgRow(42, "u1_a", "ai", "x")})

	require.Len(t, stats.MessagesByDay, 7)
	assert.Equal(t, 1, stats.MessagesByDay[0].Count)
	assert.Equal(t, 100, stats.MessagesByDay[0].Percentage)
	assert.Equal(t, 1, stats.TotalConversations)
}

func TestComputeStatsRecentKeepsTopFive(t *testing.T) {
	rows := make([]models.MessageRow, 0, 8)
	for i := int64(1); i <= 8; i++ {
		rows = append(rows, msgRow(i, fmt.Sprintf("u1_s%d", i), "human", "m"))
	}

	stats := ComputeStats(rows)

	require.Len(t, stats.RecentConversations, RecentLimit)
	for i, recent := range stats.RecentConversations {
		assert.Equal(t, int64(8-i), recent.LastID)
	}
}

func TestComputeStatsProperties(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		rows := randomRows(t, seed, int(seed)*5)
		stats := ComputeStats(rows)

		sessions := make(map[string]bool)
		unknown := 0
		for _, row := range rows {
			sessions[row.SessionID] = true
			if row.Type() == models.MessageUnknown {
				unknown++
			}
		}

		assert.Equal(t, len(sessions), stats.TotalConversations)
		assert.Equal(t, len(rows), stats.TotalMessages)
		assert.Equal(t, stats.TotalMessages-unknown, stats.HumanMessages+stats.AIMessages)

		sum, maxCount := 0, 0
		for _, bucket := range stats.MessagesByDay {
			sum += bucket.Count
			maxCount = max(maxCount, bucket.Count)
			assert.GreaterOrEqual(t, bucket.Percentage, 0)
			assert.LessOrEqual(t, bucket.Percentage, 100)
		}
		assert.Equal(t, stats.TotalMessages, sum, "seed %d", seed)
		for _, bucket := range stats.MessagesByDay {
			if bucket.Count == maxCount {
				assert.Equal(t, 100, bucket.Percentage)
			}
		}

		assert.LessOrEqual(t, len(stats.RecentConversations), RecentLimit)
		for i := 1; i < len(stats.RecentConversations); i++ {
			assert.GreaterOrEqual(t, stats.RecentConversations[i-1].LastID, stats.RecentConversations[i].LastID)
		}

		assert.Equal(t, stats, ComputeStats(rows), "stats must be deterministic")
	}
}
