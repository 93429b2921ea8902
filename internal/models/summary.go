package models

// ConversationSummary represents a conversation derived from the rows of one session
type ConversationSummary struct {
	SessionID      string    `json:"sessionId"`
	Title          string    `json:"title"`
	Preview        string    `json:"preview"`
	TotalMessages  int       `json:"totalMessages"`
	HumanMessages  int       `json:"humanMessages"`
	AIMessages     int       `json:"aiMessages"`
	FirstMessageID int64     `json:"firstMessageId"`
	LastMessageID  int64     `json:"lastMessageId"`
	Messages       []Message `json:"messages"`
}

// DayBucket is one of the seven slices of the observed id range
type DayBucket struct {
	Label      string `json:"label"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// RecentConversation represents activity of a single session in the stats view
type RecentConversation struct {
	SessionID    string `json:"sessionId"`
	LastID       int64  `json:"lastId"`
	MessageCount int    `json:"messageCount"`
}

// StatsSummary represents usage statistics computed from the chat log
type StatsSummary struct {
	TotalConversations  int                  `json:"totalConversations"`
	TotalMessages       int                  `json:"totalMessages"`
	HumanMessages       int                  `json:"humanMessages"`
	AIMessages          int                  `json:"aiMessages"`
	MessagesByDay       []DayBucket          `json:"messagesByDay"`
	RecentConversations []RecentConversation `json:"recentConversations"`
}

// DigestResult represents the result of a conversation digest generation
type DigestResult struct {
	SessionID    string
	Text         string
	ModelUsed    string
	MessageCount int
}
