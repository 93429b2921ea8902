package models

// RateLimitResult represents the result of a digest rate limit check
type RateLimitResult struct {
	Allowed       bool
	Used          int
	Limit         int
	Remaining     int
	ResetsInHours int
	Message       string
}
