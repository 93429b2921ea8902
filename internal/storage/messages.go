package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chatlog-dashboard/internal/models"
	postgrest "github.com/supabase/postgrest-go"
)

// DefaultPageSize matches the default max-rows of a Supabase project.
// Reads larger than a page are fetched with consecutive ranges.
const DefaultPageSize = 1000

// ErrIncompleteResult is returned when the server reports more rows than it serves
var ErrIncompleteResult = errors.New("incomplete result")

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// UserSessionPattern returns the LIKE pattern matching session ids owned by userID.
// Session ids look like {userId}_{suffix}, so the underscore is matched literally.
func UserSessionPattern(userID string) string {
	return likeEscaper.Replace(userID) + `\_%`
}

// FetchAll retrieves every chat row in ascending id order.
// When userID is not empty only sessions prefixed with "{userID}_" are returned.
func (c *Client) FetchAll(ctx context.Context, userID string) ([]models.MessageRow, error) {
	rows, err := c.fetchRows(ctx, "fetch_all", func(query *postgrest.FilterBuilder) *postgrest.FilterBuilder {
		// Filter by session_id prefix when a user is given
		if userID != "" {
			return query.Like("session_id", UserSessionPattern(userID))
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("user_id", userID).
		Int("count", len(rows)).
		Msg("Retrieved chat rows")

	return rows, nil
}

// FetchBySession retrieves the rows of one session in ascending id order
func (c *Client) FetchBySession(ctx context.Context, sessionID string) ([]models.MessageRow, error) {
	rows, err := c.fetchRows(ctx, "fetch_by_session", func(query *postgrest.FilterBuilder) *postgrest.FilterBuilder {
		return query.Eq("session_id", sessionID)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("session_id", sessionID).
		Int("count", len(rows)).
		Msg("Retrieved session rows")

	return rows, nil
}

// fetchRows pages through the filtered table in ascending id order until the
// exact count reported by the server has been read.
func (c *Client) fetchRows(ctx context.Context, operation string, filter func(*postgrest.FilterBuilder) *postgrest.FilterBuilder) ([]models.MessageRow, error) {
	rows := []models.MessageRow{}

	for {
		var (
			page  []models.MessageRow
			total int64
		)
		from := len(rows)

		err := c.execute(ctx, operation, func() error {
			query := filter(c.client.From(c.table).Select("*", "exact", false))

			data, count, err := query.
				Order("id", &postgrest.OrderOpts{Ascending: true}).
				Range(from, from+c.pageSize-1, "").
				Execute()
			if err != nil {
				return fmt.Errorf("failed to fetch chat rows: %w", err)
			}

			total = count
			return decodeRows(data, &page)
		})
		if err != nil {
			return nil, err
		}

		rows = append(rows, page...)

		switch {
		case len(page) == 0:
			if int64(len(rows)) < total {
				return nil, &StoreError{
					Op:    operation,
					Table: c.table,
					Err:   fmt.Errorf("%w: got %d of %d rows", ErrIncompleteResult, len(rows), total),
				}
			}
			return rows, nil
		case total > 0:
			if int64(len(rows)) >= total {
				return rows, nil
			}
		case len(page) < c.pageSize:
			// No count in the response, a short page is the last one
			return rows, nil
		}

		c.logger.Debug().
			Str("operation", operation).
			Int("fetched", len(rows)).
			Int64("total", total).
			Msg("Fetching next page")
	}
}

// decodeRows unmarshals a PostgREST response; an empty body yields no rows
func decodeRows(data []byte, rows *[]models.MessageRow) error {
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, rows); err != nil {
			return fmt.Errorf("failed to unmarshal chat rows: %w", err)
		}
	}
	if *rows == nil {
		*rows = []models.MessageRow{}
	}
	return nil
}
