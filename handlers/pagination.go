package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 500
	MaxLimit     = 5000
)

// PaginationParams walks a vehicle's series forward: After is the timestamp
// of the last row of the previous page.
type PaginationParams struct {
	Limit int
	After *time.Time
}

type CursorResponse struct {
	Data       any    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func ParsePagination(c *gin.Context) PaginationParams {
	p := PaginationParams{Limit: DefaultLimit}

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			p.Limit = l
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if afterStr := c.Query("after"); afterStr != "" {
		if t, err := time.Parse(time.RFC3339Nano, afterStr); err == nil {
			t = t.UTC()
			p.After = &t
		}
	}

	return p
}
