package pagination

import (
	"net/url"
	"strconv"

	apperrors "github.com/laas-platform/laas/pkg/errors"
)

// Window is an offset/limit slice of an ordered result set.
type Window struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// FromQuery reads limit and offset from a query string. A missing limit
// takes defaultLimit; a present one is kept verbatim, including zero or a
// negative value, so Validate can reject it instead of silently clamping.
func FromQuery(q url.Values, defaultLimit int) (Window, error) {
	w := Window{Limit: defaultLimit}

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Window{}, apperrors.InvalidQuery("limit must be an integer, got %q", raw)
		}
		if v <= 0 {
			return Window{}, apperrors.InvalidQuery("limit must be positive, got %d", v)
		}
		w.Limit = v
	}

	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Window{}, apperrors.InvalidQuery("offset must be an integer, got %q", raw)
		}
		w.Offset = v
	}

	return w, nil
}

// Validate rejects a negative offset, a non-positive limit, and a limit above maxLimit.
func (w Window) Validate(maxLimit int) error {
	switch {
	case w.Offset < 0:
		return apperrors.InvalidQuery("offset must be >= 0, got %d", w.Offset)
	case w.Limit <= 0:
		return apperrors.InvalidQuery("limit must be positive, got %d", w.Limit)
	case maxLimit > 0 && w.Limit > maxLimit:
		return apperrors.InvalidQuery("limit %d exceeds maximum %d", w.Limit, maxLimit)
	}
	return nil
}

// HasMore reports whether rows remain past this window in a set of total rows.
func (w Window) HasMore(total int) bool {
	return w.Offset+w.Limit < total
}

// Bounds returns the [start, end) slice indexes of this window over n rows.
func (w Window) Bounds(n int) (start, end int) {
	start = min(w.Offset, n)
	end = min(start+w.Limit, n)
	return start, end
}
