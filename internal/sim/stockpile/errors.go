package stockpile

import (
	"errors"
	"fmt"
	"time"

	"stockpile.ai/internal/protocol"
	"stockpile.ai/internal/sim/grid"
	"stockpile.ai/internal/sim/reservation"
)

var (
	ErrBadZone     = errors.New("bad zone id")
	ErrUnknownItem = errors.New("unknown item")
)

// RateLimitedError is returned when an interactive mutation arrives inside the commit window.
type RateLimitedError struct {
	ZoneID     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("zone %s: rate limited, retry after %s", e.ZoneID, e.RetryAfter)
}

// ErrorCode maps a runtime error onto a protocol error code.
func ErrorCode(err error) (code string, retryAfter time.Duration) {
	var rl *RateLimitedError
	switch {
	case errors.As(err, &rl):
		return protocol.ErrRateLimit, rl.RetryAfter
	case errors.Is(err, ErrBadZone), errors.Is(err, ErrUnknownItem), errors.Is(err, reservation.ErrBadJob):
		return protocol.ErrBadRequest, 0
	case errors.Is(err, grid.ErrZoneNotFound):
		return protocol.ErrZoneNotFound, 0
	case errors.Is(err, grid.ErrZoneExists), errors.Is(err, reservation.ErrItemReserved):
		return protocol.ErrConflict, 0
	default:
		return protocol.ErrInternal, 0
	}
}
