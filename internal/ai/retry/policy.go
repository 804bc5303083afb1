package retry

import (
	"time"

	"smartnotes/internal/ai/aierr"
)

// MaxBackoff caps every computed delay.
const MaxBackoff = 30 * time.Second

// typeCeilings are per-type attempt ceilings; the smaller of the ceiling and
// maxAttempts applies.
var typeCeilings = map[aierr.Type]int{
	aierr.TypeRateLimit: 2,
	aierr.TypeNetwork:   5,
	aierr.TypeAPI:       3,
}

const defaultCeiling = 2

// ShouldRetry reports whether another attempt is warranted after err.
// attemptNumber counts the retries already performed.
func ShouldRetry(err *aierr.Error, attemptNumber, maxAttempts int) bool {
	if err == nil || attemptNumber >= maxAttempts {
		return false
	}
	if !err.CanRetry || err.Severity == aierr.SeverityCritical {
		return false
	}
	ceiling, ok := typeCeilings[err.Type]
	if !ok {
		ceiling = defaultCeiling
	}
	return attemptNumber < ceiling
}

// Delay returns min(base * 2^attemptIndex, MaxBackoff). attemptIndex is
// zero-based, so the first retry waits exactly base.
func Delay(attemptIndex int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	d := base
	for i := 0; i < attemptIndex; i++ {
		// Check for overflow before doubling
		if d >= MaxBackoff/2 {
			return MaxBackoff
		}
		d *= 2
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}
