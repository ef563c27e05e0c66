package budget

import (
	"regexp"
	"strconv"
	"time"
)

// ProviderLimit describes a usage limit reported by the capability provider
// itself, as opposed to the run's own RateLimiter.
type ProviderLimit struct {
	RetryAfter time.Duration // zero when the provider did not say
	ResetAt    time.Time     // zero when unknown
	Message    string
}

var (
	// Claude AI usage limit reached|<unix_timestamp>
	unixResetPattern = regexp.MustCompile(`usage limit reached\|(\d+)`)

	// retry in 300 seconds / retry after 300s
	retryAfterPattern = regexp.MustCompile(`(?i)retry (?:in|after)\s+(\d+)\s*(?:seconds?|s)\b`)

	limitIndicator = regexp.MustCompile(`(?i)(out of.*usage|rate.?limit(ed)?\b|usage.?limit|\b429\b|too.?many.?requests)`)

	// Log prefixes, quoted text and countdown displays that mention rate limits
	// without being one.
	limitFalsePositive = regexp.MustCompile(`(?i)(\[RATE.?LIMIT\]|` +
		"`rate.?limit|" +
		`"rate.?limit|` +
		`'rate.?limit|` +
		`until auto-resume)`)
)

// DetectProviderLimit inspects provider output for a usage-limit message.
// It returns nil when the output does not look like one.
func DetectProviderLimit(output string, now time.Time) *ProviderLimit {
	if output == "" || !limitIndicator.MatchString(output) {
		return nil
	}
	if limitFalsePositive.MatchString(output) {
		return nil
	}

	limit := &ProviderLimit{Message: output}

	if m := unixResetPattern.FindStringSubmatch(output); len(m) > 1 {
		if ts, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			limit.ResetAt = time.Unix(ts, 0)
			if d := limit.ResetAt.Sub(now); d > 0 {
				limit.RetryAfter = d
			}
			return limit
		}
	}

	if m := retryAfterPattern.FindStringSubmatch(output); len(m) > 1 {
		if secs, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			limit.RetryAfter = time.Duration(secs) * time.Second
			limit.ResetAt = now.Add(limit.RetryAfter)
		}
	}

	return limit
}
