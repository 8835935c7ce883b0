package incidents

import "strings"

type keywordTier struct {
	severity Severity
	keywords []string
}

var classifierTiers = []keywordTier{
	{SeverityCritical, []string{"down", "outage", "data loss", "security breach", "production down", "p0"}},
	{SeverityHigh, []string{"degraded", "timeout", "memory leak", "cpu", "error rate", "payment", "exhausted"}},
	{SeverityMedium, []string{"slow", "intermittent", "warning", "certificate", "disk", "latency"}},
}

// ClassifySeverity picks a severity from title keywords, highest tier first,
// falling back to a per-source default.
func ClassifySeverity(title string, source Source) Severity {
	lower := strings.ToLower(title)
	for _, tier := range classifierTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return tier.severity
			}
		}
	}
	switch source {
	case SourceMonitoring:
		return SeverityMedium
	case SourceExternal:
		return SeverityHigh
	default:
		return SeverityLow
	}
}
