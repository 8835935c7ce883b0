package analytics

import (
	"context"
	"sort"
	"time"

	"warroom/core/apperr"
	"warroom/core/incidents"
	"warroom/core/store"
	"warroom/core/utils"
)

type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
)

func ParsePeriod(v string) Period {
	switch Period(v) {
	case Period24h, Period30d:
		return Period(v)
	default:
		return Period7d
	}
}

func (p Period) Duration() time.Duration {
	switch p {
	case Period24h:
		return 24 * time.Hour
	case Period30d:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

func ParseGranularity(v string) Granularity {
	if Granularity(v) == GranularityHour {
		return GranularityHour
	}
	return GranularityDay
}

func (g Granularity) label(t time.Time) string {
	t = t.UTC()
	if g == GranularityHour {
		return t.Truncate(time.Hour).Format("2006-01-02 15:00")
	}
	return t.Format("2006-01-02")
}

type Summary struct {
	TotalIncidents       int            `json:"total_incidents"`
	OpenIncidents        int            `json:"open_incidents"`
	MTTRBySeverity       map[string]int `json:"mttr_by_severity"`
	SeverityDistribution map[string]int `json:"severity_distribution"`
	SourceDistribution   map[string]int `json:"source_distribution"`
}

type Bucket struct {
	Bucket   string `json:"bucket"`
	Count    int    `json:"count"`
	Critical int    `json:"critical"`
	High     int    `json:"high"`
	Medium   int    `json:"medium"`
	Low      int    `json:"low"`
}

type TimelineResult struct {
	Period      Period      `json:"period"`
	Granularity Granularity `json:"granularity"`
	Timeline    []Bucket    `json:"timeline"`
}

type Service struct {
	store  store.AnalyticsStore
	logger *utils.Logger
	now    func() time.Time
}

func NewService(st store.AnalyticsStore, logger *utils.Logger) *Service {
	return &Service{store: st, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, s.fail("count incidents", err)
	}
	open, err := s.store.CountUnresolved(ctx)
	if err != nil {
		return nil, s.fail("count unresolved incidents", err)
	}
	bySeverity, err := s.store.CountBy(ctx, "severity")
	if err != nil {
		return nil, s.fail("group by severity", err)
	}
	bySource, err := s.store.CountBy(ctx, "source")
	if err != nil {
		return nil, s.fail("group by source", err)
	}
	spans, err := s.store.ListResolutionSpans(ctx)
	if err != nil {
		return nil, s.fail("list resolution spans", err)
	}
	out := &Summary{
		TotalIncidents:       total,
		OpenIncidents:        open,
		MTTRBySeverity:       mttrBySeverity(spans),
		SeverityDistribution: map[string]int{},
		SourceDistribution:   map[string]int{},
	}
	for _, sev := range incidents.Severities() {
		out.SeverityDistribution[string(sev)] = bySeverity[string(sev)]
	}
	for _, src := range incidents.Sources() {
		out.SourceDistribution[string(src)] = bySource[string(src)]
	}
	return out, nil
}

// mttrBySeverity averages resolution time per severity in whole minutes,
// truncated. Severities without resolved incidents report 0.
func mttrBySeverity(spans []store.ResolutionSpan) map[string]int {
	sums := map[string]time.Duration{}
	counts := map[string]int{}
	for _, sp := range spans {
		sums[sp.Severity] += sp.ResolvedAt.Sub(sp.CreatedAt)
		counts[sp.Severity]++
	}
	out := map[string]int{}
	for _, sev := range incidents.Severities() {
		key := string(sev)
		if counts[key] == 0 {
			out[key] = 0
			continue
		}
		mean := sums[key] / time.Duration(counts[key])
		out[key] = int(mean / time.Minute)
	}
	return out
}

func (s *Service) Timeline(ctx context.Context, period Period, granularity Granularity) (*TimelineResult, error) {
	start := s.now().UTC().Add(-period.Duration())
	points, err := s.store.ListCreatedSince(ctx, start)
	if err != nil {
		return nil, s.fail("list incidents for timeline", err)
	}
	buckets := map[string]*Bucket{}
	for _, p := range points {
		key := granularity.label(p.CreatedAt)
		b, ok := buckets[key]
		if !ok {
			b = &Bucket{Bucket: key}
			buckets[key] = b
		}
		b.Count++
		switch incidents.Severity(p.Severity) {
		case incidents.SeverityCritical:
			b.Critical++
		case incidents.SeverityHigh:
			b.High++
		case incidents.SeverityMedium:
			b.Medium++
		case incidents.SeverityLow:
			b.Low++
		}
	}
	out := &TimelineResult{Period: period, Granularity: granularity, Timeline: make([]Bucket, 0, len(buckets))}
	for _, b := range buckets {
		out.Timeline = append(out.Timeline, *b)
	}
	sort.Slice(out.Timeline, func(i, j int) bool { return out.Timeline[i].Bucket < out.Timeline[j].Bucket })
	return out, nil
}

func (s *Service) fail(what string, err error) error {
	s.logger.Errorf("analytics: %s: %v", what, err)
	return apperr.Internal(err)
}
