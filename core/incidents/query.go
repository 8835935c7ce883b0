package incidents

import (
	"context"
	"strings"

	"warroom/core/apperr"
	"warroom/core/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ListQuery struct {
	Severity string
	Status   string
	Source   string
	Sort     string
	Order    string
	Page     int
	Limit    int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type ListResult struct {
	Incidents  []store.Incident `json:"incidents"`
	Pagination Pagination       `json:"pagination"`
}

// ParseSortColumn maps anything outside the sortable set to created_at.
func ParseSortColumn(v string) store.SortColumn {
	switch store.SortColumn(strings.TrimSpace(v)) {
	case store.SortSeverity:
		return store.SortSeverity
	case store.SortUpdatedAt:
		return store.SortUpdatedAt
	case store.SortTitle:
		return store.SortTitle
	default:
		return store.SortCreatedAt
	}
}

// clampLimit keeps limit in [1, maxLimit]; zero selects the default.
func (s *Service) clampLimit(limit int) int {
	if limit == 0 {
		return s.defaultLimit
	}
	if limit < 0 {
		return 1
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := s.clampLimit(q.Limit)
	filter := store.IncidentFilter{
		Severity: q.Severity,
		Status:   q.Status,
		Source:   q.Source,
		Sort:     ParseSortColumn(q.Sort),
		Asc:      strings.TrimSpace(q.Order) == "asc",
		Limit:    limit,
	}
	total, err := s.store.CountIncidents(ctx, filter)
	if err != nil {
		s.logger.Errorf("count incidents: %v", err)
		return nil, apperr.Internal(err)
	}
	totalPages := (total + limit - 1) / limit
	items := []store.Incident{}
	// page is compared before computing the offset so huge pages cannot overflow it.
	if page <= totalPages {
		filter.Offset = (page - 1) * limit
		items, err = s.store.ListIncidents(ctx, filter)
		if err != nil {
			s.logger.Errorf("list incidents: %v", err)
			return nil, apperr.Internal(err)
		}
	}
	if totalPages == 0 {
		totalPages = 1
	}
	return &ListResult{
		Incidents: items,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}
