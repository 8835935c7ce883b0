package alerts

import (
	"context"
	"strings"

	"warroom/core/apperr"
	"warroom/core/incidents"
	"warroom/core/store"
	"warroom/core/utils"
	"warroom/core/validation"
)

const msgRequired = "name, severity, threshold, and window_minutes are required"

type CreateInput struct {
	Name          string `json:"name" validate:"required"`
	Severity      string `json:"severity" validate:"required,oneof=critical high medium low"`
	Threshold     *int   `json:"threshold" validate:"required,gt=0"`
	WindowMinutes *int   `json:"window_minutes" validate:"required,gt=0"`
	Enabled       *bool  `json:"enabled"`
}

// Service stores alert configurations. Nothing evaluates them.
type Service struct {
	store  store.AlertsStore
	logger *utils.Logger
}

func NewService(st store.AlertsStore, logger *utils.Logger) *Service {
	return &Service{store: st, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]store.AlertConfig, error) {
	items, err := s.store.ListAlertConfigs(ctx)
	if err != nil {
		s.logger.Errorf("list alert configs: %v", err)
		return nil, apperr.Internal(err)
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*store.AlertConfig, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Severity = strings.TrimSpace(in.Severity)
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	cfg := &store.AlertConfig{
		Name:          in.Name,
		Severity:      in.Severity,
		Threshold:     *in.Threshold,
		WindowMinutes: *in.WindowMinutes,
		Enabled:       in.Enabled == nil || *in.Enabled,
	}
	if _, err := s.store.CreateAlertConfig(ctx, cfg); err != nil {
		s.logger.Errorf("create alert config %q: %v", cfg.Name, err)
		return nil, apperr.Internal(err)
	}
	s.logger.Printf("created alert config %d (%s, %s)", cfg.ID, cfg.Name, cfg.Severity)
	return cfg, nil
}

func validateCreate(in CreateInput) error {
	errs, err := validation.Check(in)
	if err != nil {
		return apperr.Internal(err)
	}
	if len(errs) == 0 {
		return nil
	}
	for _, fe := range errs {
		if fe.Tag == "required" {
			return apperr.Validation(msgRequired)
		}
	}
	switch fe := errs[0]; fe.Field {
	case "severity":
		sevs := make([]string, 0, 4)
		for _, s := range incidents.Severities() {
			sevs = append(sevs, string(s))
		}
		return apperr.Validation("severity must be one of: " + strings.Join(sevs, ", "))
	default:
		return apperr.Validation(fe.Field + " must be greater than 0")
	}
}
