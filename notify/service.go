package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-casework"
)

// Service runs select, build and dispatch for a notification request.
type Service struct {
	selector *Selector
	builder  *VariableBuilder
	gateway  *Gateway
	logger   casework.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger casework.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService wires the notification pipeline.
func NewService(selector *Selector, builder *VariableBuilder, gateway *Gateway, opts ...ServiceOption) (*Service, error) {
	if selector == nil {
		return nil, fmt.Errorf("selector required")
	}
	if builder == nil {
		return nil, fmt.Errorf("variable builder required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	s := &Service{selector: selector, builder: builder, gateway: gateway}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = casework.NormalizeLogger(s.logger)
	return s, nil
}

// Notify sends every variant of req. Each variant is attempted even when an earlier
// one fails; failures are joined.
func (s *Service) Notify(ctx context.Context, req Request) error {
	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	variants, err := s.selector.Select(req.Trigger, req.Case)
	if err != nil {
		return casework.NewError(casework.ErrNotificationDeliveryFailed, err.Error(), err,
			map[string]any{"case_id": req.Case.ID, "trigger": string(req.Trigger)})
	}
	if len(variants) == 0 {
		s.logger.Debug("case %d: no recipients for %s", req.Case.ID, req.Trigger)
		return nil
	}

	var errs []error
	for _, v := range variants {
		vars, berr := s.builder.Build(v, req.Case, at)
		if berr != nil {
			errs = append(errs, casework.NewError(casework.ErrNotificationDeliveryFailed, berr.Error(), berr,
				map[string]any{"case_id": req.Case.ID, "trigger": string(req.Trigger), "template_id": v.TemplateID}))
			continue
		}
		if _, derr := s.gateway.Dispatch(ctx, req.Case.ID, v, vars); derr != nil {
			errs = append(errs, derr)
		}
	}
	if len(errs) > 0 {
		s.logger.Warn("case %d: %d of %d %s notifications failed", req.Case.ID, len(errs), len(variants), req.Trigger)
	}
	return errors.Join(errs...)
}
