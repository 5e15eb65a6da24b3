package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/qms/internal/cache"
	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/params"
)

// ReloadCache rebuilds the cache from the store.
func (s *Service) ReloadCache(ctx context.Context) (cache.ReloadResult, error) {
	return s.cache.Reload(ctx)
}

// IsCacheLoaded reports whether the cache has been loaded with queues.
func (s *Service) IsCacheLoaded() bool {
	return s.cache.IsLoaded()
}

// ClearCacheByType invalidates one cache entity type.
func (s *Service) ClearCacheByType(t model.CacheType) error {
	return s.cache.Clear(t)
}

// CacheStatistics returns cache statistics for one entity type.
func (s *Service) CacheStatistics(t model.CacheType) (cache.Stats, error) {
	return s.cache.Stats(t)
}

// CachedTickets returns up to take of a queue's cached tickets in service order.
func (s *Service) CachedTickets(queueID int64, take int) []model.Ticket {
	return s.cache.Tickets(queueID, take)
}

// GetParameterValue returns a parameter from the cache, falling back to the
// store.
func (s *Service) GetParameterValue(ctx context.Context, code string) (string, bool, error) {
	if v, ok := s.cache.Parameter(code); ok && v != "" {
		return v, true, nil
	}
	return s.store.ParameterValue(ctx, code)
}

// Parameters returns every stored parameter.
func (s *Service) Parameters(ctx context.Context) (map[string]string, error) {
	return s.store.Parameters(ctx)
}

// SetParameter writes a parameter to the store and then the cache. Values
// of known typed parameters are validated.
func (s *Service) SetParameter(ctx context.Context, code, value string) error {
	const op = "set parameter"
	code = strings.TrimSpace(code)
	if err := validateParameter(code, strings.TrimSpace(value)); err != nil {
		return model.InvalidArgument(op, err.Error())
	}
	if err := s.store.SetParameter(ctx, code, value); err != nil {
		return annotate(op, err)
	}
	s.cache.SetParameter(code, value)
	return nil
}

func validateParameter(code, value string) error {
	switch code {
	case params.DisplacementLimit, params.DigitWidth, params.InsertionStep,
		params.DefaultProcessMinutes, params.ProcessFluctuationMinutes:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("%s=%q is not an integer", code, value)
		}
	case params.PriorityPrefix, params.PrioritySuffix, params.PreviousLinkFlag,
		params.EstimateByWaitingCount, params.RecallShowDisplay:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%s=%q is not a boolean", code, value)
		}
	case params.DayStartTime:
		if _, _, err := params.ParseTimeOfDay(value); err != nil {
			return err
		}
	}
	return nil
}

// Ticket returns a ticket by id.
func (s *Service) Ticket(ctx context.Context, id string) (model.Ticket, error) {
	return s.store.Ticket(ctx, id)
}

// TicketByDisplayText returns a ticket by display text on day (today if empty).
func (s *Service) TicketByDisplayText(ctx context.Context, queueID int64, displayText string, day model.Day) (model.Ticket, error) {
	if day == "" {
		day = s.Today()
	}
	return s.store.TicketByDisplayText(ctx, queueID, strings.TrimSpace(displayText), day, nil)
}

// TicketsForPatient returns a patient's tickets in a queue on day (today if
// empty), Done tickets included.
func (s *Service) TicketsForPatient(ctx context.Context, queueID int64, patientCode string, day model.Day) ([]model.Ticket, error) {
	if day == "" {
		day = s.Today()
	}
	return s.store.TicketsForPatient(ctx, queueID, normalize(patientCode), day, true)
}
