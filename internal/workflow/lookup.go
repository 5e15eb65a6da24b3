package workflow

import (
	"context"
	"strings"

	"github.com/roach88/qms/internal/display"
	"github.com/roach88/qms/internal/model"
)

// CounterByComputerName resolves the counter bound to a workstation,
// reading the cache first and then the store.
func (s *Service) CounterByComputerName(ctx context.Context, name string) (model.Counter, error) {
	const op = "counter by computer name"
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Counter{}, model.InvalidArgument(op, "computer name is required")
	}
	if ct, ok := s.cache.CounterByComputerName(name); ok {
		return ct, nil
	}
	ct, err := s.store.CounterByComputerName(ctx, name)
	return ct, annotate(op, err)
}

// CounterByName resolves a counter by its display name, cache first.
func (s *Service) CounterByName(ctx context.Context, name string) (model.Counter, error) {
	const op = "counter by name"
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Counter{}, model.InvalidArgument(op, "counter name is required")
	}
	if ct, ok := s.cache.CounterByName(name); ok {
		return ct, nil
	}
	ct, err := s.store.CounterByName(ctx, name)
	return ct, annotate(op, err)
}

// Kiosk returns the menu of the kiosk named (or addressed) nameOrIP with
// per-queue waiting counts from the cache.
func (s *Service) Kiosk(nameOrIP string) (display.KioskView, error) {
	nameOrIP = strings.TrimSpace(nameOrIP)
	if nameOrIP == "" {
		return display.KioskView{}, model.InvalidArgument("build kiosk", "kiosk name or ip is required")
	}
	return display.Kiosk(s.cache, nameOrIP)
}
