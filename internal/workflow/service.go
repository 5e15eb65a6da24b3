package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/qms/internal/cache"
	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/params"
	"github.com/roach88/qms/internal/store"
)

// Default retry budgets.
const (
	DefaultCreateRetries = 3
	DefaultClaimRetries  = 3
)

// Options tunes the service.
type Options struct {
	// CreateRetries bounds re-reads after a uniqueness conflict on create/move.
	CreateRetries int
	// ClaimRetries bounds re-queries after losing an AssignNext race.
	ClaimRetries int
}

func (o Options) withDefaults() Options {
	if o.CreateRetries <= 0 {
		o.CreateRetries = DefaultCreateRetries
	}
	if o.ClaimRetries <= 0 {
		o.ClaimRetries = DefaultClaimRetries
	}
	return o
}

// CounterRef identifies the counter performing an operation.
type CounterRef struct {
	ID   int64
	Name string
}

// Service is the ticket workflow orchestrator.
//
// Thread-safety: all methods are safe for concurrent use.
type Service struct {
	store *store.Store
	cache *cache.Cache
	clock model.Clock
	ids   IDGenerator
	opts  Options
	locks queueLocks
}

// New wires a service. A nil clock uses model.SystemClock and a nil id
// generator uses UUIDv7Generator.
func New(st *store.Store, c *cache.Cache, clock model.Clock, ids IDGenerator, opts Options) *Service {
	if clock == nil {
		clock = model.SystemClock{}
	}
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Service{
		store: st,
		cache: c,
		clock: clock,
		ids:   ids,
		opts:  opts.withDefaults(),
	}
}

// Cache returns the cache the service keeps current.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Clock returns the service's clock.
func (s *Service) Clock() model.Clock {
	return s.clock
}

// Today returns the facility's current day.
func (s *Service) Today() model.Day {
	return model.Today(s.clock)
}

// reader returns a parameter reader that consults the cache first and then
// the transaction. Inside a transaction the store must be read through tx.
func (s *Service) reader(ctx context.Context, tx *store.Tx) *params.Reader {
	return params.NewReader(params.Chain(s.cache.ParameterLookup(), tx.ParameterLookup(ctx)))
}

// resolveQueue finds a queue by department (preferred) or id.
func (s *Service) resolveQueue(ctx context.Context, op string, departmentID, queueID int64) (model.Queue, error) {
	switch {
	case departmentID > 0:
		if q, ok := s.cache.QueueByDepartment(departmentID); ok {
			return q, nil
		}
		q, err := s.store.QueueByDepartment(ctx, departmentID)
		if err != nil {
			return model.Queue{}, annotate(op, err)
		}
		return q, nil
	case queueID > 0:
		return s.queue(ctx, op, queueID)
	default:
		return model.Queue{}, model.InvalidArgument(op, "either department id or queue id must be provided")
	}
}

func (s *Service) queue(ctx context.Context, op string, queueID int64) (model.Queue, error) {
	if queueID <= 0 {
		return model.Queue{}, model.InvalidArgument(op, "queue id must be positive")
	}
	if q, ok := s.cache.Queue(queueID); ok {
		return q, nil
	}
	q, err := s.store.Queue(ctx, queueID)
	if err != nil {
		return model.Queue{}, annotate(op, err)
	}
	return q, nil
}

// counterRef fills in a missing counter name from the cache.
func (s *Service) counterRef(c CounterRef) CounterRef {
	if c.Name == "" && c.ID > 0 {
		if ct, ok := s.cache.Counter(c.ID); ok {
			c.Name = ct.Name
		}
	}
	return c
}

// normalize trims and NFC-normalizes patient identifiers so that visually
// identical codes compare equal.
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// annotate wraps untyped errors with op; typed model errors already carry
// their own operation and pass through.
func annotate(op string, err error) error {
	if err == nil || model.KindOf(err) != "" {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// publish pushes committed tickets into the cache.
func (s *Service) publish(tickets ...model.Ticket) {
	for _, t := range tickets {
		s.cache.Put(t)
	}
}

func logTicket(msg string, t model.Ticket, extra ...any) {
	args := append([]any{
		"queue_id", t.QueueID,
		"ticket_id", t.ID,
		"display_text", t.DisplayText,
		"state", t.State.String(),
	}, extra...)
	slog.Info(msg, args...)
}

func logTicketCount(msg string, queueID int64, n int) {
	slog.Info(msg, "queue_id", queueID, "count", n)
}
