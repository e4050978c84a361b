package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"posledger/internal/authz"
	"posledger/internal/domain"
	"posledger/internal/sequence"
	"posledger/internal/store"
)

var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ValidationError carries one message per offending field, keyed the way the
// request names it (items.0.quantity, customer_id, ...).
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return store.ErrInvalidInput
}

func (e *ValidationError) add(field string, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

type Options struct {
	// Location decides which calendar day a sale belongs to in reports and
	// date filters. Defaults to UTC.
	Location *time.Location
	// EnforceCatalogPrice rejects sale lines priced differently from the
	// product's selling price.
	EnforceCatalogPrice bool
	Now                 func() time.Time
}

type Service struct {
	repo                store.Repository
	counter             sequence.Counter
	logger              *zap.Logger
	location            *time.Location
	enforceCatalogPrice bool
	now                 func() time.Time
}

// New wires the service. A nil counter falls back to the repository's own
// invoice sequence.
func New(repo store.Repository, counter sequence.Counter, logger *zap.Logger, opts Options) *Service {
	if counter == nil {
		counter = sequence.CounterFunc(repo.NextInvoiceSequence)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:                repo,
		counter:             counter,
		logger:              logger.Named("service"),
		location:            opts.Location,
		enforceCatalogPrice: opts.EnforceCatalogPrice,
		now:                 opts.Now,
	}
}

// authorize resolves the acting user and checks the role capability for op.
func (s *Service) authorize(ctx context.Context, op authz.Operation) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: %s requires an authenticated user", ErrForbidden, op)
	}
	if !authz.Allowed(actor.Role, op) {
		s.logger.Warn("operation denied",
			zap.String("username", actor.Username),
			zap.String("role", string(actor.Role)),
			zap.String("operation", string(op)),
		)
		return domain.Actor{}, fmt.Errorf("%w: role %s may not %s", ErrForbidden, actor.Role, op)
	}
	return actor, nil
}
