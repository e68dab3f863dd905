package canteen

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock supplies "now" to the workflows. Each workflow reads it once so
// every window and timestamp in one call agrees.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Advance moves it.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time          { return c.T }
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// Options configures a Service. Zero values pick defaults.
type Options struct {
	// Location fixes calendar-day and calendar-month boundaries.
	// Defaults to UTC.
	Location *time.Location

	// EnforceCatalogPrices rejects sale items whose unit price differs from
	// the product's current catalog price, or whose product is unknown or
	// inactive.
	EnforceCatalogPrices bool

	Clock  Clock
	Logger *zap.Logger

	// NewID generates entity identifiers. Defaults to random UUIDs.
	NewID func() string
}

// Service runs the canteen workflows against a Store. It holds no state
// between calls.
type Service struct {
	store         Store
	loc           *time.Location
	enforcePrices bool
	clock         Clock
	log           *zap.Logger
	newID         func() string
}

// NewService creates a service over store.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:         store,
		loc:           opts.Location,
		enforcePrices: opts.EnforceCatalogPrices,
		clock:         opts.Clock,
		log:           opts.Logger,
		newID:         opts.NewID,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Location returns the zone used for calendar boundaries.
func (s *Service) Location() *time.Location { return s.loc }

// Now reads the service clock.
func (s *Service) Now() time.Time { return s.clock.Now() }

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// logOutcome logs business rejections at info and everything else that
// failed at error.
func (s *Service) logOutcome(workflow string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("workflow", workflow))
	switch {
	case err == nil:
		s.log.Info("workflow completed", fields...)
	case IsDomainError(err):
		s.log.Info("workflow rejected", append(fields, zap.String("code", Code(err)), zap.Error(err))...)
	default:
		s.log.Error("workflow failed", append(fields, zap.Error(err))...)
	}
}
