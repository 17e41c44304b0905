package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service implements the task operations as read-modify-write cycles over
// the whole collection. Every call loads the collection; mutating calls
// validate first and save last, so a rejected call never writes.
type Service struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	// writeMu is nil unless writes are serialized.
	writeMu *sync.Mutex
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSerializedWrites holds a process-local lock across each mutation.
// Without it concurrent mutations race and the last save wins.
func WithSerializedWrites(on bool) Option {
	return func(s *Service) {
		if on {
			s.writeMu = &sync.Mutex{}
		} else {
			s.writeMu = nil
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) lockWrites() func() {
	if s.writeMu == nil {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

func (s *Service) List(ctx context.Context) ([]Task, error) {
	c, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return c.filter(func(Task) bool { return true }), nil
}

func (s *Service) Get(ctx context.Context, id string) (Task, error) {
	c, err := s.store.Load(ctx)
	if err != nil {
		return Task{}, err
	}
	i := c.indexOf(id)
	if i < 0 {
		return Task{}, ErrNotFound
	}
	return c[i], nil
}

func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Task, error) {
	if !status.Valid() {
		return nil, invalid("status", msgInvalidStatus)
	}
	c, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return c.filter(func(t Task) bool { return t.Status == status }), nil
}

func (s *Service) ListByTag(ctx context.Context, tag string) ([]Task, error) {
	c, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return c.filter(func(t Task) bool { return t.HasTag(tag) }), nil
}

func (s *Service) ListOverdue(ctx context.Context, now time.Time) ([]Task, error) {
	c, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return c.filter(func(t Task) bool { return t.IsOverdue(now) }), nil
}

func (s *Service) ListDueToday(ctx context.Context, now time.Time) ([]Task, error) {
	c, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return c.filter(func(t Task) bool { return t.IsDueOn(now) }), nil
}

func (s *Service) Create(ctx context.Context, in TaskInput) (Task, error) {
	if err := in.ValidateCreate(); err != nil {
		return Task{}, err
	}

	defer s.lockWrites()()
	c, err := s.store.Load(ctx)
	if err != nil {
		return Task{}, err
	}

	t := in.newTask(s.newID(), s.now())
	c = append(c, t)
	if err := s.store.Save(ctx, c); err != nil {
		return Task{}, err
	}
	s.logger.DebugContext(ctx, "task_created", slog.String("id", t.ID))
	return t, nil
}

// Update applies in to the stored task. Title and status cannot be cleared;
// see TaskInput.
func (s *Service) Update(ctx context.Context, id string, in TaskInput) (Task, error) {
	defer s.lockWrites()()
	c, err := s.store.Load(ctx)
	if err != nil {
		return Task{}, err
	}
	i := c.indexOf(id)
	if i < 0 {
		return Task{}, ErrNotFound
	}
	if err := in.ValidateUpdate(); err != nil {
		return Task{}, err
	}

	c[i] = in.apply(c[i], s.now())
	if err := s.store.Save(ctx, c); err != nil {
		return Task{}, err
	}
	s.logger.DebugContext(ctx, "task_updated", slog.String("id", id))
	return c[i], nil
}

func (s *Service) PatchStatus(ctx context.Context, id string, status Optional[string]) (Task, error) {
	if !truthy(status) {
		return Task{}, invalid("status", msgStatusRequired)
	}
	if !Status(status.V).Valid() {
		return Task{}, invalid("status", msgInvalidStatus)
	}

	defer s.lockWrites()()
	c, err := s.store.Load(ctx)
	if err != nil {
		return Task{}, err
	}
	i := c.indexOf(id)
	if i < 0 {
		return Task{}, ErrNotFound
	}

	c[i].Status = Status(status.V)
	c[i].UpdatedAt = s.now()
	if err := s.store.Save(ctx, c); err != nil {
		return Task{}, err
	}
	s.logger.DebugContext(ctx, "task_status_updated", slog.String("id", id), slog.String("status", status.V))
	return c[i], nil
}

func (s *Service) Delete(ctx context.Context, id string) (Task, error) {
	defer s.lockWrites()()
	c, err := s.store.Load(ctx)
	if err != nil {
		return Task{}, err
	}
	i := c.indexOf(id)
	if i < 0 {
		return Task{}, ErrNotFound
	}

	removed := c[i]
	c = append(c[:i], c[i+1:]...)
	if err := s.store.Save(ctx, c); err != nil {
		return Task{}, err
	}
	s.logger.DebugContext(ctx, "task_deleted", slog.String("id", id))
	return removed, nil
}
