package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/messaging"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrRateLimited            = errors.New("rate limit exceeded")
	ErrLimiterUnavailable     = errors.New("rate limiter unavailable")
	ErrNotFoundOrUnauthorized = errors.New("not found or unauthorized")
)

const defaultLimiterTimeout = 2 * time.Second

// CreateLinkInput holds the fields accepted when shortening a URL.
type CreateLinkInput struct {
	OriginalURL string `validate:"required,url"`
	UserID      string `validate:"required"`
	ExpiresAt   *time.Time
}

// Service implements the link lifecycle: creation, listing, deletion, expiration sweeps
// and click accounting.
type Service struct {
	repo              Repository
	cache             Cache
	limiter           ratelimit.Limiter
	generateCode      CodeGenerator
	publishCreated    messaging.Publish[analytics.LinkCreatedEvent]
	validate          *validator.Validate
	logger            *zap.Logger
	now               func() time.Time
	limiterTimeout    time.Duration
	limiterFailClosed bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for creation and expiration checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLimiterTimeout bounds how long CreateLink waits on the rate limiter.
func WithLimiterTimeout(d time.Duration) Option {
	return func(s *Service) { s.limiterTimeout = d }
}

// WithLimiterFailClosed rejects creates when the limiter errors instead of allowing them.
func WithLimiterFailClosed(failClosed bool) Option {
	return func(s *Service) { s.limiterFailClosed = failClosed }
}

// WithCreatedPublisher publishes a LinkCreatedEvent after each successful create.
func WithCreatedPublisher(publish messaging.Publish[analytics.LinkCreatedEvent]) Option {
	return func(s *Service) { s.publishCreated = publish }
}

// NewService creates a new link service.
func NewService(
	repo Repository,
	cache Cache,
	limiter ratelimit.Limiter,
	generator CodeGenerator,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:           repo,
		cache:          cache,
		limiter:        limiter,
		generateCode:   generator,
		validate:       validator.New(),
		logger:         logger,
		now:            time.Now,
		limiterTimeout: defaultLimiterTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateLink validates the input, applies the per-user rate limit and stores a new link.
func (s *Service) CreateLink(ctx context.Context, in CreateLinkInput) (*Link, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	if err := s.checkRateLimit(ctx, in.UserID); err != nil {
		return nil, err
	}

	link := &Link{
		ID:          uuid.NewString(),
		OriginalURL: in.OriginalURL,
		UserID:      in.UserID,
		CreatedAt:   s.now().UTC(),
		ExpiresAt:   in.ExpiresAt,
	}

	if err := s.save(ctx, link); err != nil {
		return nil, err
	}

	s.publishLinkCreated(link)

	return link, nil
}

// save persists the link, regenerating the code once if it collides.
func (s *Service) save(ctx context.Context, link *Link) error {
	link.Code = Code(s.generateCode())

	err := s.repo.Save(ctx, link)
	if !errors.Is(err, ErrCodeConflict) {
		return err
	}

	s.logger.Warn("short code collision, regenerating", zap.String("code", string(link.Code)))

	link.Code = Code(s.generateCode())

	if err := s.repo.Save(ctx, link); err != nil {
		return fmt.Errorf("save link after code collision: %w", err)
	}

	return nil
}

func (s *Service) checkRateLimit(ctx context.Context, userID string) error {
	limitCtx, cancel := context.WithTimeout(ctx, s.limiterTimeout)
	defer cancel()

	allowed, err := s.limiter.Allow(limitCtx, userID)
	if err != nil {
		if limitCtx.Err() != nil {
			s.logger.Error("rate limiter timed out", zap.String("userId", userID), zap.Error(err))

			return fmt.Errorf("%w: %w", ErrLimiterUnavailable, err)
		}

		if s.limiterFailClosed {
			s.logger.Error("rate limiter failed", zap.String("userId", userID), zap.Error(err))

			return fmt.Errorf("%w: %w", ErrLimiterUnavailable, err)
		}

		s.logger.Warn("rate limiter failed, allowing request",
			zap.String("userId", userID),
			zap.Error(err),
		)

		return nil
	}

	if !allowed {
		return ErrRateLimited
	}

	return nil
}

func (s *Service) publishLinkCreated(link *Link) {
	if s.publishCreated == nil {
		return
	}

	event := &analytics.LinkCreatedEvent{
		LinkID:      link.ID,
		Code:        string(link.Code),
		OriginalURL: link.OriginalURL,
		UserID:      link.UserID,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	}

	if err := s.publishCreated(event); err != nil {
		s.logger.Error("failed to publish link created event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}
}

// UserLinks returns the user's links, newest first, annotated with their expiration status.
func (s *Service) UserLinks(ctx context.Context, userID string) ([]LinkView, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	links, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	now := s.now()
	views := make([]LinkView, 0, len(links))

	for _, link := range links {
		views = append(views, LinkView{Link: link, Expired: link.Expired(now)})
	}

	return views, nil
}

// DeleteLink removes a link owned by userID.
func (s *Service) DeleteLink(ctx context.Context, linkID, userID string) error {
	if linkID == "" || userID == "" {
		return ErrInvalidInput
	}

	// Ids are UUIDs; anything else cannot match a row.
	if uuid.Validate(linkID) != nil {
		return ErrNotFoundOrUnauthorized
	}

	link, err := s.repo.DeleteOwned(ctx, linkID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFoundOrUnauthorized
		}

		return fmt.Errorf("delete link: %w", err)
	}

	s.evict(ctx, link.Code)

	return nil
}

// DeleteExpiredLinks removes every link whose expiration is before now, clearing its cache
// entry first. It returns the number of rows deleted.
func (s *Service) DeleteExpiredLinks(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list expired links: %w", err)
	}

	deleted := 0

	for _, link := range expired {
		s.evict(ctx, link.Code)

		ok, err := s.repo.Delete(ctx, link.ID)
		if err != nil {
			return deleted, fmt.Errorf("delete expired link %s: %w", link.ID, err)
		}

		if ok {
			deleted++
		}
	}

	if deleted > 0 {
		s.logger.Info("expired links deleted", zap.Int("count", deleted))
	}

	return deleted, nil
}

func (s *Service) evict(ctx context.Context, code Code) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Evict(ctx, code); err != nil {
		s.logger.Warn("failed to evict cached link",
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}
}

// TrackClick increments the click counter of an active link. Unknown and expired codes are ignored.
func (s *Service) TrackClick(ctx context.Context, code Code) error {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}

		return fmt.Errorf("get link: %w", err)
	}

	if link.Expired(s.now()) {
		return nil
	}

	// The row may be deleted between the lookup and the increment.
	if err := s.repo.IncrementClicks(ctx, code); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("increment clicks: %w", err)
	}

	return nil
}

// TotalLinks returns the number of stored links.
func (s *Service) TotalLinks(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
