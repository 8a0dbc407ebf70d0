// Package services – LetterService
//
// This file implements the owner-facing side of letters: creation with
// write-time validation, partial updates, listing with filters, dashboard
// statistics, favorites, archiving and checkout. Content is normalized (NFC)
// before validation; passwords are hashed before they reach the store.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
	"github.com/tbourn/cartas-cosmicas/internal/metrics"
	"github.com/tbourn/cartas-cosmicas/internal/password"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
)

// ScopeCreateLetter namespaces Idempotency-Keys of letter creation.
const ScopeCreateLetter = "letters.create"

const linkAttempts = 5

// CreateLetterInput is the owner's request to create a letter.
type CreateLetterInput struct {
	Title          string
	Content        string
	ReleaseDate    time.Time
	AccessPassword string
	MaxViews       *int
	ExpiresAt      *time.Time
	SaveAsDraft    bool
}

// UpdateLetterInput is a partial update. Nil pointers leave the field alone;
// the Clear flags reset optional fields. An empty AccessPassword removes the
// password.
type UpdateLetterInput struct {
	Title          *string
	Content        *string
	ReleaseDate    *time.Time
	AccessPassword *string
	MaxViews       *int
	ClearMaxViews  bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	IsFavorite     *bool
}

// ListLettersInput selects a page of the owner's letters.
type ListLettersInput struct {
	Status    string
	Favorite  bool
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Checkout is what a client needs to send the owner to the payment page.
type Checkout struct {
	LetterID      string    `json:"letter_id"`
	CorrelationID string    `json:"correlation_id"`
	AmountCents   int       `json:"amount_cents"`
	Currency      string    `json:"currency"`
	UniqueLink    string    `json:"unique_link"`
	State         string    `json:"state"`
	ReleaseDate   time.Time `json:"release_date"`
}

// LetterService provides owner operations on letters.
type LetterService struct {
	DB *gorm.DB

	// ReleaseHorizon caps how far ahead a release date may be set.
	ReleaseHorizon time.Duration
	// BcryptCost is the work factor for access passwords.
	BcryptCost int
	// IdempotencyTTL bounds how long a create Idempotency-Key replays.
	IdempotencyTTL time.Duration
	// PriceCents and Currency describe the checkout amount.
	PriceCents int
	Currency   string

	// Now is the service clock; defaults to time.Now.
	Now func() time.Time
	// NewLink generates unique link candidates; defaults to NewUniqueLink.
	NewLink func() (string, error)
}

// NewLetterService constructs a LetterService with defaults.
func NewLetterService(db *gorm.DB) *LetterService {
	return &LetterService{
		DB:             db,
		ReleaseHorizon: DefaultReleaseSpan,
		BcryptCost:     password.DefaultCost,
		IdempotencyTTL: 24 * time.Hour,
		PriceCents:     299,
		Currency:       "BRL",
		Now:            time.Now,
		NewLink:        NewUniqueLink,
	}
}

func (s *LetterService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *LetterService) horizon() time.Duration {
	if s.ReleaseHorizon > 0 {
		return s.ReleaseHorizon
	}
	return DefaultReleaseSpan
}

func letterTracer() trace.Tracer { return otel.Tracer("services/LetterService") }

// Create validates in and stores a new letter for ownerID. When idemKey is
// non-empty and a previous create with the same key is still recorded, the
// original letter is returned with replayed=true and nothing is written.
func (s *LetterService) Create(ctx context.Context, ownerID string, in CreateLetterInput, idemKey string) (l *domain.Letter, replayed bool, err error) {
	ctx, span := letterTracer().Start(ctx, "Create",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()

	now := s.now()
	if idemKey != "" {
		if prev, ok := s.replay(ctx, ownerID, idemKey, now); ok {
			return prev, true, nil
		}
	}

	in.Title = normalizeTitle(in.Title)
	in.Content = normalizeContent(in.Content)
	in.ReleaseDate = in.ReleaseDate.UTC()

	rules := letterRules{now: now, horizon: s.horizon()}
	rules.title(in.Title)
	rules.content(in.Content)
	rules.releaseDate(in.ReleaseDate)
	rules.password(in.AccessPassword)
	rules.maxViews(in.MaxViews)
	rules.expiresAt(in.ExpiresAt, in.ReleaseDate)
	if err := rules.verr.Err(); err != nil {
		return nil, false, err
	}

	l = &domain.Letter{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Content:     in.Content,
		ReleaseDate: in.ReleaseDate,
		State:       domain.StatePendingPayment,
		MaxViews:    in.MaxViews,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.SaveAsDraft {
		l.State = domain.StateDraft
	}
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		l.ExpiresAt = &exp
	}
	if password.Provided(in.AccessPassword) {
		if l.AccessPasswordHash, err = password.Hash(in.AccessPassword, s.BcryptCost); err != nil {
			return nil, false, err
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.insertWithFreshLink(ctx, tx, l); err != nil {
			return err
		}
		if idemKey == "" {
			return nil
		}
		_, err := repo.CreateIdempotency(ctx, tx, ownerID, ScopeCreateLetter, idemKey, l.ID, http.StatusCreated, s.IdempotencyTTL, now)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) && idemKey != "" {
		// A concurrent request with the same key won; serve its letter.
		if prev, ok := s.replay(ctx, ownerID, idemKey, now); ok {
			return prev, true, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	metrics.LettersCreated.WithLabelValues(string(l.State)).Inc()
	log.Ctx(ctx).Info().Str("letter_id", l.ID).Str("state", string(l.State)).Msg("letter created")
	return l, false, nil
}

func (s *LetterService) replay(ctx context.Context, ownerID, key string, now time.Time) (*domain.Letter, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, ownerID, ScopeCreateLetter, key, now)
	if err != nil {
		return nil, false
	}
	l, err := repo.FindOwned(ctx, s.DB, rec.ResourceID, ownerID)
	if err != nil {
		return nil, false
	}
	return l, true
}

// insertWithFreshLink retries on unique_link collisions with a new token.
func (s *LetterService) insertWithFreshLink(ctx context.Context, tx *gorm.DB, l *domain.Letter) error {
	gen := s.NewLink
	if gen == nil {
		gen = NewUniqueLink
	}
	for i := 0; i < linkAttempts; i++ {
		link, err := gen()
		if err != nil {
			return err
		}
		l.UniqueLink = link
		// SAVEPOINT keeps the outer transaction usable after a collision.
		err = tx.Transaction(func(inner *gorm.DB) error {
			return repo.CreateLetter(ctx, inner, l)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return err
		}
		log.Ctx(ctx).Warn().Int("attempt", i+1).Msg("unique link collision, regenerating")
	}
	return ErrLinkExhausted
}

// Get returns an owned letter. The result carries content; callers decide
// whether to expose it.
func (s *LetterService) Get(ctx context.Context, ownerID, id string) (*domain.Letter, error) {
	ctx, span := letterTracer().Start(ctx, "Get",
		trace.WithAttributes(attribute.String("owner.id", ownerID), attribute.String("letter.id", id)),
	)
	defer span.End()

	l, err := repo.FindOwned(ctx, s.DB, id, ownerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrLetterNotFound
	}
	return l, err
}

// Update applies a partial update with the same bounds as Create.
func (s *LetterService) Update(ctx context.Context, ownerID, id string, in UpdateLetterInput) (*domain.Letter, error) {
	ctx, span := letterTracer().Start(ctx, "Update",
		trace.WithAttributes(attribute.String("owner.id", ownerID), attribute.String("letter.id", id)),
	)
	defer span.End()

	cur, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rules := letterRules{now: now, horizon: s.horizon()}
	fields := map[string]any{}

	if in.Title != nil {
		t := normalizeTitle(*in.Title)
		rules.title(t)
		fields["title"] = t
	}
	if in.Content != nil {
		c := normalizeContent(*in.Content)
		rules.content(c)
		fields["content"] = c
	}
	release := cur.ReleaseDate
	if in.ReleaseDate != nil {
		release = in.ReleaseDate.UTC()
		rules.releaseDate(release)
		fields["release_date"] = release
	}
	if in.AccessPassword != nil {
		rules.password(*in.AccessPassword)
	}
	switch {
	case in.ClearMaxViews:
		fields["max_views"] = nil
	case in.MaxViews != nil:
		rules.maxViews(in.MaxViews)
		fields["max_views"] = *in.MaxViews
	}
	switch {
	case in.ClearExpiresAt:
		fields["expires_at"] = nil
	case in.ExpiresAt != nil:
		exp := in.ExpiresAt.UTC()
		rules.expiresAt(&exp, release)
		fields["expires_at"] = exp
	case cur.ExpiresAt != nil && in.ReleaseDate != nil:
		rules.expiresAt(cur.ExpiresAt, release)
	}
	if in.IsFavorite != nil {
		fields["is_favorite"] = *in.IsFavorite
	}
	if err := rules.verr.Err(); err != nil {
		return nil, err
	}

	if in.AccessPassword != nil {
		if password.Provided(*in.AccessPassword) {
			h, err := password.Hash(*in.AccessPassword, s.BcryptCost)
			if err != nil {
				return nil, err
			}
			fields["access_password_hash"] = h
		} else {
			fields["access_password_hash"] = ""
		}
	}

	if err := repo.UpdateLetter(ctx, s.DB, id, ownerID, fields, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLetterNotFound
		}
		return nil, err
	}
	return s.Get(ctx, ownerID, id)
}

// Delete permanently removes an owned letter.
func (s *LetterService) Delete(ctx context.Context, ownerID, id string) error {
	ctx, span := letterTracer().Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("owner.id", ownerID), attribute.String("letter.id", id)),
	)
	defer span.End()

	if err := repo.DeleteLetter(ctx, s.DB, id, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrLetterNotFound
		}
		return err
	}
	log.Ctx(ctx).Info().Str("letter_id", id).Msg("letter deleted")
	return nil
}

// ToggleFavorite flips the favorite flag and returns its new value.
func (s *LetterService) ToggleFavorite(ctx context.Context, ownerID, id string) (bool, error) {
	ctx, span := letterTracer().Start(ctx, "ToggleFavorite",
		trace.WithAttributes(attribute.String("letter.id", id)),
	)
	defer span.End()

	fav, err := repo.ToggleFavorite(ctx, s.DB, id, ownerID, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return false, ErrLetterNotFound
	}
	return fav, err
}

// Archive hides an active or failed letter. Payment history is kept, so an
// archived paid letter still reports Paid.
func (s *LetterService) Archive(ctx context.Context, ownerID, id string) (*domain.Letter, error) {
	ctx, span := letterTracer().Start(ctx, "Archive",
		trace.WithAttributes(attribute.String("letter.id", id)),
	)
	defer span.End()

	return s.transition(ctx, ownerID, id,
		[]domain.LetterState{domain.StateActive, domain.StateFailed}, domain.StateArchived)
}

// Unarchive restores an archived letter to the state its payment history
// implies: active when paid, failed when the payment failed.
func (s *LetterService) Unarchive(ctx context.Context, ownerID, id string) (*domain.Letter, error) {
	ctx, span := letterTracer().Start(ctx, "Unarchive",
		trace.WithAttributes(attribute.String("letter.id", id)),
	)
	defer span.End()

	cur, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if cur.State != domain.StateArchived {
		return nil, ErrInvalidTransition
	}
	to := domain.StateFailed
	if cur.PaidAt != nil {
		to = domain.StateActive
	}
	return s.transition(ctx, ownerID, id, []domain.LetterState{domain.StateArchived}, to)
}

// Checkout returns the payment details for a letter awaiting payment. A draft
// is submitted (promoted to pending_payment); payment status stays Pending
// and lifecycle stays Draft until the provider confirms.
func (s *LetterService) Checkout(ctx context.Context, ownerID, id string) (*Checkout, error) {
	ctx, span := letterTracer().Start(ctx, "Checkout",
		trace.WithAttributes(attribute.String("letter.id", id)),
	)
	defer span.End()

	l, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	switch l.State {
	case domain.StateDraft:
		if _, err := repo.TransitionState(ctx, s.DB, id, ownerID,
			[]domain.LetterState{domain.StateDraft}, domain.StatePendingPayment, s.now()); err != nil {
			return nil, err
		}
		l.State = domain.StatePendingPayment
	case domain.StatePendingPayment:
	default:
		return nil, ErrInvalidTransition
	}

	return &Checkout{
		LetterID:      l.ID,
		CorrelationID: l.ID,
		AmountCents:   s.PriceCents,
		Currency:      s.Currency,
		UniqueLink:    l.UniqueLink,
		State:         string(l.State),
		ReleaseDate:   l.ReleaseDate,
	}, nil
}

func (s *LetterService) transition(ctx context.Context, ownerID, id string, from []domain.LetterState, to domain.LetterState) (*domain.Letter, error) {
	changed, err := repo.TransitionState(ctx, s.DB, id, ownerID, from, to, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		if _, err := s.Get(ctx, ownerID, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return s.Get(ctx, ownerID, id)
}

// ListPage returns a filtered page of the owner's letters and the total count.
func (s *LetterService) ListPage(ctx context.Context, ownerID string, in ListLettersInput) ([]domain.Letter, int64, error) {
	ctx, span := letterTracer().Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.Int("page", in.Page),
			attribute.Int("page_size", in.PageSize),
		),
	)
	defer span.End()

	f, err := toFilter(in)
	if err != nil {
		return nil, 0, err
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.PageSize <= 0 {
		in.PageSize = 20
	}

	total, err := repo.CountLetters(ctx, s.DB, ownerID, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Letter{}, 0, nil
	}
	items, err := repo.ListLettersPage(ctx, s.DB, ownerID, f, (in.Page-1)*in.PageSize, in.PageSize)
	return items, total, err
}

var sortAliases = map[string]string{
	"":             "",
	"createdAt":    "created_at",
	"created_at":   "created_at",
	"releaseDate":  "release_date",
	"release_date": "release_date",
	"title":        "title",
}

func toFilter(in ListLettersInput) (repo.LetterFilter, error) {
	var verr ValidationError
	f := repo.LetterFilter{FavoriteOnly: in.Favorite, Search: normalizeTitle(in.Search)}

	switch st := repo.StatusFilter(strings.ToLower(in.Status)); st {
	case "", repo.StatusAll, repo.StatusPending, repo.StatusPaid, repo.StatusFailed:
		f.Status = st
	default:
		verr.Add("status", CodeInvalid, "must be one of all, pending, paid, failed")
	}

	col, ok := sortAliases[in.SortBy]
	if !ok {
		verr.Add("sort_by", CodeInvalid, "must be one of created_at, release_date, title")
	}
	f.SortBy = col

	switch strings.ToLower(in.SortOrder) {
	case "":
		f.SortDesc = col == "" || col == "created_at"
	case "desc":
		f.SortDesc = true
	case "asc":
	default:
		verr.Add("sort_order", CodeInvalid, "must be asc or desc")
	}
	if utf8.RuneCountInString(f.Search) > TitleMaxRunes {
		verr.Add("search", CodeTooLong, "search term too long")
	}
	return f, verr.Err()
}

// Stats returns the dashboard counters.
func (s *LetterService) Stats(ctx context.Context, ownerID string) (repo.LetterStats, error) {
	ctx, span := letterTracer().Start(ctx, "Stats",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()
	return repo.GetLetterStats(ctx, s.DB, ownerID)
}

// Meta returns the count and latest update of the owner's letters, used
// for weak ETags on listings.
func (s *LetterService) Meta(ctx context.Context, ownerID string) (int64, *time.Time, error) {
	return repo.LettersMeta(ctx, s.DB, ownerID)
}

// AccessLog returns the newest audit rows for an owned letter.
func (s *LetterService) AccessLog(ctx context.Context, ownerID, id string, limit int) ([]domain.AccessAttempt, error) {
	ctx, span := letterTracer().Start(ctx, "AccessLog",
		trace.WithAttributes(attribute.String("letter.id", id)),
	)
	defer span.End()

	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return repo.ListAccessAttempts(ctx, s.DB, id, limit)
}
