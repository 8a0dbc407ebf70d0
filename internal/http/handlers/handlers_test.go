package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
	"github.com/tbourn/cartas-cosmicas/internal/payment"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
	"github.com/tbourn/cartas-cosmicas/internal/services"
)

const (
	testOwner    = "owner-1"
	testLetterID = "141add05-4415-4938-b5a1-17e0d3171aff"
	testLink     = "Ab3dE5gH7jK9"
)

// Handlers.New expects interfaces in this package; we satisfy them with stubs.
// Unset funcs panic, so a test that hits an unexpected path fails loudly.

type stubLetters struct {
	create    func(ctx context.Context, ownerID string, in services.CreateLetterInput, key string) (*domain.Letter, bool, error)
	get       func(ctx context.Context, ownerID, id string) (*domain.Letter, error)
	update    func(ctx context.Context, ownerID, id string, in services.UpdateLetterInput) (*domain.Letter, error)
	del       func(ctx context.Context, ownerID, id string) error
	favorite  func(ctx context.Context, ownerID, id string) (bool, error)
	archive   func(ctx context.Context, ownerID, id string) (*domain.Letter, error)
	unarchive func(ctx context.Context, ownerID, id string) (*domain.Letter, error)
	checkout  func(ctx context.Context, ownerID, id string) (*services.Checkout, error)
	list      func(ctx context.Context, ownerID string, in services.ListLettersInput) ([]domain.Letter, int64, error)
	stats     func(ctx context.Context, ownerID string) (repo.LetterStats, error)
	meta      func(ctx context.Context, ownerID string) (int64, *time.Time, error)
	accessLog func(ctx context.Context, ownerID, id string, limit int) ([]domain.AccessAttempt, error)
}

func (s *stubLetters) Create(ctx context.Context, ownerID string, in services.CreateLetterInput, key string) (*domain.Letter, bool, error) {
	return s.create(ctx, ownerID, in, key)
}
func (s *stubLetters) Get(ctx context.Context, ownerID, id string) (*domain.Letter, error) {
	return s.get(ctx, ownerID, id)
}
func (s *stubLetters) Update(ctx context.Context, ownerID, id string, in services.UpdateLetterInput) (*domain.Letter, error) {
	return s.update(ctx, ownerID, id, in)
}
func (s *stubLetters) Delete(ctx context.Context, ownerID, id string) error {
	return s.del(ctx, ownerID, id)
}
func (s *stubLetters) ToggleFavorite(ctx context.Context, ownerID, id string) (bool, error) {
	return s.favorite(ctx, ownerID, id)
}
func (s *stubLetters) Archive(ctx context.Context, ownerID, id string) (*domain.Letter, error) {
	return s.archive(ctx, ownerID, id)
}
func (s *stubLetters) Unarchive(ctx context.Context, ownerID, id string) (*domain.Letter, error) {
	return s.unarchive(ctx, ownerID, id)
}
func (s *stubLetters) Checkout(ctx context.Context, ownerID, id string) (*services.Checkout, error) {
	return s.checkout(ctx, ownerID, id)
}
func (s *stubLetters) ListPage(ctx context.Context, ownerID string, in services.ListLettersInput) ([]domain.Letter, int64, error) {
	return s.list(ctx, ownerID, in)
}
func (s *stubLetters) Stats(ctx context.Context, ownerID string) (repo.LetterStats, error) {
	return s.stats(ctx, ownerID)
}
func (s *stubLetters) Meta(ctx context.Context, ownerID string) (int64, *time.Time, error) {
	if s.meta == nil {
		return 0, nil, nil
	}
	return s.meta(ctx, ownerID)
}
func (s *stubLetters) AccessLog(ctx context.Context, ownerID, id string, limit int) ([]domain.AccessAttempt, error) {
	return s.accessLog(ctx, ownerID, id, limit)
}

type stubAccess struct {
	open func(ctx context.Context, req services.OpenRequest) (*services.OpenResult, error)
}

func (s *stubAccess) Open(ctx context.Context, req services.OpenRequest) (*services.OpenResult, error) {
	return s.open(ctx, req)
}

type stubPayments struct {
	process func(ctx context.Context, body []byte, n payment.Notification) (services.ApplyResult, error)
}

func (s *stubPayments) Process(ctx context.Context, body []byte, n payment.Notification) (services.ApplyResult, error) {
	return s.process(ctx, body, n)
}

// testRouter mounts the handlers the way the real router does, with the
// owner id injected instead of parsed from a bearer token.
func testRouter(h *Handlers, providers map[string]WebhookProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	owner := r.Group("/letters", func(c *gin.Context) {
		c.Set("userID", testOwner)
		c.Next()
	})
	owner.POST("", h.CreateLetter)
	owner.GET("", h.ListLetters)
	owner.GET("/stats", h.LetterStats)
	owner.GET("/:id", h.GetLetter)
	owner.GET("/:id/preview", h.PreviewLetter)
	owner.PATCH("/:id", h.UpdateLetter)
	owner.DELETE("/:id", h.DeleteLetter)
	owner.POST("/:id/favorite", h.ToggleFavorite)
	owner.POST("/:id/archive", h.ArchiveLetter)
	owner.POST("/:id/unarchive", h.UnarchiveLetter)
	owner.POST("/:id/checkout", h.CheckoutLetter)
	owner.GET("/:id/access-log", h.LetterAccessLog)

	r.GET("/public/letters/:link", h.OpenLetter)
	r.POST("/public/letters/:link/unlock", h.UnlockLetter)

	if p, ok := providers["payment"]; ok {
		r.POST("/webhooks/payment", h.PaymentWebhook(p))
	}
	if p, ok := providers["kiwify"]; ok {
		r.POST("/webhooks/kiwify", h.KiwifyWebhook(p))
	}
	return r
}

func do(t *testing.T, r http.Handler, method, target string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == nil {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func sampleLetter() *domain.Letter {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Letter{
		ID:          testLetterID,
		OwnerID:     testOwner,
		Title:       "Para você",
		Content:     "Abra quando sentir saudade.",
		ReleaseDate: now.Add(time.Hour),
		UniqueLink:  testLink,
		State:       domain.StatePendingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
