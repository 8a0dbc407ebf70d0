package handlers

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/tbourn/cartas-cosmicas/internal/access"
	"github.com/tbourn/cartas-cosmicas/internal/domain"
	"github.com/tbourn/cartas-cosmicas/internal/services"
)

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON implements json.Unmarshaler. It only runs for present keys.
func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Null = true
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// CreateLetterRequest is the JSON payload for creating a letter.
type CreateLetterRequest struct {
	Title          string     `json:"title" example:"Para você"`
	Content        string     `json:"content" example:"Abra quando sentir saudade."`
	ReleaseDate    time.Time  `json:"release_date" example:"2026-03-01T12:00:00Z"`
	AccessPassword string     `json:"access_password,omitempty" example:"lua-cheia"`
	MaxViews       *int       `json:"max_views,omitempty" example:"3"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	SaveAsDraft    bool       `json:"save_as_draft"`
}

func (r CreateLetterRequest) input() services.CreateLetterInput {
	return services.CreateLetterInput{
		Title:          r.Title,
		Content:        r.Content,
		ReleaseDate:    r.ReleaseDate,
		AccessPassword: r.AccessPassword,
		MaxViews:       r.MaxViews,
		ExpiresAt:      r.ExpiresAt,
		SaveAsDraft:    r.SaveAsDraft,
	}
}

// UpdateLetterRequest is a partial update. Absent fields are left alone;
// null clears access_password, max_views and expires_at.
type UpdateLetterRequest struct {
	Title          Nullable[string]    `json:"title" swaggertype:"string"`
	Content        Nullable[string]    `json:"content" swaggertype:"string"`
	ReleaseDate    Nullable[time.Time] `json:"release_date" swaggertype:"string" format:"date-time"`
	AccessPassword Nullable[string]    `json:"access_password" swaggertype:"string"`
	MaxViews       Nullable[int]       `json:"max_views" swaggertype:"integer"`
	ExpiresAt      Nullable[time.Time] `json:"expires_at" swaggertype:"string" format:"date-time"`
	IsFavorite     Nullable[bool]      `json:"is_favorite" swaggertype:"boolean"`
}

func (r UpdateLetterRequest) input() services.UpdateLetterInput {
	var in services.UpdateLetterInput
	if r.Title.Set {
		in.Title = &r.Title.Value
	}
	if r.Content.Set {
		in.Content = &r.Content.Value
	}
	if r.ReleaseDate.Set {
		in.ReleaseDate = &r.ReleaseDate.Value
	}
	if r.AccessPassword.Set {
		in.AccessPassword = &r.AccessPassword.Value
	}
	if r.MaxViews.Set {
		if r.MaxViews.Null {
			in.ClearMaxViews = true
		} else {
			in.MaxViews = &r.MaxViews.Value
		}
	}
	if r.ExpiresAt.Set {
		if r.ExpiresAt.Null {
			in.ClearExpiresAt = true
		} else {
			in.ExpiresAt = &r.ExpiresAt.Value
		}
	}
	if r.IsFavorite.Set && !r.IsFavorite.Null {
		in.IsFavorite = &r.IsFavorite.Value
	}
	return in
}

// UnlockRequest carries a password in the body instead of the URL.
type UnlockRequest struct {
	Password string `json:"password" example:"lua-cheia"`
}

// LetterView is the owner's view of a letter. Content is only filled by the
// preview endpoint.
type LetterView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Content         string     `json:"content,omitempty"`
	UniqueLink      string     `json:"unique_link"`
	ShareURL        string     `json:"share_url,omitempty"`
	State           string     `json:"state" example:"pending_payment"`
	LifecycleStatus string     `json:"lifecycle_status" example:"DRAFT"`
	PaymentStatus   string     `json:"payment_status" example:"PENDING"`
	ReleaseDate     time.Time  `json:"release_date"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	MaxViews        *int       `json:"max_views,omitempty"`
	ViewCount       int        `json:"view_count"`
	HasPassword     bool       `json:"has_password"`
	IsFavorite      bool       `json:"is_favorite"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (h *Handlers) letterView(l *domain.Letter, withContent bool) LetterView {
	v := LetterView{
		ID:              l.ID,
		Title:           l.Title,
		UniqueLink:      l.UniqueLink,
		ShareURL:        h.shareURL(l.UniqueLink),
		State:           string(l.State),
		LifecycleStatus: string(l.LifecycleStatus()),
		PaymentStatus:   string(l.PaymentStatus()),
		ReleaseDate:     l.ReleaseDate,
		ExpiresAt:       l.ExpiresAt,
		MaxViews:        l.MaxViews,
		ViewCount:       l.ViewCount,
		HasPassword:     l.HasPassword(),
		IsFavorite:      l.IsFavorite,
		PaidAt:          l.PaidAt,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if withContent {
		v.Content = l.Content
	}
	return v
}

func (h *Handlers) shareURL(link string) string {
	if h.opts.PublicBaseURL == "" {
		return ""
	}
	return strings.TrimRight(h.opts.PublicBaseURL, "/") + "/letter/" + link
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListLettersResponse wraps a page of letters.
type ListLettersResponse struct {
	Letters    []LetterView `json:"letters"`
	Pagination Pagination   `json:"pagination"`
}

// FavoriteResponse reports the new favorite flag.
type FavoriteResponse struct {
	IsFavorite bool `json:"is_favorite"`
}

// CheckoutResponse is returned by the checkout endpoint.
type CheckoutResponse struct {
	services.Checkout
	ShareURL string `json:"share_url,omitempty"`
}

// AccessLogResponse lists audit rows, newest first.
type AccessLogResponse struct {
	Attempts []domain.AccessAttempt `json:"attempts"`
}

// PublicLetter is what a visitor sees after a grant.
type PublicLetter struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	ReleaseDate time.Time  `json:"release_date"`
	ViewCount   int        `json:"view_count"`
	MaxViews    *int       `json:"max_views,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// DenialResponse is returned instead of content when access is denied. It
// never carries the letter body.
type DenialResponse struct {
	RequestID        string        `json:"request_id,omitempty"`
	Code             string        `json:"code" example:"access_denied"`
	Reason           access.Reason `json:"reason" example:"NOT_YET_RELEASED"`
	RequiresPassword bool          `json:"requires_password"`
	Message          string        `json:"message"`
	// Set for NOT_YET_RELEASED so the client can render a countdown.
	Title       string     `json:"title,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
}

// WebhookAck acknowledges a provider callback.
type WebhookAck struct {
	Status string `json:"status" example:"ok"`
	Result string `json:"result" example:"applied"`
}
