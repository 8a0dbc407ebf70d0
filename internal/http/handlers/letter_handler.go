// Letter HTTP handlers.
//
// This file exposes the owner's letter endpoints:
//   - POST   /letters                   (create, Idempotency-Key aware)
//   - GET    /letters                   (list, filtered, paginated, ETag support)
//   - GET    /letters/stats             (dashboard counters)
//   - GET    /letters/{id}              (summary, no content)
//   - GET    /letters/{id}/preview      (owner preview with content)
//   - PATCH  /letters/{id}              (partial update)
//   - DELETE /letters/{id}
//   - POST   /letters/{id}/favorite     (toggle)
//   - POST   /letters/{id}/archive
//   - POST   /letters/{id}/unarchive
//   - POST   /letters/{id}/checkout     (hand-off to the payment provider)
//   - GET    /letters/{id}/access-log   (audit trail of public reads)
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/cartas-cosmicas/internal/http/middleware"
	"github.com/tbourn/cartas-cosmicas/internal/services"
	"github.com/tbourn/cartas-cosmicas/internal/utils"
)

func letterID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "letter id must be a UUID")
		return "", false
	}
	return id, true
}

// CreateLetter godoc
// @ID          createLetter
// @Summary     Create a letter
// @Description Creates a time-locked letter. Unless save_as_draft is set the letter awaits payment. Repeating a request with the same Idempotency-Key returns the original letter.
// @Tags        Letters
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Client retry key"  example(3f1c0b9e-create-1)
// @Param       body             body    handlers.CreateLetterRequest  true  "Letter payload"
//
// @Success     201  {object}  handlers.LetterView
// @Header      201  {string}  Idempotent-Replayed  "true when the response replays an earlier request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /letters [post]
func (h *Handlers) CreateLetter(c *gin.Context) {
	var req CreateLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	l, replayed, err := h.letters.Create(c.Request.Context(), middleware.OwnerID(c), req.input(), key)
	if err != nil {
		failService(c, err)
		return
	}
	if replayed {
		c.Header(middleware.HeaderIdempotentReplay, "true")
	}
	ok(c, http.StatusCreated, h.letterView(l, false))
}

// ListLetters godoc
// @ID          listLetters
// @Summary     List letters (paginated)
// @Description Returns a page of the owner's letters. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       status         query   string  false "Payment status"  Enums(all, pending, paid, failed)
// @Param       favorite       query   bool    false "Only favorites"
// @Param       search         query   string  false "Case-insensitive match on title or content"
// @Param       sort_by        query   string  false "Sort column"  Enums(created_at, release_date, title)
// @Param       sort_order     query   string  false "Sort direction"  Enums(asc, desc)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLettersResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     422  {object} handlers.ErrorResponse "Invalid filter"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /letters [get]
func (h *Handlers) ListLetters(c *gin.Context) {
	ctx := c.Request.Context()
	owner := middleware.OwnerID(c)
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"))

	favorite := false
	if raw := strings.TrimSpace(c.Query("favorite")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "favorite must be a boolean")
			return
		}
		favorite = v
	}

	// ETag pre-check (best effort).
	if count, maxTS, err := h.letters.Meta(ctx, owner); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		q := fnv.New32a()
		_, _ = q.Write([]byte(c.Request.URL.RawQuery))
		etag := fmt.Sprintf(`W/"letters:%d:%d:%08x"`, count, ts, q.Sum32())
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.letters.ListPage(ctx, owner, services.ListLettersInput{
		Status:    c.Query("status"),
		Favorite:  favorite,
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		failService(c, err)
		return
	}

	views := make([]LetterView, 0, len(items))
	for i := range items {
		views = append(views, h.letterView(&items[i], false))
	}
	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListLettersResponse{
		Letters: views,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// LetterStats godoc
// @ID          letterStats
// @Summary     Dashboard counters
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} repo.LetterStats
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /letters/stats [get]
func (h *Handlers) LetterStats(c *gin.Context) {
	st, err := h.letters.Stats(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// GetLetter godoc
// @ID          getLetter
// @Summary     Get a letter summary
// @Description Returns the letter without its content.
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Letter ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.LetterView
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Router      /letters/{id} [get]
func (h *Handlers) GetLetter(c *gin.Context) {
	h.showLetter(c, false)
}

// PreviewLetter godoc
// @ID          previewLetter
// @Summary     Preview a letter
// @Description Returns the letter with its content, for the owner only. Views are not counted.
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Letter ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.LetterView
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Router      /letters/{id}/preview [get]
func (h *Handlers) PreviewLetter(c *gin.Context) {
	c.Header("Cache-Control", "no-store, private")
	h.showLetter(c, true)
}

func (h *Handlers) showLetter(c *gin.Context, withContent bool) {
	id, valid := letterID(c)
	if !valid {
		return
	}
	l, err := h.letters.Get(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, h.letterView(l, withContent))
}

// UpdateLetter godoc
// @ID          updateLetter
// @Summary     Update a letter
// @Description Applies a partial update. Absent fields are unchanged; null clears access_password, max_views and expires_at.
// @Tags        Letters
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Letter ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateLetterRequest  true  "Fields to change"
// @Success     200  {object} handlers.LetterView
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Failure     422  {object} handlers.ErrorResponse "Validation failed"
// @Router      /letters/{id} [patch]
func (h *Handlers) UpdateLetter(c *gin.Context) {
	id, valid := letterID(c)
	if !valid {
		return
	}
	var req UpdateLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	l, err := h.letters.Update(c.Request.Context(), middleware.OwnerID(c), id, req.input())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, h.letterView(l, false))
}

// DeleteLetter godoc
// @ID          deleteLetter
// @Summary     Delete a letter
// @Tags        Letters
// @Security    BearerAuth
// @Param       id  path  string  true  "Letter ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Router      /letters/{id} [delete]
func (h *Handlers) DeleteLetter(c *gin.Context) {
	id, valid := letterID(c)
	if !valid {
		return
	}
	if err := h.letters.Delete(c.Request.Context(), middleware.OwnerID(c), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ToggleFavorite godoc
// @ID          toggleFavorite
// @Summary     Toggle the favorite flag
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Letter ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.FavoriteResponse
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Router      /letters/{id}/favorite [post]
func (h *Handlers) ToggleFavorite(c *gin.Context) {
	id, valid := letterID(c)
	if !valid {
		return
	}
	fav, err := h.letters.ToggleFavorite(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, FavoriteResponse{IsFavorite: fav})
}

// ArchiveLetter godoc
// @ID          archiveLetter
// @Summary     Archive an active letter
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Letter ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.LetterView
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Failure     409  {object} handlers.ErrorResponse "Not allowed in current state"
// @Router      /letters/{id}/archive [post]
func (h *Handlers) ArchiveLetter(c *gin.Context) {
	id, valid := letterID(c)
	if !valid {
		return
	}
	l, err := h.letters.Archive(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, h.letterView(l, false))
}

// UnarchiveLetter godoc
// @ID          unarchiveLetter
// @Summary     Restore an archived letter
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Letter ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.LetterView
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Failure     409  {object} handlers.ErrorResponse "Not allowed in current state"
// @Router      /letters/{id}/unarchive [post]
func (h *Handlers) UnarchiveLetter(c *gin.Context) {
	id, valid := letterID(c)
	if !valid {
		return
	}
	l, err := h.letters.Unarchive(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, h.letterView(l, false))
}

// CheckoutLetter godoc
// @ID          checkoutLetter
// @Summary     Start payment
// @Description Moves a draft to pending payment and returns what the payment provider needs: the correlation id to echo back in the webhook, price and currency.
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Letter ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.CheckoutResponse
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Failure     409  {object} handlers.ErrorResponse "Already paid or failed"
// @Failure     422  {object} handlers.ErrorResponse "Release date no longer valid"
// @Router      /letters/{id}/checkout [post]
func (h *Handlers) CheckoutLetter(c *gin.Context) {
	id, valid := letterID(c)
	if !valid {
		return
	}
	co, err := h.letters.Checkout(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, CheckoutResponse{Checkout: *co, ShareURL: h.shareURL(co.UniqueLink)})
}

// LetterAccessLog godoc
// @ID          letterAccessLog
// @Summary     Public access audit trail
// @Description Lists recent attempts to open the letter's public link, newest first.
// @Tags        Letters
// @Produce     json
// @Security    BearerAuth
// @Param       id     path   string  true   "Letter ID (UUID)"  format(uuid)
// @Param       limit  query  int     false  "Max rows"  minimum(1) maximum(200) default(50)
// @Success     200  {object} handlers.AccessLogResponse
// @Failure     404  {object} handlers.ErrorResponse "Letter not found"
// @Router      /letters/{id}/access-log [get]
func (h *Handlers) LetterAccessLog(c *gin.Context) {
	id, valid := letterID(c)
	if !valid {
		return
	}
	rows, err := h.letters.AccessLog(c.Request.Context(), middleware.OwnerID(c), id, utils.AtoiDefault(c.Query("limit"), 50))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, AccessLogResponse{Attempts: rows})
}
