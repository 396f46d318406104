package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/service"
)

// CardHandler serves /api/cards and the per-card status history.
type CardHandler struct {
	Cards         *service.CardService
	MaxImageBytes int64
}

// ---------- DTOs ----------

// cardReq accepts either a multipart form with an `image` file part or a
// JSON body whose `image` is base64 (a data URL prefix is tolerated).
type cardReq struct {
	service.CardInput
	Image string `json:"image" form:"-"`
}

// ---------- helpers ----------

// readCard binds the card body.  Image is nil when none was sent, which
// keeps the stored image on update.
func (h *CardHandler) readCard(c echo.Context) (service.CardInput, error) {
	var req cardReq
	if err := bind(c, &req); err != nil {
		return service.CardInput{}, err
	}
	in := req.CardInput

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("image")
		if err == nil {
			f, err := fh.Open()
			if err != nil {
				return service.CardInput{}, badRequest("unreadable image")
			}
			defer f.Close()
			// One byte over the limit is enough for the service to reject it.
			data, err := io.ReadAll(io.LimitReader(f, h.MaxImageBytes+1))
			if err != nil {
				return service.CardInput{}, badRequest("unreadable image")
			}
			in.Image = data
		} else if !errors.Is(err, http.ErrMissingFile) {
			return service.CardInput{}, badRequest("invalid image upload")
		}
		return in, nil
	}

	if req.Image != "" {
		raw := req.Image
		if i := strings.Index(raw, ";base64,"); i >= 0 && strings.HasPrefix(raw, "data:") {
			raw = raw[i+len(";base64,"):]
		}
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return service.CardInput{}, badRequest("image must be base64 encoded")
		}
		in.Image = data
	}
	return in, nil
}

func views(cards []model.Card) []model.CardView {
	out := make([]model.CardView, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.View())
	}
	return out
}

// ---------- endpoints ----------

// List handles GET /api/cards.
func (h *CardHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	cards, err := h.Cards.List(ctx, a)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ok", echo.Map{"cards": views(cards)})
}

// Create handles POST /api/cards.
func (h *CardHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	in, err := h.readCard(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	card, err := h.Cards.Create(ctx, a, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Card created", echo.Map{"card": card.View()})
}

// Get handles GET /api/cards/:slug.
func (h *CardHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	card, err := h.Cards.Get(ctx, a, c.Param("slug"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ok", echo.Map{"card": card.View()})
}

// Update handles PUT /api/cards/:slug.
func (h *CardHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	in, err := h.readCard(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	card, err := h.Cards.Update(ctx, a, c.Param("slug"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Card updated", echo.Map{"card": card.View()})
}

// Delete handles DELETE /api/cards/:slug.
func (h *CardHandler) Delete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Cards.Delete(ctx, a, c.Param("slug")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Card deleted", nil)
}

// Close handles PUT /api/cards/:slug/close.
func (h *CardHandler) Close(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	card, err := h.Cards.Close(ctx, a, c.Param("slug"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Card closed", echo.Map{"card": card.View()})
}

// Statuses handles GET /api/cards/:slug/statuses.
func (h *CardHandler) Statuses(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.Cards.ListStatuses(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.CardStatus{}
	}
	return respond(c, http.StatusOK, "ok", echo.Map{"statuses": list})
}

// AppendStatus handles POST /api/cards/:slug/statuses.
func (h *CardHandler) AppendStatus(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in service.StatusInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	st, err := h.Cards.AppendStatus(ctx, a, c.Param("slug"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Status added", echo.Map{"status": st})
}
