package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/powderplan/backend/internal/services"
	"github.com/powderplan/backend/pkg/utils"
)

// HotelsHandler exposes read-only hotel data proxied from the travel
// API. Every endpoint requires a session so the upstream key is never
// exercised anonymously.
type HotelsHandler struct {
	LiteAPI *services.LiteAPIService
}

func NewHotelsHandler(liteAPI *services.LiteAPIService) *HotelsHandler {
	return &HotelsHandler{LiteAPI: liteAPI}
}

func (h *HotelsHandler) Search(c *fiber.Ctx) error {
	countryCode := strings.TrimSpace(c.Query("countryCode"))
	cityName := strings.TrimSpace(c.Query("cityName"))
	if countryCode == "" && cityName == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "countryCode or cityName is required")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	body, err := h.LiteAPI.SearchHotels(c.Context(), countryCode, cityName, limit, offset)
	if err != nil {
		return h.upstreamError(c, err)
	}
	return h.raw(c, body)
}

func (h *HotelsHandler) Details(c *fiber.Ctx) error {
	hotelID := strings.TrimSpace(c.Params("id"))
	if hotelID == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "hotel id is required")
	}

	body, err := h.LiteAPI.HotelDetails(c.Context(), hotelID)
	if err != nil {
		return h.upstreamError(c, err)
	}
	return h.raw(c, body)
}

func (h *HotelsHandler) Reviews(c *fiber.Ctx) error {
	hotelID := strings.TrimSpace(c.Params("id"))
	if hotelID == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "hotel id is required")
	}

	body, err := h.LiteAPI.HotelReviews(c.Context(), hotelID)
	if err != nil {
		return h.upstreamError(c, err)
	}
	return h.raw(c, body)
}

// Rates forwards a rate-search body to the travel API. The payload is
// passed through opaquely; the upstream validates it.
func (h *HotelsHandler) Rates(c *fiber.Ctx) error {
	payload := c.Body()
	if len(payload) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "request body is required")
	}

	body, err := h.LiteAPI.HotelRates(c.Context(), payload)
	if err != nil {
		return h.upstreamError(c, err)
	}
	return h.raw(c, body)
}

func (h *HotelsHandler) Facilities(c *fiber.Ctx) error {
	body, err := h.LiteAPI.Facilities(c.Context())
	if err != nil {
		return h.upstreamError(c, err)
	}
	return h.raw(c, body)
}

func (h *HotelsHandler) Countries(c *fiber.Ctx) error {
	body, err := h.LiteAPI.Countries(c.Context())
	if err != nil {
		return h.upstreamError(c, err)
	}
	return h.raw(c, body)
}

func (h *HotelsHandler) Cities(c *fiber.Ctx) error {
	countryCode := strings.TrimSpace(c.Params("country"))
	if countryCode == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "country code is required")
	}

	body, err := h.LiteAPI.Cities(c.Context(), countryCode)
	if err != nil {
		return h.upstreamError(c, err)
	}
	return h.raw(c, body)
}

// raw wraps the upstream payload in the standard envelope without
// re-shaping it; clients get LiteAPI's document as-is under data.
func (h *HotelsHandler) raw(c *fiber.Ctx, body json.RawMessage) error {
	return utils.Success(c, fiber.StatusOK, body)
}

func (h *HotelsHandler) upstreamError(c *fiber.Ctx, err error) error {
	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		status := upstream.StatusCode
		if status < 400 || status > 599 {
			status = fiber.StatusBadGateway
		}
		return utils.Error(c, status, utils.CodeInternalError, upstream.Message)
	}
	return utils.Error(c, fiber.StatusBadGateway, utils.CodeInternalError, "travel api is unavailable")
}
