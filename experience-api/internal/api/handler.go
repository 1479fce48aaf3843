package api

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/internal/aggregator"
	"github.com/Checker-Finance/experiences/pkg/model"
)

// MaxLimit caps the page size a client may request.
const MaxLimit = 100

// ExperienceService is the aggregator surface used by the handlers.
type ExperienceService interface {
	DefaultWindow() model.DateRange
	ListAll(ctx context.Context, r model.DateRange, f model.Filters) ([]model.Experience, error)
	ListBySource(ctx context.Context, name string, r model.DateRange, f model.Filters) ([]model.Experience, error)
	GetDetails(ctx context.Context, id string) (*model.ExperienceDetails, error)
	GetAvailability(ctx context.Context, id string, date model.Date) (model.Availability, error)
	ListProviderNames(ctx context.Context) []string
	RecordView(ctx context.Context, id string)
	Related(ctx context.Context, id string) ([]model.Experience, error)
}

// ExperienceHandler handles the experience HTTP API.
type ExperienceHandler struct {
	logger       *zap.Logger
	service      ExperienceService
	defaultLimit int
}

// NewExperienceHandler creates a new ExperienceHandler.
func NewExperienceHandler(logger *zap.Logger, service ExperienceService, defaultLimit int) *ExperienceHandler {
	if defaultLimit <= 0 || defaultLimit > MaxLimit {
		defaultLimit = 10
	}
	return &ExperienceHandler{
		logger:       logger,
		service:      service,
		defaultLimit: defaultLimit,
	}
}

// ListExperiences serves the merged listing.
func (h *ExperienceHandler) ListExperiences(c *fiber.Ctx) error {
	r, page, limit, err := h.listParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	items, err := h.service.ListAll(c.UserContext(), r, model.Filters{})
	if err != nil {
		return h.fail(c, "experiences.list.failed", "failed to fetch experiences", err)
	}
	return c.JSON(ListResponse{
		Data: paginate(items, page, limit),
		Meta: Meta{Total: len(items), Page: page, Limit: limit},
	})
}

// ListBySource serves one source's listing.
func (h *ExperienceHandler) ListBySource(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("source"))
	r, page, limit, err := h.listParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	items, err := h.service.ListBySource(c.UserContext(), name, r, model.Filters{})
	if err != nil {
		return h.fail(c, "experiences.list_by_source.failed", "failed to fetch experiences", err,
			zap.String("source", name))
	}
	return c.JSON(ListResponse{
		Data: paginate(items, page, limit),
		Meta: Meta{Total: len(items), Page: page, Limit: limit},
	})
}

// GetDetails serves one experience with up to four related local ones.
// Local hits count a view. A failed related lookup leaves the list empty.
func (h *ExperienceHandler) GetDetails(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	d, err := h.service.GetDetails(c.UserContext(), id)
	if err != nil {
		return h.fail(c, "experiences.details.failed", "failed to fetch experience details", err,
			zap.String("id", id))
	}
	if d == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "experience not found"})
	}
	if d.IsLocal() {
		h.service.RecordView(c.UserContext(), id)
	}

	related := []ExperienceItem{}
	items, err := h.service.Related(c.UserContext(), id)
	if err != nil {
		h.logger.Warn("experiences.related.failed",
			zap.String("id", id),
			zap.Error(err))
	}
	for _, e := range items {
		related = append(related, toItem(e))
	}
	return c.JSON(DetailsResponse{Experience: d, Related: related})
}

// GetAvailability serves the availability of one experience on one date.
func (h *ExperienceHandler) GetAvailability(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Query("experience_id"))
	rawDate := strings.TrimSpace(c.Query("date"))
	if id == "" || rawDate == "" {
		return badRequest(c, "experience_id and date are required")
	}
	date, err := model.ParseDate(rawDate)
	if err != nil {
		return badRequest(c, "date must be formatted as YYYY-MM-DD")
	}

	av, err := h.service.GetAvailability(c.UserContext(), id, date)
	if err != nil {
		return h.fail(c, "experiences.availability.failed", "failed to fetch availability", err,
			zap.String("id", id),
			zap.String("date", rawDate))
	}
	return c.JSON(av.Normalize())
}

// ProviderStatus lists the sources currently consulted.
func (h *ExperienceHandler) ProviderStatus(c *fiber.Ctx) error {
	names := h.service.ListProviderNames(c.UserContext())
	return c.JSON(ProvidersResponse{AvailableProviders: names, TotalProviders: len(names)})
}

// listParams reads start_date, end_date, page and limit. Missing dates
// default to the service window.
func (h *ExperienceHandler) listParams(c *fiber.Ctx) (model.DateRange, int, int, error) {
	r := h.service.DefaultWindow()
	if s := strings.TrimSpace(c.Query("start_date")); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return r, 0, 0, errors.New("start_date must be formatted as YYYY-MM-DD")
		}
		r.Start = d
	}
	if s := strings.TrimSpace(c.Query("end_date")); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return r, 0, 0, errors.New("end_date must be formatted as YYYY-MM-DD")
		}
		r.End = d
	}
	if err := r.Validate(); err != nil {
		return r, 0, 0, err
	}

	page, err := positiveQuery(c, "page", 1)
	if err != nil {
		return r, 0, 0, err
	}
	limit, err := positiveQuery(c, "limit", h.defaultLimit)
	if err != nil {
		return r, 0, 0, err
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return r, page, limit, nil
}

func positiveQuery(c *fiber.Ctx, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return n, nil
}

// fail maps service errors to HTTP answers. Invalid input is a 400,
// anything else a logged 500.
func (h *ExperienceHandler) fail(c *fiber.Ctx, event, msg string, err error, fields ...zap.Field) error {
	if errors.Is(err, aggregator.ErrInvalidRange) ||
		errors.Is(err, aggregator.ErrMissingID) ||
		errors.Is(err, aggregator.ErrInvalidDate) {
		return badRequest(c, err.Error())
	}
	h.logger.Error(event, append(fields, zap.Error(err))...)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
