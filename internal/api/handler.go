package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/pkg/model"
)

// QuoteService acquires quotes. Satisfied by *quote.Orchestrator.
type QuoteService interface {
	Acquire(ctx context.Context, req model.QuoteRequest) model.QuoteResult
}

// ResultCache retains recent results. Satisfied by *store.Results.
type ResultCache interface {
	Get(ctx context.Context, req model.QuoteRequest) (model.QuoteResult, bool)
	Put(ctx context.Context, req model.QuoteRequest, res model.QuoteResult)
}

// CacheHeader reports whether a response came from the retained results.
const CacheHeader = "X-Quote-Cache"

// QuoteHandler serves quote acquisitions over HTTP.
type QuoteHandler struct {
	logger  *zap.Logger
	service QuoteService
	results ResultCache
}

// NewQuoteHandler creates a QuoteHandler. results is optional.
func NewQuoteHandler(logger *zap.Logger, service QuoteService, results ResultCache) *QuoteHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteHandler{
		logger:  logger,
		service: service,
		results: results,
	}
}

// CreateQuoteHandler handles POST /api/v1/quote.
func (h *QuoteHandler) CreateQuoteHandler(c *fiber.Ctx) error {
	var body QuoteCreateRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := body.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	req, err := toQuoteRequest(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.UserContext()
	if h.results != nil {
		if res, ok := h.results.Get(ctx, req); ok {
			c.Set(CacheHeader, "HIT")
			return c.Status(statusFor(res)).JSON(res)
		}
	}

	res := h.service.Acquire(ctx, req)
	if h.results != nil {
		h.results.Put(ctx, req, res)
	}

	if f, ok := res.Outcome.(model.QuoteFailure); ok {
		h.logger.Warn("api.quote_failed",
			zap.Int64("chain_id", int64(req.TokenInChainID)),
			zap.String("kind", string(f.Kind)),
			zap.String("error", f.Message))
	}
	c.Set(CacheHeader, "MISS")
	return c.Status(statusFor(res)).JSON(res)
}

func statusFor(res model.QuoteResult) int {
	switch res.State() {
	case model.QuoteStateSuccess:
		return fiber.StatusOK
	case model.QuoteStateNotFound:
		return fiber.StatusNotFound
	}
	if f, ok := res.Outcome.(model.QuoteFailure); ok && f.Kind == model.FailureKindCancelled {
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusBadGateway
}
