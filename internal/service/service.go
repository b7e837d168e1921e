package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tv-order-relay/internal/alert"
	"tv-order-relay/internal/config"
	"tv-order-relay/internal/ratelimit"
	"tv-order-relay/internal/storage"
)

// OrderPlacer submits a funds-denominated market order and always yields a
// status/body pair, even on transport failure.
type OrderPlacer interface {
	PlaceMarketOrderByFunds(ctx context.Context, productID string, side string, funds decimal.Decimal) (int, json.RawMessage)
}

// Result is the terminal outcome of one webhook delivery: the HTTP status
// to return and the JSON body to serialise.
type Result struct {
	Code int
	Body map[string]any
}

// Service is the alert intake pipeline: parse, authenticate, dedupe,
// validate, rate-limit, place the order, and record the outcome.
type Service struct {
	secret   string
	maxUSD   decimal.Decimal
	store    storage.AuditStore
	limiter  *ratelimit.IntervalLimiter
	gateway  OrderPlacer
	logger   zerolog.Logger
	inflight *keyedMutex
}

// New constructs the pipeline. A nil store disables deduplication and audit
// persistence, which the simulate command relies on.
func New(cfg *config.Config, store storage.AuditStore, limiter *ratelimit.IntervalLimiter, gateway OrderPlacer, logger zerolog.Logger) *Service {
	return &Service{
		secret:   cfg.Webhook.Secret,
		maxUSD:   decimal.NewFromFloat(cfg.Webhook.MaxUSDPerOrder),
		store:    store,
		limiter:  limiter,
		gateway:  gateway,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		inflight: newKeyedMutex(),
	}
}

// Handle runs one raw webhook body through the pipeline. It never returns
// an error: every failure mode terminates in a structured Result, and any
// alert that reaches order placement leaves exactly one audit record and
// one rate-limit checkpoint write behind, whatever the exchange said.
func (s *Service) Handle(ctx context.Context, raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{Code: http.StatusBadRequest, Body: map[string]any{"error": "empty body"}}
	}

	fields := alert.ParseFields(raw)

	if subtle.ConstantTimeCompare([]byte(fields["secret"]), []byte(s.secret)) != 1 {
		s.logger.Warn().Msg("webhook rejected: invalid secret")
		return Result{Code: http.StatusUnauthorized, Body: map[string]any{"error": "invalid secret"}}
	}

	tvID := fields["tv_id"]
	if tvID == "" {
		tvID = fields["id"]
	}

	if tvID != "" && s.store != nil {
		release := s.inflight.Lock(tvID)
		defer release()

		exists, err := s.store.AlertExists(ctx, tvID)
		if err != nil {
			s.logger.Error().Err(err).Str("tv_id", tvID).Msg("duplicate lookup failed")
			return Result{Code: http.StatusInternalServerError, Body: map[string]any{"status": "error", "error": "storage unavailable"}}
		}
		if exists {
			return Result{Code: http.StatusConflict, Body: map[string]any{"error": "duplicate alert", "tv_id": tvID}}
		}
	}

	symbol := fields["symbol"]
	action := fields["action"]
	amountStr := fields["amount"]
	if symbol == "" || action == "" || amountStr == "" {
		return Result{Code: http.StatusBadRequest, Body: map[string]any{"error": "missing fields", "received": fields}}
	}

	amount, err := alert.ParseAmount(amountStr)
	if err != nil {
		return Result{Code: http.StatusBadRequest, Body: map[string]any{"error": "invalid amount"}}
	}

	side, err := alert.ParseSide(action)
	if err != nil {
		return Result{Code: http.StatusBadRequest, Body: map[string]any{"error": "invalid action"}}
	}

	if amount.Sign() <= 0 || amount.GreaterThan(s.maxUSD) {
		return Result{Code: http.StatusBadRequest, Body: map[string]any{"error": "amount out of bounds", "max_allowed": s.maxUSD.InexactFloat64()}}
	}

	if _, ok := s.limiter.Reserve(); !ok {
		return Result{Code: http.StatusTooManyRequests, Body: map[string]any{"error": "rate limit", "min_seconds": s.limiter.MinSeconds()}}
	}

	statusCode, response := s.gateway.PlaceMarketOrderByFunds(ctx, symbol, string(side), amount)

	placed := statusCode == http.StatusOK || statusCode == http.StatusCreated
	s.record(ctx, raw, tvID, symbol, action, amount, placed, response)

	if err := s.limiter.Persist(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist rate-limit checkpoint")
	}

	if placed {
		return Result{Code: http.StatusOK, Body: map[string]any{"status": "ok", "code": statusCode, "response": response}}
	}
	return Result{Code: http.StatusInternalServerError, Body: map[string]any{"status": "error", "code": statusCode, "response": response}}
}

// record appends the audit row. Failures are logged, not surfaced: the
// response to the sender is decided by the exchange outcome alone.
func (s *Service) record(ctx context.Context, raw, tvID, symbol, action string, amount decimal.Decimal, placed bool, response json.RawMessage) {
	if s.store == nil {
		return
	}

	status := storage.StatusAttempted
	if placed {
		status = storage.StatusPlaced
	}

	record := storage.AlertRecord{
		Raw:      raw,
		Symbol:   symbol,
		Action:   action,
		Amount:   amount,
		Status:   status,
		Response: response,
	}
	if tvID != "" {
		record.TVID = &tvID
	}

	id, err := s.store.InsertAlert(ctx, record)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateAlert) {
			// Another process won the insert race; the per-id lock only
			// covers this process, so the unique index is the backstop.
			s.logger.Error().Str("tv_id", tvID).Msg("audit insert collided with an existing tv_id")
			return
		}
		s.logger.Error().Err(err).Str("tv_id", tvID).Msg("failed to persist audit record")
		return
	}

	s.logger.Info().
		Int64("record_id", id).
		Str("symbol", symbol).
		Str("status", status).
		Str("amount", amount.String()).
		Msg("alert recorded")
}
