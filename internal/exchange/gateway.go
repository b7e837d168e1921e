package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const ordersPath = "/orders"

// StatusUnreachable is reported when the order request never produced an
// HTTP response (timeout, connection refused, DNS failure). The pipeline
// records it like any other non-success status.
const StatusUnreachable = 0

// Options parameterise the Coinbase Exchange gateway.
type Options struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	Timeout    time.Duration
	UserAgent  string
}

// Gateway places funds-denominated market orders on Coinbase Exchange.
type Gateway struct {
	opts    Options
	signer  *Signer
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewGateway constructs an order gateway.
func NewGateway(opts Options, logger zerolog.Logger) *Gateway {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api-public.sandbox.pro.coinbase.com"
	}

	return &Gateway{
		opts:    opts,
		signer:  NewSigner(opts.APIKey, opts.APISecret, opts.Passphrase),
		logger:  logger.With().Str("component", "order_gateway").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type orderRequest struct {
	Type      string `json:"type"`
	Side      string `json:"side"`
	ProductID string `json:"product_id"`
	Funds     string `json:"funds"`
}

// PlaceMarketOrderByFunds submits a market order sized by quote-currency
// funds. The amount is rounded to 2 decimal places, which is the precision
// the exchange accepts for USD funds. It always returns a status/body pair:
// transport failures become StatusUnreachable with a structured error body,
// and non-JSON responses degrade to the raw text wrapped as JSON, so the
// caller always has something to persist.
func (g *Gateway) PlaceMarketOrderByFunds(ctx context.Context, productID string, side string, funds decimal.Decimal) (int, json.RawMessage) {
	payload := orderRequest{
		Type:      "market",
		Side:      side,
		ProductID: productID,
		Funds:     funds.Round(2).StringFixed(2),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return StatusUnreachable, errorBody("marshal order: " + err.Error())
	}

	headers, err := g.signer.Headers(http.MethodPost, ordersPath, string(body))
	if err != nil {
		return StatusUnreachable, errorBody("sign order: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+ordersPath, bytes.NewReader(body))
	if err != nil {
		return StatusUnreachable, errorBody("create order request: " + err.Error())
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	if ua := strings.TrimSpace(g.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error().Err(err).Str("product_id", productID).Msg("order request failed before a response")
		return StatusUnreachable, errorBody(err.Error())
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errorBody("read response: " + err.Error())
	}

	g.logger.Info().
		Int("status", resp.StatusCode).
		Str("product_id", productID).
		Str("side", side).
		Str("funds", payload.Funds).
		Msg("order submitted")

	return resp.StatusCode, normalizeBody(payloadBytes)
}

// normalizeBody keeps JSON responses as-is and wraps anything else as a
// JSON string so the audit column stays well-formed.
func normalizeBody(payload []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, err := json.Marshal(string(trimmed))
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(wrapped)
}

func errorBody(msg string) json.RawMessage {
	wrapped, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return json.RawMessage(`{"error":"unknown"}`)
	}
	return json.RawMessage(wrapped)
}
