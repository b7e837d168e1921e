package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/shopspring/decimal"

	"tv-order-relay/internal/ratelimit"
	"tv-order-relay/internal/service"
)

// SimulateAlert 将一条原始告警文本走一遍真实流水线，
// 交易所调用由固定应答替代，不落库、不下单。
func (a *App) SimulateAlert(ctx context.Context, raw string, fail bool) error {
	if raw == "" {
		return errors.New("alert text 不能为空")
	}

	limiter, err := ratelimit.New(ctx, a.Config.Webhook.MinOrderInterval, nil, a.Logger)
	if err != nil {
		return err
	}

	gateway := &cannedGateway{fail: fail}
	svc := service.New(a.Config, nil, limiter, gateway, a.Logger)

	result := svc.Handle(ctx, raw)

	body, err := json.MarshalIndent(result.Body, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "http %d\n%s\n", result.Code, body)
	return nil
}

// cannedGateway 模拟交易所应答。
type cannedGateway struct {
	fail bool
}

func (g *cannedGateway) PlaceMarketOrderByFunds(ctx context.Context, productID string, side string, funds decimal.Decimal) (int, json.RawMessage) {
	if g.fail {
		return http.StatusServiceUnavailable, json.RawMessage(`{"message":"simulated outage"}`)
	}
	payload, _ := json.Marshal(map[string]string{
		"id":         "simulated",
		"product_id": productID,
		"side":       side,
		"funds":      funds.Round(2).StringFixed(2),
	})
	return http.StatusCreated, payload
}

var _ service.OrderPlacer = (*cannedGateway)(nil)
