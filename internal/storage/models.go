package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Alert processing outcomes persisted in the audit log.
const (
	StatusPlaced    = "placed"
	StatusAttempted = "attempted"
)

// CheckpointLastOrder is the meta key holding the Unix timestamp of the
// most recent order attempt.
const CheckpointLastOrder = "last_order_ts"

// AlertRecord is one row of the append-only audit log. A record is created
// once per alert that reached order placement and is never mutated; the
// tv_id column doubles as the idempotency key.
type AlertRecord struct {
	ID        int64
	TVID      *string
	Raw       string
	Symbol    string
	Action    string
	Amount    decimal.Decimal
	Status    string
	Response  json.RawMessage
	CreatedAt time.Time
}
