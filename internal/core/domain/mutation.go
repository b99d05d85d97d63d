package domain

import (
	"encoding/json"
	"time"
)

// Mutation is a buffered non-GET request waiting for replay.
// ID is allocated by the durable store and is strictly increasing,
// so FIFO order is ID order.
type Mutation struct {
	ID          int64           `db:"id"           json:"id"`
	OperationID string          `db:"operation_id" json:"operationId"`
	Endpoint    string          `db:"endpoint"     json:"endpoint"`
	Method      string          `db:"method"       json:"method"`
	Body        json.RawMessage `db:"body"         json:"body,omitempty"`
	EnqueuedAt  time.Time       `db:"enqueued_at"  json:"enqueuedAt"`
	Attempts    int             `db:"attempts"     json:"attempts"`
	LastError   string          `db:"last_error"   json:"lastError,omitempty"`
}
