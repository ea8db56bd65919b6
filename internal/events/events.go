package events

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Lightspeed webhook event types.
const (
	ItemCreated   = "item.created"
	ItemUpdated   = "item.updated"
	ItemDeleted   = "item.deleted"
	SaleCompleted = "sale.completed"
)

// Event is a Lightspeed webhook payload. The same shape is queued to Kafka.
type Event struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// Parse decodes a webhook body.
func Parse(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("invalid event payload: %w", err)
	}
	return e, nil
}

func (e Event) ItemID() string {
	return e.field("itemID")
}

func (e Event) SaleID() string {
	return e.field("saleID")
}

// field reads a data value as a string. IDs sometimes arrive as numbers.
func (e Event) field(key string) string {
	switch v := e.Data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
