package webhook

import (
	"fmt"
	"strconv"
	"time"

	"github.com/timosh-design/blankstock/internal/intake"
)

// Payload mirrors the order platform's webhook envelope.
type Payload struct {
	Event   string `json:"event"`
	Context struct {
		ID       int64  `json:"id"`
		Status   string `json:"status"`
		Datetime string `json:"datetime"`
		Items    []Item `json:"items"`
	} `json:"context"`
}

// Item is one purchased position in the payload.
type Item struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Quantity   int        `json:"quantity"`
	Properties []Property `json:"properties"`
}

// Property is a name/value pair as the platform sends it.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ToEvent converts the platform payload into the pipeline's order event.
// The platform timestamp is local wall-clock time without a zone; it is
// parsed as UTC so dedup keys stay stable across deliveries. An
// unparseable timestamp stays zero for the same reason: substituting
// arrival time would give each redelivery of the event a fresh dedup
// key.
func (p Payload) ToEvent() intake.OrderEvent {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", p.Context.Datetime, time.UTC)
	if err != nil {
		ts = time.Time{}
	}
	event := intake.OrderEvent{
		OrderID:   strconv.FormatInt(p.Context.ID, 10),
		Timestamp: ts,
	}
	for _, item := range p.Context.Items {
		props := make(map[string]string, len(item.Properties))
		for _, prop := range item.Properties {
			props[prop.Name] = prop.Value
		}
		event.Lines = append(event.Lines, intake.OrderLine{
			LineID:      fmt.Sprintf("%d", item.ID),
			ProductName: item.Name,
			Quantity:    item.Quantity,
			Properties:  props,
		})
	}
	return event
}
