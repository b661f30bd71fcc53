package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

type wirePayload struct {
	Event            string            `json:"event"`
	SaleID           string            `json:"sale_id"`
	SaleTimestamp    string            `json:"sale_timestamp"`
	ProductID        string            `json:"product_id"`
	SubscriptionID   string            `json:"subscription_id"`
	Price            json.RawMessage   `json:"price"`
	CancellationDate string            `json:"cancellation_date"`
	CustomFields     map[string]string `json:"custom_fields"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02",
}

// DecodeEvent parses a webhook body into an Event. JSON is the default;
// application/x-www-form-urlencoded bodies are accepted with custom fields
// sent as custom_fields[name].
func DecodeEvent(contentType string, body []byte) (Event, error) {
	wire, err := decodeWire(contentType, body)
	if err != nil {
		return nil, err
	}

	switch EventKind(strings.TrimSpace(wire.Event)) {
	case KindSale:
		ts, err := parseTimestamp(wire.SaleTimestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: sale_timestamp: %v", ErrMalformedPayload, err)
		}
		price, err := parsePrice(wire.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: price: %v", ErrMalformedPayload, err)
		}
		return SaleEvent{
			UserID:         wire.userID(),
			SaleID:         strings.TrimSpace(wire.SaleID),
			ProductID:      strings.TrimSpace(wire.ProductID),
			SubscriptionID: strings.TrimSpace(wire.SubscriptionID),
			Price:          price,
			Timestamp:      ts,
		}, nil
	case KindSubscriptionCancelled:
		end, err := wire.subscriptionEnd()
		if err != nil {
			return nil, err
		}
		return SubscriptionCancelledEvent{SubscriptionEnd: end}, nil
	case KindSubscriptionFailed:
		end, err := wire.subscriptionEnd()
		if err != nil {
			return nil, err
		}
		return SubscriptionFailedEvent{SubscriptionEnd: end}, nil
	default:
		return UnknownEvent{Type: wire.Event}, nil
	}
}

func decodeWire(contentType string, body []byte) (wirePayload, error) {
	var wire wirePayload
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return wire, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return wireFromForm(values), nil
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return wire, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return wire, nil
}

func wireFromForm(values url.Values) wirePayload {
	wire := wirePayload{
		Event:            values.Get("event"),
		SaleID:           values.Get("sale_id"),
		SaleTimestamp:    values.Get("sale_timestamp"),
		ProductID:        values.Get("product_id"),
		SubscriptionID:   values.Get("subscription_id"),
		CancellationDate: values.Get("cancellation_date"),
		CustomFields:     map[string]string{},
	}
	if price := values.Get("price"); price != "" {
		wire.Price = json.RawMessage(fmt.Sprintf("%q", price))
	}
	for key := range values {
		if name, ok := strings.CutPrefix(key, "custom_fields["); ok {
			wire.CustomFields[strings.TrimSuffix(name, "]")] = values.Get(key)
		}
	}
	return wire
}

func (w wirePayload) userID() string {
	return strings.TrimSpace(w.CustomFields["user_id"])
}

func (w wirePayload) subscriptionEnd() (SubscriptionEnd, error) {
	ts, err := parseTimestamp(w.CancellationDate)
	if err != nil {
		return SubscriptionEnd{}, fmt.Errorf("%w: cancellation_date: %v", ErrMalformedPayload, err)
	}
	return SubscriptionEnd{
		UserID:           w.userID(),
		SubscriptionID:   strings.TrimSpace(w.SubscriptionID),
		ProductID:        strings.TrimSpace(w.ProductID),
		CancellationDate: ts,
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// parsePrice accepts a JSON number or a numeric string.
func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}
	var price decimal.Decimal
	if err := price.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, err
	}
	return price, nil
}
