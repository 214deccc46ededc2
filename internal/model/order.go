package model

import "time"

type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
}

type ShippingLine struct {
	MethodTitle string `json:"method_title"`
	Name        string `json:"name"`
}

// Order is the snapshot of order data delivered with every inbound event.
type Order struct {
	ID                string         `json:"id"`
	Number            string         `json:"number"`
	Status            string         `json:"status"`
	CustomerFirstName string         `json:"customer_first_name"`
	BillingPhone      string         `json:"billing_phone"`
	Currency          string         `json:"currency"`
	Total             float64        `json:"total"`
	ShippingTotal     float64        `json:"shipping_total"`
	CreatedAt         time.Time      `json:"created_at"`
	Items             []OrderItem    `json:"items"`
	ShippingLines     []ShippingLine `json:"shipping_lines"`
}

// DisplayNumber is the customer-facing order number, falling back to the ID.
func (o Order) DisplayNumber() string {
	if o.Number != "" {
		return o.Number
	}
	return o.ID
}

type LifecycleEvent struct {
	OrderID        string    `json:"order_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Timestamp      time.Time `json:"timestamp"`
	Order          Order     `json:"order"`
}

type OrderNote struct {
	OrderID        string `json:"order_id"`
	Content        string `json:"content"`
	CustomerFacing bool   `json:"customer_facing"`
	Order          Order  `json:"order"`
}

// TrackingEvent is a tracking code registered for an order by a shipment
// tracking integration. CarrierSlug is optional.
type TrackingEvent struct {
	OrderID     string `json:"order_id"`
	Code        string `json:"code"`
	CarrierSlug string `json:"carrier_slug"`
	Order       Order  `json:"order"`
}
