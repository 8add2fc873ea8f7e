package domain

import "time"

const EventOrderCreated = "OrderCreated"

type OrderCreatedItem struct {
	ProductID string `json:"productId"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

type OrderCreated struct {
	OrderID     string             `json:"orderId"`
	CustomerID  string             `json:"customerId"`
	Status      OrderStatus        `json:"status"`
	TotalAmount string             `json:"totalAmount"`
	Items       []OrderCreatedItem `json:"items"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

func NewOrderCreated(o Order) OrderCreated {
	items := make([]OrderCreatedItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, OrderCreatedItem{ProductID: li.ProductID, Price: li.Price.String(), Quantity: li.Quantity})
	}
	return OrderCreated{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount.String(),
		Items:       items,
		OccurredAt:  o.CreatedAt,
	}
}
