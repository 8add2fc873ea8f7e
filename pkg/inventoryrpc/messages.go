package inventoryrpc

// Prices travel as decimal strings so no precision is lost on the wire.

type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

type GetProductRequest struct {
	ID string `json:"id"`
}

type ListProductsRequest struct{}

type ListProductsResponse struct {
	Products []Product `json:"products"`
}

type StockRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type StockResponse struct{}
