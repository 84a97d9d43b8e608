package shared

// OrderForm is the decoded body of POST /order.
type OrderForm struct {
	Name     string
	Address  string
	PizzaIDs []int64 // submission order, duplicates allowed
}

// ReceiptLine is one pizza on a receipt, aggregated by pizza id.
type ReceiptLine struct {
	PizzaID     int64
	Description string
	Count       int64
	Price       float64
}

type ReceiptData struct {
	Address   string
	Name      string
	Timestamp string
	Lines     []ReceiptLine
}

// ReceiptDocument is the JSON shape of GET /receipt. Field order is part of
// the wire contract and every scalar is encoded as a string.
type ReceiptDocument struct {
	Address    string            `json:"address"`
	Name       string            `json:"name"`
	Timestamp  string            `json:"timestamp"`
	OrderItems []ReceiptItemJSON `json:"order_items"`
}

type ReceiptItemJSON struct {
	ID          string `json:"id"`
	Price       string `json:"price"`
	Count       string `json:"count"`
	Description string `json:"description"`
}

// Form field names accepted by POST /order.
const (
	FormName    = "name"
	FormAddress = "address"
	FormPizzaID = "pizza_id"
)

const (
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeJWT  = "application/jwt"
	ContentTypeJSON = "application/json"
)
