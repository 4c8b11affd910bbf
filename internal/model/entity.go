package model

// Classification places a message in the taxonomy.
type Classification struct {
	Coordinate []string `json:"coordinate" jsonschema:"taxonomy path from root to leaf"`
	Strength   float64  `json:"strength" jsonschema:"confidence between 0 and 1"`
	Reason     string   `json:"reason" jsonschema:"why the message belongs at this coordinate"`
}

// Event is a dated occurrence mentioned in a message.
type Event struct {
	Name        string `json:"name"`
	Date        string `json:"date" jsonschema:"date of the event, YYYY-MM-DD when known"`
	Time        string `json:"time"`
	EventType   string `json:"eventType"`
	DateType    string `json:"dateType"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Reason      string `json:"reason"`
}

// Person is someone referenced by a message.
type Person struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Transaction is a payment, order or receipt line found in a message.
type Transaction struct {
	Date                 string  `json:"date"`
	Amount               float64 `json:"amount"`
	Description          string  `json:"description"`
	Type                 string  `json:"type"`
	Category             string  `json:"category"`
	Status               string  `json:"status"`
	DueDate              string  `json:"due_date"`
	MerchantOrganization string  `json:"merchant_organization"`
	MerchantType         string  `json:"merchant_type"`
	Reason               string  `json:"reason"`
}

// Bill is an amount owed to a provider.
type Bill struct {
	Provider    string  `json:"provider"`
	Kind        string  `json:"kind"`
	AmountDue   float64 `json:"amount_due"`
	DueDate     string  `json:"due_date" jsonschema:"YYYY-MM-DD"`
	Period      string  `json:"period"`
	Status      string  `json:"status"`
	Description string  `json:"description"`
	Reason      string  `json:"reason"`
}

// Allowed enum values, used when generating response schemas.
var (
	EventTypes        = []string{"appointment", "deadline", "meeting", "other"}
	EventDateTypes    = []string{"exact", "approximate", "range"}
	PersonCategories  = []string{"family", "friend", "work", "project", "other"}
	TransactionTypes  = []string{"deposit", "withdrawal", "order", "receipt", "transfer", "other"}
	TransactionCats   = []string{"food", "transportation", "housing", "utilities", "entertainment", "education", "loan", "credit", "other"}
	TransactionStatus = []string{"pending", "completed", "failed", "due", "paid", "overdue", "other"}
	MerchantTypes     = []string{"bank", "delivery_service", "transportation", "housing", "utilities", "entertainment", "education", "loan", "credit", "other"}
	BillKinds         = []string{"utility", "insurance", "loan", "rent", "subscription", "other"}
	BillStatus        = []string{"due", "paid", "overdue", "other"}
)
