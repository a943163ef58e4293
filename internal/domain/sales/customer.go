package sales

// Customer id sentinel values. A zero id marks an anonymous buyer the
// platform did not identify; a negative id marks a buyer whose local lookup
// failed during sync. Positive ids reference resolved local customers.
const (
	// CustomerAnonymousID marks a buyer without any identifying data.
	CustomerAnonymousID int64 = 0
	// CustomerLookupFailedID marks a buyer whose resolution errored.
	CustomerLookupFailedID int64 = -1
)

// CustomerStatus represents the account state of a customer.
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
	CustomerStatusBlocked  CustomerStatus = "blocked"
)

// IsValid returns true if the status is a known customer status.
func (s CustomerStatus) IsValid() bool {
	switch s {
	case CustomerStatusActive, CustomerStatusInactive, CustomerStatusBlocked:
		return true
	default:
		return false
	}
}

// CustomerTier represents the pricing/loyalty tier of a customer.
type CustomerTier string

const (
	CustomerTierStandard  CustomerTier = "standard"
	CustomerTierWholesale CustomerTier = "wholesale"
	CustomerTierVIP       CustomerTier = "vip"
)

// Customer is a buyer reference owned by a Sale. The same customer value is
// shared and cached across sales for the same buyer.
type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`

	Status CustomerStatus `json:"status,omitempty"`
	Tier   CustomerTier   `json:"tier,omitempty"`
	// Source records where the customer record originated, e.g. a
	// marketplace platform code or "console".
	Source string `json:"source,omitempty"`
}

// IsPlaceholder returns true when the customer is not a resolved local
// record (anonymous or lookup-error placeholder).
func (c Customer) IsPlaceholder() bool {
	return c.ID <= 0
}

// IsResolved returns true when the customer references a local record.
func (c Customer) IsResolved() bool {
	return c.ID > 0
}
