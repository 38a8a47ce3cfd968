package domain

import "time"

// Money is an amount in whole Vietnamese đồng.
type Money int64

// LineItem is the sub-order snapshot every settlement is derived from.
type LineItem struct {
	SubOrderID      string    `json:"sub_order_id"`
	ProductIndex    int       `json:"product_index"`
	ProductName     string    `json:"product_name,omitempty"`
	RenterID        string    `json:"renter_id"`
	OwnerID         string    `json:"owner_id"`
	Deposit         Money     `json:"deposit"`
	RentalTotal     Money     `json:"rental_total"`
	ShippingFee     Money     `json:"shipping_fee"`
	RentalStartDate time.Time `json:"rental_start_date"`
	RentalEndDate   time.Time `json:"rental_end_date"`
}

// RoleOf returns the role userID holds on the rental line.
func (l LineItem) RoleOf(userID string) (PartyRole, bool) {
	switch {
	case userID == "":
		return "", false
	case userID == l.RenterID:
		return PartyRoleRenter, true
	case userID == l.OwnerID:
		return PartyRoleOwner, true
	default:
		return "", false
	}
}
