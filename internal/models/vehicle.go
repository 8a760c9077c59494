package models

import (
	"time"

	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// VehicleStatus is the lifecycle state of a vehicle.
type VehicleStatus string

const (
	StatusPendingApproval  VehicleStatus = "pending_approval"
	StatusListed           VehicleStatus = "listed"
	StatusRejected         VehicleStatus = "rejected"
	StatusPendingValuation VehicleStatus = "pending_valuation"
	StatusNegotiating      VehicleStatus = "negotiating"
	StatusSold             VehicleStatus = "sold"
)

// ListingType is chosen by the seller at creation and never changes.
type ListingType string

const (
	ListingTypeListing     ListingType = "listing"
	ListingTypeInstantSell ListingType = "instant_sell"
)

// SellerType distinguishes platform stock from user submissions.
type SellerType string

const (
	SellerTypeXKey SellerType = "xKey"
	SellerTypeUser SellerType = "user"
)

// Party is a side of a negotiation.
type Party string

const (
	PartySeller Party = "seller"
	PartyAdmin  Party = "admin"
)

// Offer is one entry of the valuation ledger. Entries are never modified once appended.
type Offer struct {
	OfferBy   Party     `bson:"offer_by" json:"offerBy"`
	Amount    float64   `bson:"amount" json:"amount"`
	Message   string    `bson:"message,omitempty" json:"message,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// VehicleSpecs are free-text attributes shown on the listing page.
type VehicleSpecs struct {
	Age             string `bson:"age,omitempty" json:"age,omitempty"`
	Condition       string `bson:"condition,omitempty" json:"condition,omitempty"`
	TyreCondition   string `bson:"tyre_condition,omitempty" json:"tyreCondition,omitempty"`
	KmsDriven       string `bson:"kms_driven,omitempty" json:"kmsDriven,omitempty"`
	Engine          string `bson:"engine,omitempty" json:"engine,omitempty"`
	Transmission    string `bson:"transmission,omitempty" json:"transmission,omitempty"`
	FuelType        string `bson:"fuel_type,omitempty" json:"fuelType,omitempty"`
	SeatingCapacity string `bson:"seating_capacity,omitempty" json:"seatingCapacity,omitempty"`
}

// Vehicle is the central marketplace record.
type Vehicle struct {
	Base             `bson:",inline"`
	Name             string        `bson:"name" json:"name"`
	Category         string        `bson:"category,omitempty" json:"category,omitempty"`
	Specs            VehicleSpecs  `bson:"specs" json:"specs"`
	LongDescription  string        `bson:"long_description" json:"longDescription"`
	Pros             []string      `bson:"pros" json:"pros"`
	Cons             []string      `bson:"cons" json:"cons"`
	Thumbnail        string        `bson:"thumbnail" json:"thumbnail"`
	Gallery          []string      `bson:"gallery" json:"gallery"`
	OriginalPrice    *float64      `bson:"original_price,omitempty" json:"originalPrice,omitempty"`
	ExShowroomPrice  *float64      `bson:"ex_showroom_price,omitempty" json:"exShowroomPrice,omitempty"`
	SellingPrice     float64       `bson:"selling_price" json:"sellingPrice"`
	Seller           utils.SixID   `bson:"seller" json:"seller"`
	SellerType       SellerType    `bson:"seller_type" json:"sellerType"`
	ListingType      ListingType   `bson:"listing_type" json:"listingType"`
	Status           VehicleStatus `bson:"status" json:"status"`
	RejectionReason  string        `bson:"rejection_reason,omitempty" json:"rejectionReason,omitempty"`
	ValuationHistory []Offer       `bson:"valuation_history" json:"valuationHistory"`
	CreatedAt        time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updatedAt"`
}

// LastOffer returns the most recent ledger entry, or nil when no offer was made.
func (v *Vehicle) LastOffer() *Offer {
	if len(v.ValuationHistory) == 0 {
		return nil
	}
	return &v.ValuationHistory[len(v.ValuationHistory)-1]
}
