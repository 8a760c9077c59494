package models

import (
	"time"

	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// LeadStatus tracks how far an admin got with a callback request.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusAccepted  LeadStatus = "accepted"
	LeadStatusDeclined  LeadStatus = "declined"
)

// Valid reports whether s is one of the four known statuses.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusAccepted, LeadStatusDeclined:
		return true
	}
	return false
}

// Lead is a buyer's callback request for a vehicle.
type Lead struct {
	Base        `bson:",inline"`
	Vehicle     utils.SixID  `bson:"vehicle" json:"vehicle"`
	PhoneNumber string       `bson:"phone_number" json:"phoneNumber"`
	Status      LeadStatus   `bson:"status" json:"status"`
	HandledBy   *utils.SixID `bson:"handled_by,omitempty" json:"handledBy,omitempty"`
	AdminNotes  string       `bson:"admin_notes,omitempty" json:"adminNotes,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `bson:"updated_at" json:"updatedAt"`
}

// LeadView is a lead joined with the display name of its vehicle for the admin table.
type LeadView struct {
	Lead        `bson:",inline"`
	VehicleName string `bson:"-" json:"vehicleName"`
}
