// Package lifecycle holds the vehicle state machine as pure functions over a
// vehicle snapshot. Callers persist the result with a conditional update so that a
// decision made here is only applied to the exact snapshot it was made on.
package lifecycle

import (
	"math"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID  utils.SixID
	IsAdmin bool
}

// Placement is where a newly submitted vehicle starts.
type Placement struct {
	Status      models.VehicleStatus
	SellerType  models.SellerType
	ListingType models.ListingType
}

var (
	ErrInvalidListingType = apperr.Validation("INVALID_LISTING_TYPE", "listingType must be 'listing' or 'instant_sell'")
	ErrInvalidAmount      = apperr.Validation("INVALID_AMOUNT", "offer amount must be a positive number")
	ErrNotOwner           = apperr.Authorization("NOT_VEHICLE_OWNER", "only the seller of this vehicle or an admin may do this")
	ErrNotNegotiable      = apperr.Conflict("NOT_NEGOTIABLE", "offers cannot be made on this vehicle in its current state")
	ErrOutOfTurn          = apperr.Conflict("OUT_OF_TURN", "you made the last offer; wait for a counter offer")
	ErrNotNegotiating     = apperr.Conflict("NOT_NEGOTIATING", "vehicle is not under negotiation")
	ErrNoOffer            = apperr.Conflict("NO_OFFER", "there is no offer to accept")
	ErrOwnOffer           = apperr.Conflict("OWN_OFFER", "you cannot accept your own offer")
	ErrNotPendingApproval = apperr.NotFound("VEHICLE_NOT_PENDING", "vehicle not found or not pending approval")
)

// Place decides the initial state. Admin submissions are trusted platform stock and
// skip review whatever listing type was sent.
func Place(isAdmin bool, requested models.ListingType) (Placement, error) {
	if isAdmin {
		return Placement{
			Status:      models.StatusListed,
			SellerType:  models.SellerTypeXKey,
			ListingType: models.ListingTypeListing,
		}, nil
	}
	switch requested {
	case models.ListingTypeListing:
		return Placement{models.StatusPendingApproval, models.SellerTypeUser, models.ListingTypeListing}, nil
	case models.ListingTypeInstantSell:
		return Placement{models.StatusPendingValuation, models.SellerTypeUser, models.ListingTypeInstantSell}, nil
	default:
		return Placement{}, ErrInvalidListingType
	}
}

// PartyOf returns the side the actor negotiates for. Admins always speak for the
// platform, even on vehicles they submitted themselves.
func PartyOf(actor Actor, v *models.Vehicle) (models.Party, error) {
	if actor.IsAdmin {
		return models.PartyAdmin, nil
	}
	if !actor.UserID.IsZero() && actor.UserID == v.Seller {
		return models.PartySeller, nil
	}
	return "", ErrNotOwner
}

// Turn returns the party expected to respond next, derived from the last offer.
// An empty result means no offer exists yet and either side may open.
func Turn(history []models.Offer) models.Party {
	if len(history) == 0 {
		return ""
	}
	return Opposite(history[len(history)-1].OfferBy)
}

// Opposite returns the other negotiating party.
func Opposite(p models.Party) models.Party {
	if p == models.PartyAdmin {
		return models.PartySeller
	}
	return models.PartyAdmin
}

// CheckOffer validates that party may append an offer of amount to v.
func CheckOffer(v *models.Vehicle, party models.Party, amount float64) error {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	// xKey vehicles have no seller on the other side of the table.
	if v.SellerType == models.SellerTypeXKey {
		return ErrNotNegotiable
	}
	switch v.Status {
	case models.StatusListed, models.StatusNegotiating, models.StatusPendingValuation:
	default:
		return ErrNotNegotiable
	}
	if turn := Turn(v.ValuationHistory); turn != "" && turn != party {
		return ErrOutOfTurn
	}
	return nil
}

// CheckAccept validates that party may accept the outstanding offer and returns it.
func CheckAccept(v *models.Vehicle, party models.Party) (models.Offer, error) {
	if v.Status != models.StatusNegotiating {
		return models.Offer{}, ErrNotNegotiating
	}
	last := v.LastOffer()
	if last == nil {
		return models.Offer{}, ErrNoOffer
	}
	if last.OfferBy == party {
		return models.Offer{}, ErrOwnOffer
	}
	return *last, nil
}

// CheckReview guards approve and reject. A vehicle that already left review is
// reported as not found so that a second approval cannot succeed.
func CheckReview(v *models.Vehicle) error {
	if v.Status != models.StatusPendingApproval {
		return ErrNotPendingApproval
	}
	return nil
}

// CheckDelete allows admins always and sellers only on their own vehicles.
func CheckDelete(actor Actor, v *models.Vehicle) error {
	_, err := PartyOf(actor, v)
	return err
}
