package lifecycle

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

func TestPlace(t *testing.T) {
	tests := []struct {
		name      string
		isAdmin   bool
		requested models.ListingType
		want      Placement
		wantErr   error
	}{
		{"seller listing", false, models.ListingTypeListing,
			Placement{models.StatusPendingApproval, models.SellerTypeUser, models.ListingTypeListing}, nil},
		{"seller instant sell", false, models.ListingTypeInstantSell,
			Placement{models.StatusPendingValuation, models.SellerTypeUser, models.ListingTypeInstantSell}, nil},
		{"admin listing", true, models.ListingTypeListing,
			Placement{models.StatusListed, models.SellerTypeXKey, models.ListingTypeListing}, nil},
		{"admin ignores instant sell", true, models.ListingTypeInstantSell,
			Placement{models.StatusListed, models.SellerTypeXKey, models.ListingTypeListing}, nil},
		{"admin ignores garbage", true, "auction",
			Placement{models.StatusListed, models.SellerTypeXKey, models.ListingTypeListing}, nil},
		{"seller unknown type", false, "auction", Placement{}, ErrInvalidListingType},
		{"seller empty type", false, "", Placement{}, ErrInvalidListingType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Place(tt.isAdmin, tt.requested)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPartyOf(t *testing.T) {
	owner := utils.NewSixID()
	v := &models.Vehicle{Seller: owner}

	p, err := PartyOf(Actor{UserID: owner}, v)
	require.NoError(t, err)
	assert.Equal(t, models.PartySeller, p)

	p, err = PartyOf(Actor{UserID: utils.NewSixID(), IsAdmin: true}, v)
	require.NoError(t, err)
	assert.Equal(t, models.PartyAdmin, p)

	// An admin who owns the vehicle still negotiates as the platform.
	p, err = PartyOf(Actor{UserID: owner, IsAdmin: true}, v)
	require.NoError(t, err)
	assert.Equal(t, models.PartyAdmin, p)

	_, err = PartyOf(Actor{UserID: utils.NewSixID()}, v)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = PartyOf(Actor{}, &models.Vehicle{})
	assert.ErrorIs(t, err, ErrNotOwner, "zero IDs must never match")
}

func TestTurn(t *testing.T) {
	assert.Equal(t, models.Party(""), Turn(nil))
	assert.Equal(t, models.PartySeller, Turn([]models.Offer{{OfferBy: models.PartyAdmin}}))
	assert.Equal(t, models.PartyAdmin, Turn([]models.Offer{{OfferBy: models.PartyAdmin}, {OfferBy: models.PartySeller}}))
}

func TestCheckOffer(t *testing.T) {
	adminOffered := []models.Offer{{OfferBy: models.PartyAdmin, Amount: 480000}}

	tests := []struct {
		name    string
		status  models.VehicleStatus
		history []models.Offer
		party   models.Party
		amount  float64
		wantErr error
	}{
		{"admin values instant sell", models.StatusPendingValuation, nil, models.PartyAdmin, 480000, nil},
		{"seller opens on pending valuation", models.StatusPendingValuation, nil, models.PartySeller, 500000, nil},
		{"admin surprise offer on listed", models.StatusListed, nil, models.PartyAdmin, 1, nil},
		{"seller counters", models.StatusNegotiating, adminOffered, models.PartySeller, 490000, nil},
		{"admin twice in a row", models.StatusNegotiating, adminOffered, models.PartyAdmin, 470000, ErrOutOfTurn},
		{"sold", models.StatusSold, adminOffered, models.PartySeller, 1, ErrNotNegotiable},
		{"rejected", models.StatusRejected, nil, models.PartyAdmin, 1, ErrNotNegotiable},
		{"pending approval", models.StatusPendingApproval, nil, models.PartyAdmin, 1, ErrNotNegotiable},
		{"zero amount", models.StatusNegotiating, adminOffered, models.PartySeller, 0, ErrInvalidAmount},
		{"negative amount", models.StatusNegotiating, adminOffered, models.PartySeller, -5, ErrInvalidAmount},
		{"nan amount", models.StatusNegotiating, adminOffered, models.PartySeller, math.NaN(), ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &models.Vehicle{Status: tt.status, ValuationHistory: tt.history}
			err := CheckOffer(v, tt.party, tt.amount)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckOffer_XKeyVehicleIsNotNegotiable(t *testing.T) {
	v := &models.Vehicle{Status: models.StatusListed, SellerType: models.SellerTypeXKey}
	assert.ErrorIs(t, CheckOffer(v, models.PartyAdmin, 100), ErrNotNegotiable)

	v.SellerType = models.SellerTypeUser
	assert.NoError(t, CheckOffer(v, models.PartyAdmin, 100))
}

func TestCheckAccept(t *testing.T) {
	sellerLast := []models.Offer{
		{OfferBy: models.PartyAdmin, Amount: 480000},
		{OfferBy: models.PartySeller, Amount: 490000},
	}

	offer, err := CheckAccept(&models.Vehicle{Status: models.StatusNegotiating, ValuationHistory: sellerLast}, models.PartyAdmin)
	require.NoError(t, err)
	assert.Equal(t, 490000.0, offer.Amount)

	_, err = CheckAccept(&models.Vehicle{Status: models.StatusNegotiating, ValuationHistory: sellerLast}, models.PartySeller)
	assert.ErrorIs(t, err, ErrOwnOffer)

	_, err = CheckAccept(&models.Vehicle{Status: models.StatusNegotiating}, models.PartyAdmin)
	assert.ErrorIs(t, err, ErrNoOffer)

	_, err = CheckAccept(&models.Vehicle{Status: models.StatusSold, ValuationHistory: sellerLast}, models.PartyAdmin)
	assert.ErrorIs(t, err, ErrNotNegotiating)

	_, err = CheckAccept(&models.Vehicle{Status: models.StatusListed}, models.PartySeller)
	assert.ErrorIs(t, err, ErrNotNegotiating)
}

func TestCheckReview(t *testing.T) {
	for _, s := range []models.VehicleStatus{
		models.StatusListed, models.StatusRejected, models.StatusPendingValuation,
		models.StatusNegotiating, models.StatusSold,
	} {
		err := CheckReview(&models.Vehicle{Status: s})
		assert.ErrorIs(t, err, apperr.ErrNotFound, string(s))
	}
	assert.NoError(t, CheckReview(&models.Vehicle{Status: models.StatusPendingApproval}))
}

func TestCheckDelete(t *testing.T) {
	owner := utils.NewSixID()
	v := &models.Vehicle{Seller: owner}
	assert.NoError(t, CheckDelete(Actor{UserID: owner}, v))
	assert.NoError(t, CheckDelete(Actor{UserID: utils.NewSixID(), IsAdmin: true}, v))
	assert.ErrorIs(t, CheckDelete(Actor{UserID: utils.NewSixID()}, v), apperr.ErrAuthorization)
}

// Any interleaving of offer attempts that passes the guard keeps the ledger alternating.
func TestOfferSequencesAlternate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	parties := []models.Party{models.PartyAdmin, models.PartySeller}

	for run := 0; run < 200; run++ {
		v := &models.Vehicle{Status: models.StatusPendingValuation}
		for step := 0; step < 30; step++ {
			party := parties[rng.Intn(2)]
			if err := CheckOffer(v, party, float64(1000+rng.Intn(1000))); err != nil {
				assert.ErrorIs(t, err, ErrOutOfTurn)
				continue
			}
			v.ValuationHistory = append(v.ValuationHistory, models.Offer{OfferBy: party, Timestamp: time.Now()})
			v.Status = models.StatusNegotiating
		}
		for i := 1; i < len(v.ValuationHistory); i++ {
			require.NotEqual(t, v.ValuationHistory[i-1].OfferBy, v.ValuationHistory[i].OfferBy)
		}
	}
}

func TestNegotiationScenario(t *testing.T) {
	v := &models.Vehicle{Status: models.StatusPendingValuation, SellingPrice: 500000}

	offer := func(p models.Party, amount float64) {
		require.NoError(t, CheckOffer(v, p, amount))
		v.ValuationHistory = append(v.ValuationHistory, models.Offer{OfferBy: p, Amount: amount})
		v.Status = models.StatusNegotiating
	}
	offer(models.PartyAdmin, 480000)
	offer(models.PartySeller, 490000)

	accepted, err := CheckAccept(v, models.PartyAdmin)
	require.NoError(t, err)
	v.Status, v.SellingPrice = models.StatusSold, accepted.Amount

	assert.Equal(t, models.StatusSold, v.Status)
	assert.Equal(t, 490000.0, v.SellingPrice)
	assert.Len(t, v.ValuationHistory, 2)
}
