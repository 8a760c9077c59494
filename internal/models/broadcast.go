package models

import (
	"time"

	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// Broadcast is a site-wide banner. At most one is active at a time.
type Broadcast struct {
	Base      `bson:",inline"`
	Message   string      `bson:"message" json:"message"`
	Link      string      `bson:"link,omitempty" json:"link,omitempty"`
	IsActive  bool        `bson:"is_active" json:"isActive"`
	CreatedBy utils.SixID `bson:"created_by" json:"createdBy"`
	CreatedAt time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updatedAt"`
}
