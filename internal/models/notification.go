package models

import (
	"time"

	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// Notification is a message in one user's inbox. Only IsRead ever changes.
type Notification struct {
	Base      `bson:",inline"`
	User      utils.SixID `bson:"user" json:"user"`
	Message   string      `bson:"message" json:"message"`
	Link      string      `bson:"link,omitempty" json:"link,omitempty"`
	IsRead    bool        `bson:"is_read" json:"isRead"`
	CreatedAt time.Time   `bson:"created_at" json:"createdAt"`
}
