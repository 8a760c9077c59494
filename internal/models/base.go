package models

import (
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// Base carries the document ID shared by every stored model.
type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}
