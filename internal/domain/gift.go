package domain

import (
	"time"

	"github.com/google/uuid"
)

// Gift statuses. A gift is created pending and moves to collected exactly once,
// via an explicit action by the recipient.
const (
	GiftStatusPending   = "pending"
	GiftStatusCollected = "collected"
)

// Gift is a credit-costing virtual item addressed to a recipient. The debit on
// the sender and the insert of this record happen in one database transaction.
type Gift struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    uuid.UUID  `json:"sender_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Kind        string     `json:"kind"` // gift-type slug, e.g. 'roses', 'champagne'
	Credits     int64      `json:"credits"`
	Message     *string    `json:"message,omitempty"`
	Status      string     `json:"status"`
	CollectedAt *time.Time `json:"collected_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GiftReply is one message in a gift's reply thread. The recipient opens the
// thread; after that, sender and recipient may both reply.
type GiftReply struct {
	ID        uuid.UUID `json:"id"`
	GiftID    uuid.UUID `json:"gift_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// GiftLine is one gift instruction within a send request.
type GiftLine struct {
	Kind    string `json:"kind"`
	Credits int64  `json:"credits"`
}

// SendGiftRequest is the DTO for the gift-send endpoint. All lines share the
// recipient and the optional message.
type SendGiftRequest struct {
	RecipientHandle string     `json:"recipient_handle"`
	Lines           []GiftLine `json:"lines"`
	Message         string     `json:"message"`
}

// GiftLineFailure captures a gift line that could not be delivered and why.
type GiftLineFailure struct {
	Kind    string `json:"kind"`
	Credits int64  `json:"credits"`
	Error   string `json:"error"`
}

// SendGiftResult summarizes a gift batch: lines are independent, so a batch
// may partially succeed.
type SendGiftResult struct {
	Succeeded []*Gift           `json:"succeeded"`
	Failed    []GiftLineFailure `json:"failed"`
}

// TotalCredits returns the combined cost of all lines in the request.
func (r SendGiftRequest) TotalCredits() int64 {
	var total int64
	for _, line := range r.Lines {
		total += line.Credits
	}
	return total
}
