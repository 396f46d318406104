package model

import "time"

// Reward is a catalog item redeemable for Points.
type Reward struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int64     `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserReward records one redemption.  At most one exists per
// (UserID, RewardID) pair.
type UserReward struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	RewardID  uint64    `json:"reward_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// LedgerReason names why a balance changed.
type LedgerReason string

const (
	ReasonCardClosed     LedgerReason = "card_closed"
	ReasonRewardRedeemed LedgerReason = "reward_redeemed"
)

// PointTransaction is one signed balance change.  For every user,
// users.points equals the sum of Delta over their transactions.
type PointTransaction struct {
	ID          uint64       `json:"id"`
	UserID      uint64       `json:"user_id"`
	Delta       int64        `json:"delta"`
	Reason      LedgerReason `json:"reason"`
	ReferenceID uint64       `json:"reference_id"`
	CreatedAt   time.Time    `json:"created_at"`
}
