package model

import (
	"fmt"
	"time"
)

// ApprovalState is the review state of a reservation.
type ApprovalState string

const (
	StatePending  ApprovalState = "pending"
	StateApproved ApprovalState = "approved"
	StateRejected ApprovalState = "rejected"
)

// Resolved reports whether the state is terminal.
func (s ApprovalState) Resolved() bool {
	return s == StateApproved || s == StateRejected
}

// Decision is an administrator's verdict on a pending reservation.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// State returns the approval state a decision leads to.
func (d Decision) State() (ApprovalState, error) {
	switch d {
	case DecisionApprove:
		return StateApproved, nil
	case DecisionReject:
		return StateRejected, nil
	default:
		return "", fmt.Errorf("unknown decision %q", d)
	}
}

// Reservation is a time-slot booking request against a room.
type Reservation struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	OwnerID   uint          `gorm:"index;not null" json:"ownerId"`
	OwnerName string        `gorm:"size:64;not null" json:"ownerName"`
	RoomID    uint          `gorm:"index;not null" json:"roomId"`
	StartAt   time.Time     `gorm:"index;not null" json:"startAt"`
	EndAt     time.Time     `gorm:"index;not null" json:"endAt"`
	Headcount int           `gorm:"not null" json:"headcount"`
	State     ApprovalState `gorm:"type:varchar(16);index;not null;default:'pending'" json:"state"`
	Summary   string        `gorm:"size:256;not null;default:''" json:"summary"`
	Reason    string        `gorm:"size:256;not null;default:''" json:"reason"`
	CreatedAt time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time     `gorm:"not null" json:"updatedAt"`
}

// Window returns the reserved interval.
func (r Reservation) Window() Window {
	return Window{Start: r.StartAt, End: r.EndAt}
}
