package voting

import (
	"errors"

	"github.com/google/uuid"
	"github.com/powderplan/backend/internal/models"
)

var (
	// ErrVotingClosed rejects cast/update/remove once the group has
	// left the planning and voting states.
	ErrVotingClosed = errors.New("voting is not open for this group")

	// ErrAlreadyClosed rejects a second close.
	ErrAlreadyClosed = errors.New("voting is already closed for this group")

	// ErrNoVotes rejects closing an empty ballot without a manual
	// hotel selection.
	ErrNoVotes = errors.New("no votes found, cannot close voting without any votes")
)

// IsOpen reports whether votes may be cast, changed, or removed.
func IsOpen(status models.GroupStatus) bool {
	return status == models.GroupStatusPlanning || status == models.GroupStatusVoting
}

func EnsureOpen(status models.GroupStatus) error {
	if !IsOpen(status) {
		return ErrVotingClosed
	}
	return nil
}

func EnsureCanClose(status models.GroupStatus) error {
	if !IsOpen(status) {
		return ErrAlreadyClosed
	}
	return nil
}

// Selection is the hotel chosen when voting closes.
type Selection struct {
	HotelID   string      `json:"selected_hotel_id"`
	HotelData models.JSON `json:"selected_hotel_data,omitempty"`
}

// SelectWinner picks the top-ranked hotel by weighted score. The
// manual-override path (explicit selected_hotel_id) never reaches
// this function, so an empty ballot is an error here.
func SelectWinner(votes []models.Vote) (Selection, error) {
	if len(votes) == 0 {
		return Selection{}, ErrNoVotes
	}
	winner := Tally(votes, uuid.Nil).Top()
	return Selection{HotelID: winner.HotelID, HotelData: winner.HotelData}, nil
}
