// Package voting computes hotel vote tallies and enforces the voting
// lifecycle. Everything here is pure: handlers load vote rows, this
// package aggregates them, and the same code answers both the results
// endpoint and winner selection on close.
package voting

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/powderplan/backend/internal/models"
)

type Voter struct {
	ID        uuid.UUID         `json:"id"`
	FullName  string            `json:"full_name"`
	AvatarURL *string           `json:"avatar_url,omitempty"`
	Weight    models.VoteWeight `json:"weight"`
}

type WeightTier struct {
	Weight     models.VoteWeight `json:"weight"`
	Upvotes    int               `json:"upvotes"`
	Downvotes  int               `json:"downvotes"`
	NetScore   int               `json:"net_score"`
	TotalVotes int               `json:"total_votes"`
}

// UserVote is one of the viewer's own votes on a hotel, returned so
// clients can mark which weight buttons are active.
type UserVote struct {
	ID        uuid.UUID         `json:"id"`
	IsUpvote  bool              `json:"is_upvote"`
	Weight    models.VoteWeight `json:"weight"`
	CreatedAt time.Time         `json:"created_at"`
}

type VoterLists struct {
	Upvoters   []Voter `json:"upvoters"`
	Downvoters []Voter `json:"downvoters"`
}

// HotelSummary is the per-hotel aggregate. NetScore is the plain
// upvote/downvote difference shown in the UI; WeightedScore is the
// ranking metric: the sum over weight tiers of net_score times the
// tier's multiplier.
type HotelSummary struct {
	HotelID          string       `json:"hotel_id"`
	HotelName        string       `json:"hotel_name"`
	HotelData        models.JSON  `json:"hotel_data,omitempty"`
	Upvotes          int          `json:"upvotes"`
	Downvotes        int          `json:"downvotes"`
	NetScore         int          `json:"net_score"`
	WeightedScore    int          `json:"weighted_score"`
	TotalVotes       int          `json:"total_votes"`
	UpvotePercentage float64      `json:"upvote_percentage"`
	Breakdown        []WeightTier `json:"vote_breakdown"`
	Voters           VoterLists   `json:"voters"`
	UserVotes        []UserVote   `json:"user_votes"`

	firstVoteAt time.Time
}

// Results is the full tally over a group's vote set. Hotels are sorted
// by weighted score descending; ties break to the hotel whose earliest
// vote was cast first, then to the smaller hotel id.
type Results struct {
	Hotels      []HotelSummary `json:"hotels"`
	TotalVotes  int            `json:"total_votes"`
	TotalVoters int            `json:"total_voters"`
}

var weights = []models.VoteWeight{models.WeightLow, models.WeightMedium, models.WeightHigh}

// Tally aggregates votes per hotel. viewerID selects which votes land
// in each hotel's user_votes list; pass uuid.Nil for no viewer.
func Tally(votes []models.Vote, viewerID uuid.UUID) Results {
	byHotel := make(map[string]*HotelSummary)
	order := make([]string, 0)
	voters := make(map[uuid.UUID]struct{})

	for _, vote := range votes {
		voters[vote.UserID] = struct{}{}

		summary, ok := byHotel[vote.HotelID]
		if !ok {
			summary = &HotelSummary{
				HotelID:     vote.HotelID,
				HotelName:   vote.HotelName,
				HotelData:   vote.HotelData,
				Breakdown:   newBreakdown(),
				Voters:      VoterLists{Upvoters: []Voter{}, Downvoters: []Voter{}},
				UserVotes:   []UserVote{},
				firstVoteAt: vote.CreatedAt,
			}
			byHotel[vote.HotelID] = summary
			order = append(order, vote.HotelID)
		}
		if vote.CreatedAt.Before(summary.firstVoteAt) {
			summary.firstVoteAt = vote.CreatedAt
		}

		voter := Voter{
			ID:        vote.UserID,
			FullName:  vote.User.FullName,
			AvatarURL: vote.User.AvatarURL,
			Weight:    vote.Weight,
		}

		tier := &summary.Breakdown[vote.Weight.Value()-1]
		if vote.IsUpvote {
			summary.Upvotes++
			tier.Upvotes++
			summary.Voters.Upvoters = append(summary.Voters.Upvoters, voter)
		} else {
			summary.Downvotes++
			tier.Downvotes++
			summary.Voters.Downvoters = append(summary.Voters.Downvoters, voter)
		}
		tier.TotalVotes++
		tier.NetScore = tier.Upvotes - tier.Downvotes

		if viewerID != uuid.Nil && vote.UserID == viewerID {
			summary.UserVotes = append(summary.UserVotes, UserVote{
				ID:        vote.ID,
				IsUpvote:  vote.IsUpvote,
				Weight:    vote.Weight,
				CreatedAt: vote.CreatedAt,
			})
		}
	}

	hotels := make([]HotelSummary, 0, len(order))
	for _, hotelID := range order {
		summary := byHotel[hotelID]
		summary.TotalVotes = summary.Upvotes + summary.Downvotes
		summary.NetScore = summary.Upvotes - summary.Downvotes
		summary.WeightedScore = 0
		for _, tier := range summary.Breakdown {
			summary.WeightedScore += tier.NetScore * tier.Weight.Value()
		}
		if summary.TotalVotes > 0 {
			summary.UpvotePercentage = float64(summary.Upvotes) / float64(summary.TotalVotes) * 100
		}
		hotels = append(hotels, *summary)
	}

	sort.SliceStable(hotels, func(i, j int) bool {
		a, b := hotels[i], hotels[j]
		if a.WeightedScore != b.WeightedScore {
			return a.WeightedScore > b.WeightedScore
		}
		if !a.firstVoteAt.Equal(b.firstVoteAt) {
			return a.firstVoteAt.Before(b.firstVoteAt)
		}
		return a.HotelID < b.HotelID
	})

	return Results{
		Hotels:      hotels,
		TotalVotes:  len(votes),
		TotalVoters: len(voters),
	}
}

// Top returns the highest-ranked hotel, or nil for an empty tally.
func (r Results) Top() *HotelSummary {
	if len(r.Hotels) == 0 {
		return nil
	}
	return &r.Hotels[0]
}

func newBreakdown() []WeightTier {
	tiers := make([]WeightTier, len(weights))
	for i, w := range weights {
		tiers[i] = WeightTier{Weight: w}
	}
	return tiers
}
