package voting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/powderplan/backend/internal/models"
)

func vote(user uuid.UUID, hotel string, up bool, weight models.VoteWeight, at time.Time) models.Vote {
	v := models.Vote{
		UserID:    user,
		HotelID:   hotel,
		HotelName: "Hotel " + hotel,
		IsUpvote:  up,
		Weight:    weight,
	}
	v.ID = uuid.New()
	v.CreatedAt = at
	return v
}

func TestTallyEmpty(t *testing.T) {
	results := Tally(nil, uuid.Nil)
	if len(results.Hotels) != 0 {
		t.Fatalf("expected no hotels, got %d", len(results.Hotels))
	}
	if results.TotalVoters != 0 || results.TotalVotes != 0 {
		t.Fatalf("expected zero totals, got voters=%d votes=%d", results.TotalVoters, results.TotalVotes)
	}
	if results.Top() != nil {
		t.Fatal("expected no top hotel for empty tally")
	}
}

func TestTallyCountsAndScores(t *testing.T) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	votes := []models.Vote{
		vote(alice, "A", true, models.WeightHigh, base),
		vote(bob, "A", true, models.WeightLow, base.Add(time.Minute)),
		vote(carol, "A", false, models.WeightMedium, base.Add(2*time.Minute)),
		vote(alice, "B", false, models.WeightLow, base.Add(3*time.Minute)),
	}

	results := Tally(votes, uuid.Nil)

	if results.TotalVotes != 4 {
		t.Fatalf("expected 4 total votes, got %d", results.TotalVotes)
	}
	if results.TotalVoters != 3 {
		t.Fatalf("expected 3 distinct voters, got %d", results.TotalVoters)
	}

	sum := 0
	for _, h := range results.Hotels {
		sum += h.TotalVotes
	}
	if sum != len(votes) {
		t.Fatalf("hotel total_votes should sum to vote count: got %d want %d", sum, len(votes))
	}

	a := results.Hotels[0]
	if a.HotelID != "A" {
		t.Fatalf("expected hotel A ranked first, got %s", a.HotelID)
	}
	if a.Upvotes != 2 || a.Downvotes != 1 {
		t.Fatalf("hotel A counts wrong: up=%d down=%d", a.Upvotes, a.Downvotes)
	}
	if a.NetScore != 1 {
		t.Fatalf("hotel A net_score: got %d want 1", a.NetScore)
	}
	// weighted: +3 (high up) +1 (low up) -2 (medium down) = 2
	if a.WeightedScore != 2 {
		t.Fatalf("hotel A weighted_score: got %d want 2", a.WeightedScore)
	}
	if a.NetScore == a.WeightedScore {
		t.Fatal("weighted score must diverge from net score under mixed weights")
	}

	// weighted_score must equal the breakdown-derived sum
	derived := 0
	for _, tier := range a.Breakdown {
		derived += tier.NetScore * tier.Weight.Value()
	}
	if derived != a.WeightedScore {
		t.Fatalf("breakdown-derived score %d != weighted_score %d", derived, a.WeightedScore)
	}

	if got := a.UpvotePercentage; got < 66.6 || got > 66.7 {
		t.Fatalf("hotel A upvote_percentage: got %f", got)
	}
	if len(a.Voters.Upvoters) != 2 || len(a.Voters.Downvoters) != 1 {
		t.Fatalf("hotel A voter lists wrong: up=%d down=%d", len(a.Voters.Upvoters), len(a.Voters.Downvoters))
	}
}

func TestTallyBreakdownTiers(t *testing.T) {
	base := time.Now().UTC()
	u := uuid.New()
	votes := []models.Vote{
		vote(u, "A", true, models.WeightMedium, base),
		vote(uuid.New(), "A", false, models.WeightMedium, base.Add(time.Second)),
		vote(uuid.New(), "A", true, models.WeightHigh, base.Add(2*time.Second)),
	}

	a := Tally(votes, uuid.Nil).Hotels[0]
	if len(a.Breakdown) != 3 {
		t.Fatalf("expected 3 weight tiers, got %d", len(a.Breakdown))
	}
	medium := a.Breakdown[1]
	if medium.Weight != models.WeightMedium || medium.Upvotes != 1 || medium.Downvotes != 1 || medium.NetScore != 0 || medium.TotalVotes != 2 {
		t.Fatalf("medium tier wrong: %+v", medium)
	}
	high := a.Breakdown[2]
	if high.Upvotes != 1 || high.NetScore != 1 {
		t.Fatalf("high tier wrong: %+v", high)
	}
	if a.WeightedScore != 3 {
		t.Fatalf("weighted_score: got %d want 3", a.WeightedScore)
	}
}

func TestTallyTieBreakByEarliestVote(t *testing.T) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	// A: up w3 + up w1 = 4. B: up w2 + up w2 = 4. B's first vote is
	// earlier, so B ranks first despite the later insertion of its
	// second vote.
	votes := []models.Vote{
		vote(uuid.New(), "B", true, models.WeightMedium, base),
		vote(uuid.New(), "A", true, models.WeightHigh, base.Add(time.Minute)),
		vote(uuid.New(), "A", true, models.WeightLow, base.Add(2*time.Minute)),
		vote(uuid.New(), "B", true, models.WeightMedium, base.Add(3*time.Minute)),
	}

	results := Tally(votes, uuid.Nil)
	if results.Hotels[0].WeightedScore != 4 || results.Hotels[1].WeightedScore != 4 {
		t.Fatalf("expected a 4-4 tie, got %d and %d", results.Hotels[0].WeightedScore, results.Hotels[1].WeightedScore)
	}
	if results.Hotels[0].HotelID != "B" {
		t.Fatalf("tie should break to earliest-voted hotel B, got %s", results.Hotels[0].HotelID)
	}

	// Same timestamps: fall through to hotel id ordering.
	same := []models.Vote{
		vote(uuid.New(), "Z", true, models.WeightLow, base),
		vote(uuid.New(), "A", true, models.WeightLow, base),
	}
	if got := Tally(same, uuid.Nil).Hotels[0].HotelID; got != "A" {
		t.Fatalf("equal-time tie should break to smaller hotel id, got %s", got)
	}
}

func TestTallyViewerVotes(t *testing.T) {
	base := time.Now().UTC()
	viewer := uuid.New()
	votes := []models.Vote{
		vote(viewer, "A", true, models.WeightMedium, base),
		vote(uuid.New(), "A", true, models.WeightLow, base.Add(time.Second)),
	}

	a := Tally(votes, viewer).Hotels[0]
	if len(a.UserVotes) != 1 {
		t.Fatalf("expected 1 viewer vote, got %d", len(a.UserVotes))
	}
	if a.UserVotes[0].Weight != models.WeightMedium || !a.UserVotes[0].IsUpvote {
		t.Fatalf("viewer vote wrong: %+v", a.UserVotes[0])
	}

	anon := Tally(votes, uuid.Nil).Hotels[0]
	if len(anon.UserVotes) != 0 {
		t.Fatalf("expected no user_votes without a viewer, got %d", len(anon.UserVotes))
	}
}

func TestSelectWinner(t *testing.T) {
	base := time.Now().UTC()

	if _, err := SelectWinner(nil); err != ErrNoVotes {
		t.Fatalf("expected ErrNoVotes for empty ballot, got %v", err)
	}

	votes := []models.Vote{
		vote(uuid.New(), "A", true, models.WeightLow, base),
		vote(uuid.New(), "B", true, models.WeightHigh, base.Add(time.Second)),
	}
	selection, err := SelectWinner(votes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selection.HotelID != "B" {
		t.Fatalf("winner should be B (weighted 3 > 1), got %s", selection.HotelID)
	}
}

func TestLifecycleGates(t *testing.T) {
	open := []models.GroupStatus{models.GroupStatusPlanning, models.GroupStatusVoting}
	closed := []models.GroupStatus{
		models.GroupStatusVotingClosed,
		models.GroupStatusBooked,
		models.GroupStatusCompleted,
		models.GroupStatusCancelled,
	}

	for _, status := range open {
		if err := EnsureOpen(status); err != nil {
			t.Fatalf("EnsureOpen(%s): unexpected %v", status, err)
		}
		if err := EnsureCanClose(status); err != nil {
			t.Fatalf("EnsureCanClose(%s): unexpected %v", status, err)
		}
	}
	for _, status := range closed {
		if err := EnsureOpen(status); err != ErrVotingClosed {
			t.Fatalf("EnsureOpen(%s): got %v want ErrVotingClosed", status, err)
		}
		if err := EnsureCanClose(status); err != ErrAlreadyClosed {
			t.Fatalf("EnsureCanClose(%s): got %v want ErrAlreadyClosed", status, err)
		}
	}
}
