package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandings_TieBreaksOnCumulativeTime(t *testing.T) {
	s := NewStandings()
	q := choiceQuestion(1)
	for _, id := range []string{"c", "b", "a"} {
		s.Track(id)
	}

	s.Apply(q, []Answer{
		{PlayerID: "a", LatencyMs: 4000, Points: 500, IsCorrect: true},
		{PlayerID: "b", LatencyMs: 1000, Points: 500, IsCorrect: true},
	})

	board := s.Leaderboard(map[string]string{"a": "Alex", "b": "Blair", "c": "Casey"})
	require.Len(t, board, 3)
	assert.Equal(t, "b", board[0].PlayerID, "same score, faster cumulative time wins")
	assert.Equal(t, "a", board[1].PlayerID)
	assert.Equal(t, "c", board[2].PlayerID)
	assert.Equal(t, "Casey", board[2].Nickname)
	for i, e := range board {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestStandings_UnansweredCountsFullTimeLimit(t *testing.T) {
	s := NewStandings()
	q := choiceQuestion(1)
	s.Track("slow")
	s.Track("silent")

	// Both score zero; "slow" used 9.9s, "silent" is charged the full 10s.
	s.Apply(q, []Answer{{PlayerID: "slow", LatencyMs: 9900}})

	board := s.Leaderboard(nil)
	assert.Equal(t, "slow", board[0].PlayerID)
	assert.Equal(t, "silent", board[1].PlayerID)
}

func TestStandings_LateJoinerChargedForMissedQuestions(t *testing.T) {
	s := NewStandings()
	s.Track("a")

	s.Apply(choiceQuestion(1), []Answer{{PlayerID: "a", LatencyMs: 5000}})
	s.Track("b")
	s.Apply(choiceQuestion(2), nil)

	// a: 5s + 10s; b: 10s missed before joining + 10s unanswered.
	board := s.Leaderboard(nil)
	require.Len(t, board, 2)
	assert.Equal(t, "a", board[0].PlayerID)
	assert.Equal(t, "b", board[1].PlayerID)
	assert.Zero(t, board[0].Score)
	assert.Zero(t, board[1].Score)
}

func TestStandings_EqualEverythingFallsBackToPlayerID(t *testing.T) {
	s := NewStandings()
	s.Track("zed")
	s.Track("amy")

	board := s.Leaderboard(nil)
	assert.Equal(t, "amy", board[0].PlayerID)
	assert.Equal(t, "zed", board[1].PlayerID)
}

func TestComposeReveal(t *testing.T) {
	q := choiceQuestion(4)
	c := NewCollector(q, 2, t0)
	standings := NewStandings()
	nicknames := map[string]string{"p1": "Alex", "p2": "Blair", "p3": "Casey"}
	standings.Track("p3")

	_, err := c.Submit("p2", q.ID, choice(42), t0.Add(500*time.Millisecond), linearScorer{})
	require.NoError(t, err)
	_, err = c.Submit("p1", q.ID, choice(41), t0.Add(2*time.Second), linearScorer{})
	require.NoError(t, err)

	reveal := ComposeReveal(c, standings, nicknames)

	assert.Equal(t, q.ID, reveal.QuestionID)
	assert.Equal(t, 3, reveal.QuestionIndex)
	assert.Equal(t, []int64{41}, reveal.CorrectChoiceIDs)

	require.Len(t, reveal.Answers, 2)
	assert.Equal(t, "p2", reveal.Answers[0].PlayerID, "answers ordered by latency")
	assert.Equal(t, "Blair", reveal.Answers[0].Nickname)
	assert.False(t, reveal.Answers[0].IsCorrect)
	assert.Equal(t, "p1", reveal.Answers[1].PlayerID)
	assert.Equal(t, 900, reveal.Answers[1].PointsAwarded)

	require.Len(t, reveal.Leaderboard, 3)
	assert.Equal(t, "p1", reveal.Leaderboard[0].PlayerID)
	assert.Equal(t, 900, reveal.Leaderboard[0].Score)
	assert.Equal(t, "p2", reveal.Leaderboard[1].PlayerID, "answered faster than the silent player")
	assert.Equal(t, 900, standings.Score("p1"))
	assert.True(t, c.Closed())
}
