package game

import (
	"sort"

	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

type standing struct {
	score     int
	elapsedMs int64
}

// Standings accumulates scores across reveals. Scores only ever grow.
type Standings struct {
	byPlayer map[string]*standing
	// revealedMs is the sum of time limits of every window applied so far.
	revealedMs int64
}

func NewStandings() *Standings {
	return &Standings{byPlayer: make(map[string]*standing)}
}

// Track makes sure playerID appears on the leaderboard even before scoring. A player first
// seen after some reveals is charged the full time limit of each question they missed.
func (s *Standings) Track(playerID string) {
	if _, ok := s.byPlayer[playerID]; !ok {
		s.byPlayer[playerID] = &standing{elapsedMs: s.revealedMs}
	}
}

// Apply folds one closed window into the totals. Players without an answer are
// charged the full time limit towards the tie-breaker.
func (s *Standings) Apply(q Question, answers []Answer) {
	answered := make(map[string]Answer, len(answers))
	for _, a := range answers {
		answered[a.PlayerID] = a
		s.Track(a.PlayerID)
	}
	for playerID, st := range s.byPlayer {
		a, ok := answered[playerID]
		if !ok {
			st.elapsedMs += q.TimeLimit.Milliseconds()
			continue
		}
		st.elapsedMs += a.LatencyMs
		if a.Points > 0 {
			st.score += a.Points
		}
	}
	s.revealedMs += q.TimeLimit.Milliseconds()
}

// Score returns playerID's cumulative score.
func (s *Standings) Score(playerID string) int {
	if st, ok := s.byPlayer[playerID]; ok {
		return st.score
	}
	return 0
}

// Leaderboard orders players by score descending, then by earliest cumulative
// submission time, then by player id.
func (s *Standings) Leaderboard(nicknames map[string]string) []ws.LeaderboardEntry {
	ids := make([]string, 0, len(s.byPlayer))
	for id := range s.byPlayer {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.byPlayer[ids[i]], s.byPlayer[ids[j]]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.elapsedMs != b.elapsedMs {
			return a.elapsedMs < b.elapsedMs
		}
		return ids[i] < ids[j]
	})

	out := make([]ws.LeaderboardEntry, len(ids))
	for i, id := range ids {
		out[i] = ws.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: id,
			Nickname: nicknames[id],
			Score:    s.byPlayer[id].score,
		}
	}
	return out
}

// ComposeReveal builds the reveal payload for a closed window and folds it into standings.
func ComposeReveal(c *Collector, standings *Standings, nicknames map[string]string) ws.QuestionRevealPayload {
	q := c.Question()
	answers := c.Close()
	standings.Apply(q, answers)

	results := make([]ws.AnswerResult, len(answers))
	for i, a := range answers {
		results[i] = ws.AnswerResult{
			PlayerID:       a.PlayerID,
			Nickname:       nicknames[a.PlayerID],
			SubmittedValue: a.Value,
			IsCorrect:      a.IsCorrect,
			PointsAwarded:  a.Points,
			LatencyMs:      a.LatencyMs,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].LatencyMs != results[j].LatencyMs {
			return results[i].LatencyMs < results[j].LatencyMs
		}
		return results[i].PlayerID < results[j].PlayerID
	})

	return ws.QuestionRevealPayload{
		QuestionID:       q.ID,
		QuestionIndex:    c.Index() + 1,
		CorrectChoiceIDs: q.CorrectChoiceIDs(),
		Answers:          results,
		Leaderboard:      standings.Leaderboard(nicknames),
	}
}
