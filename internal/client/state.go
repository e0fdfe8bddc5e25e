package client

import (
	"fmt"

	"github.com/gokatarajesh/livequiz/internal/presence"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Phase is what the client renders. Leaderboard is the resume checkpoint between a
// reveal and the next question.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseLobby       Phase = ws.PhaseLobby
	PhaseQuestion    Phase = ws.PhaseQuestion
	PhaseReveal      Phase = ws.PhaseReveal
	PhaseLeaderboard Phase = ws.PhaseLeaderboard
	PhaseFinished    Phase = ws.PhaseFinished
)

// State is the locally rendered view of a game.
type State struct {
	Phase          Phase
	Join           ws.JoinAckPayload
	Roster         presence.Roster
	QuestionIndex  int
	TotalQuestions int
	Question       *ws.QuestionStartedPayload
	Reveal         *ws.QuestionRevealPayload
	Leaderboard    []ws.LeaderboardEntry
	LastError      *ws.ErrorPayload
	Disconnected   bool
}

// UnexpectedEventError reports an event the current phase cannot accept. The state is left unchanged.
type UnexpectedEventError struct {
	Phase Phase
	Event string
}

func (e *UnexpectedEventError) Error() string {
	return fmt.Sprintf("event %s not valid in phase %s", e.Event, e.Phase)
}

// FromJoinAck rebuilds state from a join acknowledgment alone.
func FromJoinAck(ack ws.JoinAckPayload) State {
	st := State{Phase: PhaseLobby, Join: ack}

	members := make([]presence.Member, 0, len(ack.Players)+1)
	for _, p := range ack.Players {
		members = append(members, presence.Member{PlayerID: p.PlayerID, Nickname: p.Nickname})
	}
	if ack.Role == ws.RolePlayer && ack.PlayerID != "" {
		members = append(members, presence.Member{PlayerID: ack.PlayerID, Nickname: ack.Nickname})
	}
	st.Roster = presence.FromMembers(members)

	r := ack.Resume
	if r == nil {
		return st
	}
	st.QuestionIndex = r.QuestionIndex
	st.TotalQuestions = r.TotalQuestions

	switch r.Phase {
	case ws.PhaseQuestion:
		if r.CurrentQuestion != nil {
			q := *r.CurrentQuestion
			st.Phase = PhaseQuestion
			st.Question = &q
		}
	case ws.PhaseLeaderboard, ws.PhaseReveal:
		st.Phase = PhaseLeaderboard
		st.Leaderboard = r.Leaderboard
	case ws.PhaseFinished:
		st.Phase = PhaseFinished
		st.Leaderboard = r.Leaderboard
	}
	return st
}

// Reduce applies one event in receipt order. It is pure: st is never mutated.
func Reduce(st State, msg ws.Message) (State, error) {
	if st.Phase == PhaseIdle && msg.Type != ws.TypeJoinAck {
		return st, &UnexpectedEventError{Phase: st.Phase, Event: msg.Type}
	}

	switch msg.Type {
	case ws.TypeJoinAck:
		var ack ws.JoinAckPayload
		if err := msg.Decode(&ack); err != nil {
			return st, fmt.Errorf("decode join_ack: %w", err)
		}
		return FromJoinAck(ack), nil

	case ws.TypePlayerJoined:
		var p ws.Player
		if err := msg.Decode(&p); err != nil {
			return st, fmt.Errorf("decode player_joined: %w", err)
		}
		st.Roster, _ = st.Roster.Join(presence.Member{PlayerID: p.PlayerID, Nickname: p.Nickname})
		return st, nil

	case ws.TypePlayerLeft:
		var p ws.PlayerLeftPayload
		if err := msg.Decode(&p); err != nil {
			return st, fmt.Errorf("decode player_left: %w", err)
		}
		st.Roster, _ = st.Roster.Leave(p.PlayerID, p.Nickname)
		return st, nil

	case ws.TypeQuestionStarted:
		var q ws.QuestionStartedPayload
		if err := msg.Decode(&q); err != nil {
			return st, fmt.Errorf("decode question_started: %w", err)
		}
		switch st.Phase {
		case PhaseLobby, PhaseReveal, PhaseLeaderboard:
		default:
			return st, &UnexpectedEventError{Phase: st.Phase, Event: msg.Type}
		}
		if q.QuestionIndex <= st.QuestionIndex {
			return st, &UnexpectedEventError{Phase: st.Phase, Event: msg.Type}
		}
		st.Phase = PhaseQuestion
		st.Question = &q
		st.Reveal = nil
		st.QuestionIndex = q.QuestionIndex
		st.TotalQuestions = q.TotalQuestions
		return st, nil

	case ws.TypeQuestionReveal:
		var r ws.QuestionRevealPayload
		if err := msg.Decode(&r); err != nil {
			return st, fmt.Errorf("decode question_reveal: %w", err)
		}
		if st.Phase != PhaseQuestion || st.Question == nil || st.Question.QuestionID != r.QuestionID {
			return st, &UnexpectedEventError{Phase: st.Phase, Event: msg.Type}
		}
		st.Phase = PhaseReveal
		st.Reveal = &r
		st.Leaderboard = r.Leaderboard
		return st, nil

	case ws.TypeGameFinished:
		var f ws.GameFinishedPayload
		if err := msg.Decode(&f); err != nil {
			return st, fmt.Errorf("decode game_finished: %w", err)
		}
		if st.Phase != PhaseReveal && st.Phase != PhaseLeaderboard {
			return st, &UnexpectedEventError{Phase: st.Phase, Event: msg.Type}
		}
		st.Phase = PhaseFinished
		st.Question = nil
		st.Leaderboard = f.Leaderboard
		return st, nil

	case ws.TypeError:
		var e ws.ErrorPayload
		if err := msg.Decode(&e); err != nil {
			return st, fmt.Errorf("decode error: %w", err)
		}
		st.LastError = &e
		return st, nil

	case ws.TypeReply:
		return st, nil

	default:
		return st, &UnexpectedEventError{Phase: st.Phase, Event: msg.Type}
	}
}

// Players lists the roster in join order.
func (s State) Players() []ws.Player {
	members := s.Roster.Members()
	out := make([]ws.Player, len(members))
	for i, m := range members {
		out[i] = ws.Player{PlayerID: m.PlayerID, Nickname: m.Nickname}
	}
	return out
}
