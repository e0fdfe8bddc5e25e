package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

func event(t *testing.T, msgType string, payload any) ws.Message {
	t.Helper()
	msg, err := ws.NewMessage(msgType, payload)
	require.NoError(t, err)
	return msg
}

func question(id int64, index int) ws.QuestionStartedPayload {
	return ws.QuestionStartedPayload{
		QuestionID:     id,
		QuestionIndex:  index,
		TotalQuestions: 2,
		Prompt:         "Capital of France?",
		Choices:        []ws.ChoicePayload{{ID: id*10 + 1, Text: "Paris", Position: 1}, {ID: id*10 + 2, Text: "Lyon", Position: 2}},
		EndsAt:         1714586400000,
	}
}

func lobbyAck() ws.JoinAckPayload {
	return ws.JoinAckPayload{
		Role:     ws.RolePlayer,
		Pin:      "482913",
		PlayerID: "p1",
		Nickname: "Alex",
		Players:  []ws.Player{{PlayerID: "p0", Nickname: "Blair"}, {PlayerID: "p1", Nickname: "Alex"}},
		Resume:   &ws.ResumePayload{Phase: ws.PhaseLobby, TotalQuestions: 2},
	}
}

func TestFromJoinAck(t *testing.T) {
	q := question(7, 1)
	board := []ws.LeaderboardEntry{{Rank: 1, PlayerID: "p1", Nickname: "Alex", Score: 900}}

	tests := []struct {
		name      string
		resume    *ws.ResumePayload
		wantPhase Phase
		wantIndex int
		wantBoard []ws.LeaderboardEntry
		wantQ     *ws.QuestionStartedPayload
	}{
		{"no resume", nil, PhaseLobby, 0, nil, nil},
		{"lobby", &ws.ResumePayload{Phase: ws.PhaseLobby, TotalQuestions: 2}, PhaseLobby, 0, nil, nil},
		{"mid question", &ws.ResumePayload{Phase: ws.PhaseQuestion, QuestionIndex: 1, TotalQuestions: 2, CurrentQuestion: &q}, PhaseQuestion, 1, nil, &q},
		{"leaderboard checkpoint", &ws.ResumePayload{Phase: ws.PhaseLeaderboard, QuestionIndex: 1, TotalQuestions: 2, Leaderboard: board}, PhaseLeaderboard, 1, board, nil},
		{"finished", &ws.ResumePayload{Phase: ws.PhaseFinished, QuestionIndex: 2, TotalQuestions: 2, Leaderboard: board}, PhaseFinished, 2, board, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := lobbyAck()
			ack.Resume = tt.resume
			st := FromJoinAck(ack)

			assert.Equal(t, tt.wantPhase, st.Phase)
			assert.Equal(t, tt.wantIndex, st.QuestionIndex)
			assert.Equal(t, tt.wantBoard, st.Leaderboard)
			assert.Equal(t, tt.wantQ, st.Question)
			assert.Equal(t, 2, st.Roster.Len(), "own entry deduplicated against roster")
		})
	}
}

func TestReduce_FullGame(t *testing.T) {
	st := FromJoinAck(lobbyAck())
	board := []ws.LeaderboardEntry{{Rank: 1, PlayerID: "p1", Nickname: "Alex", Score: 900}}

	steps := []struct {
		msg  ws.Message
		want Phase
	}{
		{event(t, ws.TypeQuestionStarted, question(7, 1)), PhaseQuestion},
		{event(t, ws.TypeQuestionReveal, ws.QuestionRevealPayload{QuestionID: 7, Leaderboard: board}), PhaseReveal},
		{event(t, ws.TypeQuestionStarted, question(8, 2)), PhaseQuestion},
		{event(t, ws.TypeQuestionReveal, ws.QuestionRevealPayload{QuestionID: 8, Leaderboard: board}), PhaseReveal},
		{event(t, ws.TypeGameFinished, ws.GameFinishedPayload{Leaderboard: board}), PhaseFinished},
	}

	for _, step := range steps {
		var err error
		st, err = Reduce(st, step.msg)
		require.NoError(t, err, step.msg.Type)
		assert.Equal(t, step.want, st.Phase, step.msg.Type)
	}
	assert.Equal(t, 2, st.QuestionIndex)
	assert.Equal(t, board, st.Leaderboard)
	assert.Nil(t, st.Question)
}

func TestReduce_RejectsTransitionsOutsideTable(t *testing.T) {
	lobby := FromJoinAck(lobbyAck())
	inQuestion, err := Reduce(lobby, event(t, ws.TypeQuestionStarted, question(7, 1)))
	require.NoError(t, err)

	tests := []struct {
		name string
		from State
		msg  ws.Message
	}{
		{"reveal in lobby", lobby, event(t, ws.TypeQuestionReveal, ws.QuestionRevealPayload{QuestionID: 7})},
		{"finished in lobby", lobby, event(t, ws.TypeGameFinished, ws.GameFinishedPayload{})},
		{"finished mid question", inQuestion, event(t, ws.TypeGameFinished, ws.GameFinishedPayload{})},
		{"reveal for another question", inQuestion, event(t, ws.TypeQuestionReveal, ws.QuestionRevealPayload{QuestionID: 8})},
		{"question while question running", inQuestion, event(t, ws.TypeQuestionStarted, question(8, 2))},
		{"event before join", State{Phase: PhaseIdle}, event(t, ws.TypePlayerJoined, ws.Player{PlayerID: "p9"})},
		{"unknown event", lobby, event(t, "confetti", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Reduce(tt.from, tt.msg)
			var unexpected *UnexpectedEventError
			require.ErrorAs(t, err, &unexpected)
			assert.Equal(t, tt.from, next)
		})
	}
}

func TestReduce_DuplicateQuestionStartedRejected(t *testing.T) {
	st := FromJoinAck(lobbyAck())
	st, err := Reduce(st, event(t, ws.TypeQuestionStarted, question(7, 1)))
	require.NoError(t, err)
	st, err = Reduce(st, event(t, ws.TypeQuestionReveal, ws.QuestionRevealPayload{QuestionID: 7}))
	require.NoError(t, err)

	_, err = Reduce(st, event(t, ws.TypeQuestionStarted, question(7, 1)))
	assert.Error(t, err, "question_index must advance")
}

func TestReduce_ResumedLeaderboardAcceptsNextQuestion(t *testing.T) {
	ack := lobbyAck()
	ack.Resume = &ws.ResumePayload{Phase: ws.PhaseLeaderboard, QuestionIndex: 1, TotalQuestions: 2}
	st := FromJoinAck(ack)

	st, err := Reduce(st, event(t, ws.TypeQuestionStarted, question(8, 2)))
	require.NoError(t, err)
	assert.Equal(t, PhaseQuestion, st.Phase)
	assert.Equal(t, int64(8), st.Question.QuestionID)
}

func TestReduce_Roster(t *testing.T) {
	st := FromJoinAck(lobbyAck())

	st, err := Reduce(st, event(t, ws.TypePlayerJoined, ws.Player{PlayerID: "p2", Nickname: "Casey"}))
	require.NoError(t, err)
	st, err = Reduce(st, event(t, ws.TypePlayerJoined, ws.Player{PlayerID: "p2", Nickname: "Casey"}))
	require.NoError(t, err)
	assert.Equal(t, 3, st.Roster.Len(), "player_joined is idempotent")

	before := st
	st, err = Reduce(st, event(t, ws.TypePlayerLeft, ws.PlayerLeftPayload{Nickname: "Blair"}))
	require.NoError(t, err)
	assert.Equal(t, []ws.Player{{PlayerID: "p1", Nickname: "Alex"}, {PlayerID: "p2", Nickname: "Casey"}}, st.Players())
	assert.Equal(t, 3, before.Roster.Len(), "input state untouched")
}

func TestReduce_ErrorKeepsPhase(t *testing.T) {
	st := FromJoinAck(lobbyAck())
	st, err := Reduce(st, event(t, ws.TypeError, ws.ErrorPayload{Code: "forbidden", Reason: "only the host may issue this command"}))
	require.NoError(t, err)
	assert.Equal(t, PhaseLobby, st.Phase)
	require.NotNil(t, st.LastError)
	assert.Equal(t, "forbidden", st.LastError.Code)
}
