package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeJoin         = "join"
	TypeStart        = "start"
	TypeAdvance      = "advance"
	TypeSubmitAnswer = "submit_answer"

	// Server -> Client
	TypeJoinAck         = "join_ack"
	TypeReply           = "reply"
	TypeError           = "error"
	TypePlayerJoined    = "player_joined"
	TypePlayerLeft      = "player_left"
	TypeQuestionStarted = "question_started"
	TypeQuestionReveal  = "question_reveal"
	TypeGameFinished    = "game_finished"
)

// Roles accepted by the join handshake.
const (
	RoleHost   = "host"
	RolePlayer = "player"
)

// Phases reported in resume descriptors.
const (
	PhaseLobby       = "lobby"
	PhaseQuestion    = "question"
	PhaseReveal      = "reveal"
	PhaseLeaderboard = "leaderboard"
	PhaseFinished    = "finished"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed envelope.
func NewMessage(msgType string, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		msg.Payload = json.RawMessage(`{}`)
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = raw
	return msg, nil
}

// Decode unmarshals the payload into v. An empty payload decodes as {}.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return json.Unmarshal([]byte(`{}`), v)
	}
	return json.Unmarshal(m.Payload, v)
}

// Client Messages (incoming)

type JoinPayload struct {
	Role        string `json:"role"`
	Token       string `json:"token,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	PlayerToken string `json:"player_token,omitempty"`
}

// AnswerValue is the union of answer shapes; which field is read depends on the question type.
type AnswerValue struct {
	ChoiceID *int64  `json:"choice_id,omitempty"`
	Ordering []int64 `json:"ordering,omitempty"`
	Text     *string `json:"text,omitempty"`
}

type SubmitAnswerPayload struct {
	QuestionID int64 `json:"question_id"`
	AnswerValue
}

// Server Messages (outgoing)

type Player struct {
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"player_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

type ChoicePayload struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

type QuestionStartedPayload struct {
	QuestionID     int64           `json:"question_id"`
	QuestionIndex  int             `json:"question_index"`
	TotalQuestions int             `json:"total_questions"`
	Type           string          `json:"type"`
	Prompt         string          `json:"prompt"`
	Choices        []ChoicePayload `json:"choices"`
	TimeLimitMs    int64           `json:"time_limit_ms"`
	EndsAt         int64           `json:"ends_at"`
}

type AnswerResult struct {
	PlayerID       string      `json:"player_id"`
	Nickname       string      `json:"nickname"`
	SubmittedValue AnswerValue `json:"submitted_value"`
	IsCorrect      bool        `json:"is_correct"`
	PointsAwarded  int         `json:"points_awarded"`
	LatencyMs      int64       `json:"latency_ms"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

type QuestionRevealPayload struct {
	QuestionID       int64              `json:"question_id"`
	QuestionIndex    int                `json:"question_index"`
	CorrectChoiceIDs []int64            `json:"correct_choice_ids"`
	Answers          []AnswerResult     `json:"answers"`
	Leaderboard      []LeaderboardEntry `json:"leaderboard"`
}

type GameFinishedPayload struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type ResumePayload struct {
	Phase           string                  `json:"phase"`
	QuestionIndex   int                     `json:"question_index"`
	TotalQuestions  int                     `json:"total_questions"`
	Leaderboard     []LeaderboardEntry      `json:"leaderboard,omitempty"`
	CurrentQuestion *QuestionStartedPayload `json:"current_question,omitempty"`
}

type JoinAckPayload struct {
	Role        string         `json:"role"`
	Pin         string         `json:"pin"`
	PlayerID    string         `json:"player_id,omitempty"`
	Nickname    string         `json:"nickname,omitempty"`
	PlayerToken string         `json:"player_token,omitempty"`
	Players     []Player       `json:"players,omitempty"`
	Resume      *ResumePayload `json:"resume,omitempty"`
}

type ReplyPayload struct {
	Status string `json:"status"`
}

type ErrorPayload struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}
