package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoster_JoinIsIdempotentByPlayerID(t *testing.T) {
	var r Roster
	r, added := r.Join(Member{PlayerID: "p1", Nickname: "Alex"})
	assert.True(t, added)

	r, added = r.Join(Member{PlayerID: "p1", Nickname: "Alex"})
	assert.False(t, added)
	assert.Equal(t, 1, r.Len())
}

func TestRoster_JoinDoesNotMutateReceiver(t *testing.T) {
	base, _ := Roster{}.Join(Member{PlayerID: "p1", Nickname: "Alex"})
	next, _ := base.Join(Member{PlayerID: "p2", Nickname: "Sam"})

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, next.Len())
}

func TestRoster_LeaveByIDThenNicknameFallback(t *testing.T) {
	r := FromMembers([]Member{
		{PlayerID: "p1", Nickname: "Alex"},
		{PlayerID: "p2", Nickname: "Sam"},
		{PlayerID: "p3", Nickname: "Kim"},
	})

	r, removed := r.Leave("p2", "")
	assert.True(t, removed)
	assert.False(t, r.Contains("p2"))

	r, removed = r.Leave("", "Kim")
	assert.True(t, removed)
	assert.Equal(t, []Member{{PlayerID: "p1", Nickname: "Alex"}}, r.Members())

	r, removed = r.Leave("unknown", "Alex")
	assert.True(t, removed)
	assert.Equal(t, 0, r.Len())

	_, removed = r.Leave("p1", "Alex")
	assert.False(t, removed)
}

func TestRoster_ByNicknameIgnoresCaseAndSpace(t *testing.T) {
	r := FromMembers([]Member{{PlayerID: "p1", Nickname: "Alex"}})

	m, ok := r.ByNickname("  alex ")
	assert.True(t, ok)
	assert.Equal(t, "p1", m.PlayerID)

	_, ok = r.ByNickname("Alexa")
	assert.False(t, ok)
}

func TestFromMembers_DropsDuplicates(t *testing.T) {
	r := FromMembers([]Member{
		{PlayerID: "p1", Nickname: "Alex"},
		{PlayerID: "p1", Nickname: "Alex"},
	})
	assert.Equal(t, 1, r.Len())
}
