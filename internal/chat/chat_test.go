package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewStore()
	id := s.Create()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	require.NoError(t, s.Append(id, RoleUser, "What is RAG?"))
	require.NoError(t, s.Append(id, RoleAssistant, "Retrieval augmented generation."))

	msgs, err := s.Messages(id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.False(t, msgs[0].CreatedAt.IsZero())

	msgs[0].Content = "mutated"
	again, _ := s.Messages(id)
	assert.Equal(t, "What is RAG?", again[0].Content)

	require.NoError(t, s.Clear(id))
	msgs, err = s.Messages(id)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	s.Delete(id)
	_, err = s.Messages(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUnknownSession(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.Append("nope", RoleUser, "x"), ErrSessionNotFound)
	assert.ErrorIs(t, s.Clear("nope"), ErrSessionNotFound)
}

func TestBroadcastAndClearAll(t *testing.T) {
	s := NewStore()
	a, b := s.Create(), s.Create()

	s.Broadcast(UpdateNotice(2))

	for _, id := range []string{a, b} {
		msgs, err := s.Messages(id)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, RoleAssistant, msgs[0].Role)
		assert.Contains(t, msgs[0].Content, "updated with 2 new document(s)")
	}

	s.ClearAll()
	msgs, _ := s.Messages(a)
	assert.Empty(t, msgs)
	assert.Equal(t, 2, s.Len())
}
