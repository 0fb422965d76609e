package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"alice-srv/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	err := m.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateSession(ctx, &models.Session{Title: "t", Status: models.StatusSetup, JoinCode: "ABCDEF12"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		s, err := tx.GetSessionByJoinCode(ctx, "ABCDEF12")
		require.NoError(t, err)
		assert.Nil(t, s)

		created := &models.Session{Title: "t", Status: models.StatusSetup, JoinCode: "ABCDEF12"}
		require.NoError(t, tx.CreateSession(ctx, created))
		assert.EqualValues(t, 1, created.ID)
		return nil
	}))
}

func TestMemoryRollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	assert.Panics(t, func() {
		_ = m.InTx(ctx, func(tx Tx) error {
			_ = tx.CreateUser(ctx, &models.User{UserID: "alice"})
			panic("boom")
		})
	})

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		u, err := tx.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, u)
		return nil
	}))
}

func TestMemoryPlayerUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		sess := &models.Session{Status: models.StatusSetup, JoinCode: "AAAA0000"}
		require.NoError(t, tx.CreateSession(ctx, sess))

		alice := &models.Player{SessionID: sess.ID, UserID: "alice", CharacterName: "Hatter", Color: models.ColorBlue}
		require.NoError(t, tx.CreatePlayer(ctx, alice))

		assert.ErrorIs(t, tx.CreatePlayer(ctx, &models.Player{SessionID: sess.ID, UserID: "alice"}), ErrConflict)
		assert.ErrorIs(t, tx.CreatePlayer(ctx, &models.Player{SessionID: sess.ID, UserID: "bob", Color: models.ColorBlue}), ErrConflict)
		assert.ErrorIs(t, tx.CreatePlayer(ctx, &models.Player{SessionID: sess.ID, UserID: "bob", CharacterName: "hatter"}), ErrConflict)

		bob := &models.Player{SessionID: sess.ID, UserID: "bob"}
		require.NoError(t, tx.CreatePlayer(ctx, bob))
		carol := &models.Player{SessionID: sess.ID, UserID: "carol"}
		require.NoError(t, tx.CreatePlayer(ctx, carol))

		// 另一个会话中可以使用相同的颜色
		other := &models.Session{Status: models.StatusSetup, JoinCode: "BBBB0000"}
		require.NoError(t, tx.CreateSession(ctx, other))
		require.NoError(t, tx.CreatePlayer(ctx, &models.Player{SessionID: other.ID, UserID: "alice", Color: models.ColorBlue}))

		players, err := tx.ListPlayers(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, players, 3)
		assert.Equal(t, []string{"alice", "bob", "carol"}, []string{players[0].UserID, players[1].UserID, players[2].UserID})
		return nil
	}))
}

func TestMemorySingleReferenceDeck(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreateDeck(ctx, &models.Deck{Type: models.DeckReference, Name: "one"}))
		assert.ErrorIs(t, tx.CreateDeck(ctx, &models.Deck{Type: models.DeckReference, Name: "two"}), ErrConflict)

		ref, err := tx.GetReferenceDeck(ctx)
		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.Equal(t, "one", ref.Name)
		return nil
	}))
}

func TestMemoryHandCards(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		sess := &models.Session{Status: models.StatusInProgress, JoinCode: "CCCC0000"}
		require.NoError(t, tx.CreateSession(ctx, sess))
		deck := &models.Deck{Type: models.DeckGame, SessionID: &sess.ID}
		require.NoError(t, tx.CreateDeck(ctx, deck))
		card := &models.Card{DeckID: deck.ID, Type: models.CardClue, Title: "Key"}
		require.NoError(t, tx.CreateCard(ctx, card))

		a := &models.Player{SessionID: sess.ID, UserID: "a"}
		b := &models.Player{SessionID: sess.ID, UserID: "b"}
		require.NoError(t, tx.CreatePlayer(ctx, a))
		require.NoError(t, tx.CreatePlayer(ctx, b))
		ha := &models.Hand{SessionID: sess.ID, PlayerID: a.ID}
		hb := &models.Hand{SessionID: sess.ID, PlayerID: b.ID}
		require.NoError(t, tx.CreateHand(ctx, ha))
		require.NoError(t, tx.CreateHand(ctx, hb))
		assert.ErrorIs(t, tx.CreateHand(ctx, &models.Hand{SessionID: sess.ID, PlayerID: a.ID}), ErrConflict)

		require.NoError(t, tx.AddHandCard(ctx, ha.ID, card.ID))
		require.NoError(t, tx.AddHandCard(ctx, ha.ID, card.ID))
		assert.ErrorIs(t, tx.AddHandCard(ctx, hb.ID, card.ID), ErrConflict)

		require.NoError(t, tx.RemoveHandCard(ctx, ha.ID, card.ID))
		require.NoError(t, tx.AddHandCard(ctx, hb.ID, card.ID))

		cards, err := tx.ListHandCards(ctx, hb.ID)
		require.NoError(t, err)
		require.Len(t, cards, 1)
		assert.Equal(t, "Key", cards[0].Title)

		// 删除手牌关联不影响卡牌本身
		require.NoError(t, tx.RemoveHandCard(ctx, hb.ID, card.ID))
		got, err := tx.GetSessionCard(ctx, sess.ID, card.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)
		return nil
	}))
}

func TestMemoryMessagesOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		// 创建时间乱序时仍按 id 排序，afterID 水位不会跳过消息
		for i, offset := range []time.Duration{2 * time.Second, 0, time.Second, time.Second} {
			msg := &models.Message{SessionID: 1, Content: string(rune('a' + i)), CreatedAt: base.Add(offset)}
			require.NoError(t, tx.CreateMessage(ctx, msg))
		}
		require.NoError(t, tx.CreateMessage(ctx, &models.Message{SessionID: 2, Content: "other", CreatedAt: base}))

		msgs, err := tx.ListMessages(ctx, 1, 0)
		require.NoError(t, err)
		var contents []string
		for _, msg := range msgs {
			contents = append(contents, msg.Content)
		}
		assert.Equal(t, []string{"a", "b", "c", "d"}, contents)

		after, err := tx.ListMessages(ctx, 1, msgs[1].ID)
		require.NoError(t, err)
		require.Len(t, after, 2)
		assert.Equal(t, "c", after[0].Content)

		got, err := tx.GetMessage(ctx, 1, msgs[2].ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "c", got.Content)
		got, err = tx.GetMessage(ctx, 2, msgs[2].ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		n, err := tx.DeleteMessages(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 4, n)
		return nil
	}))
}

func TestMemoryCopiesPointers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		startAt := start
		sess := &models.Session{Status: models.StatusInProgress, JoinCode: "DDDD0000", StartTime: &startAt}
		require.NoError(t, tx.CreateSession(ctx, sess))

		*sess.StartTime = start.Add(time.Hour)
		got, err := tx.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, got.StartTime.Equal(start))
		return nil
	}))
}

func TestMemoryDeleteFinishedSessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	old := base.Add(-48 * time.Hour)
	recent := base.Add(-time.Hour)

	var keepID, purgeID int64
	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		purge := &models.Session{Status: models.StatusFinished, JoinCode: "OLD00000", EndTime: &old}
		keep := &models.Session{Status: models.StatusFinished, JoinCode: "NEW00000", EndTime: &recent}
		running := &models.Session{Status: models.StatusInProgress, JoinCode: "RUN00000", EndTime: &old}
		for _, s := range []*models.Session{purge, keep, running} {
			require.NoError(t, tx.CreateSession(ctx, s))
		}
		purgeID, keepID = purge.ID, keep.ID

		p := &models.Player{SessionID: purge.ID, UserID: "alice"}
		require.NoError(t, tx.CreatePlayer(ctx, p))
		deck := &models.Deck{Type: models.DeckGame, SessionID: &purge.ID}
		require.NoError(t, tx.CreateDeck(ctx, deck))
		require.NoError(t, tx.CreateCard(ctx, &models.Card{DeckID: deck.ID, Type: models.CardClue}))
		require.NoError(t, tx.CreateMessage(ctx, &models.Message{SessionID: purge.ID, Content: "bye"}))

		n, err := tx.DeleteFinishedSessions(ctx, base.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		return nil
	}))

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		gone, err := tx.GetSession(ctx, purgeID)
		require.NoError(t, err)
		assert.Nil(t, gone)
		kept, err := tx.GetSession(ctx, keepID)
		require.NoError(t, err)
		assert.NotNil(t, kept)

		players, err := tx.ListPlayers(ctx, purgeID)
		require.NoError(t, err)
		assert.Empty(t, players)
		cards, err := tx.ListSessionCards(ctx, purgeID)
		require.NoError(t, err)
		assert.Empty(t, cards)
		msgs, err := tx.ListMessages(ctx, purgeID, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
		return nil
	}))
}
