package game

import (
	"testing"

	"alice-srv/internal/models"
	"alice-srv/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 场景 B：两名玩家选择同一颜色
func TestSelectCharacterColorConflict(t *testing.T) {
	f := newFixture(t)
	sess, _, err := f.svc.CreateSession(f.ctx, "Tea Party", "alice")
	require.NoError(t, err)
	_, err = f.svc.JoinSession(f.ctx, sess.JoinCode, "bob")
	require.NoError(t, err)

	_, err = f.svc.SelectCharacter(f.ctx, sess.ID, "alice", "Hatter", models.ColorBlue)
	require.NoError(t, err)

	_, err = f.svc.SelectCharacter(f.ctx, sess.ID, "bob", "Queen", models.ColorBlue)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, Reason(err), "blue")

	players, err := f.svc.ListPlayers(f.ctx, sess.ID, "bob")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, models.ColorBlue, players[0].Color)
	assert.Empty(t, players[1].Color)
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "alice will be playing as Hatter"))
	assert.Zero(t, f.countMessages(t, sess.ID, "bob will be playing as"))
}

func TestSelectCharacterNameConflict(t *testing.T) {
	f := newFixture(t)
	sess, _, err := f.svc.CreateSession(f.ctx, "Tea Party", "alice")
	require.NoError(t, err)
	_, err = f.svc.JoinSession(f.ctx, sess.JoinCode, "bob")
	require.NoError(t, err)

	_, err = f.svc.SelectCharacter(f.ctx, sess.ID, "alice", "Hatter", models.ColorBlue)
	require.NoError(t, err)
	_, err = f.svc.SelectCharacter(f.ctx, sess.ID, "bob", "HATTER", models.ColorGreen)
	require.ErrorIs(t, err, ErrConflict)

	// 自己改名不冲突
	p, err := f.svc.SelectCharacter(f.ctx, sess.ID, "alice", "hatter", models.ColorYellow)
	require.NoError(t, err)
	assert.Equal(t, "hatter", p.CharacterName)
	assert.Equal(t, models.ColorYellow, p.Color)
}

func TestSelectCharacterValidation(t *testing.T) {
	f := newFixture(t)
	sess, _, err := f.svc.CreateSession(f.ctx, "Tea Party", "alice")
	require.NoError(t, err)

	tests := []struct {
		name      string
		character string
		color     models.Color
	}{
		{"empty name", "  ", models.ColorBlue},
		{"empty color", "Hatter", ""},
		{"unknown color", "Hatter", "red"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SelectCharacter(f.ctx, sess.ID, "alice", tt.character, tt.color)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err = f.svc.SelectCharacter(f.ctx, sess.ID, "mallory", "Hatter", models.ColorBlue)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSelectCharacterOnlyInSetup(t *testing.T) {
	f := newFixture(t)
	sess := startedGame(t, f)

	_, err := f.svc.SelectCharacter(f.ctx, sess.ID, "bob", "Duchess", models.ColorPurple)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestTransferHost(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, players := f.setupSession(t, threeSeats)

	require.ErrorIs(t, f.svc.TransferHost(f.ctx, sess.ID, "bob", players["carol"].ID), ErrForbidden)
	require.ErrorIs(t, f.svc.TransferHost(f.ctx, sess.ID, "alice", players["alice"].ID), ErrValidation)
	require.ErrorIs(t, f.svc.TransferHost(f.ctx, sess.ID, "alice", 999), ErrNotFound)

	require.NoError(t, f.svc.TransferHost(f.ctx, sess.ID, "alice", players["bob"].ID))

	list, err := f.svc.ListPlayers(f.ctx, sess.ID, "alice")
	require.NoError(t, err)
	hosts := 0
	for _, p := range list {
		if p.IsHost {
			hosts++
			assert.Equal(t, "bob", p.UserID)
		}
	}
	assert.Equal(t, 1, hosts)
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "Hatter has transferred host status to queen."))

	require.ErrorIs(t, f.svc.Start(f.ctx, sess.ID, "alice"), ErrForbidden)
	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "bob"))
}

func TestTransferHostOtherSession(t *testing.T) {
	f := newFixture(t)
	sess, _, err := f.svc.CreateSession(f.ctx, "One", "alice")
	require.NoError(t, err)
	_, outsider, err := f.svc.CreateSession(f.ctx, "Two", "bob")
	require.NoError(t, err)

	err = f.svc.TransferHost(f.ctx, sess.ID, "alice", outsider.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCardDetail(t *testing.T) {
	f := newFixture(t)
	sess := startedGame(t, f)
	clue := handCardOfType(t, f, sess.ID, "bob", models.CardClue)

	card, err := f.svc.CardDetail(f.ctx, sess.ID, "bob", clue.ID)
	require.NoError(t, err)
	assert.Equal(t, clue.ID, card.ID)

	_, err = f.svc.CardDetail(f.ctx, sess.ID, "carol", clue.ID)
	require.ErrorIs(t, err, ErrForbidden)

	view, err := f.svc.PlayerHand(f.ctx, sess.ID, "carol")
	require.NoError(t, err)
	card, err = f.svc.CardDetail(f.ctx, sess.ID, "carol", view.Character.ID)
	require.NoError(t, err)
	assert.Equal(t, "White Rabbit", card.Title)
}

func TestAdminUpdateHand(t *testing.T) {
	f := newFixture(t)
	sess, players := f.setupSession(t, threeSeats)
	f.seedReference(t, standardLayout())
	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	clue := handCardOfType(t, f, sess.ID, "bob", models.CardClue)
	carol := players["carol"].ID

	_, err := f.svc.AdminUpdateHand(f.ctx, sess.ID, "bob", carol, HandAdd, []int64{clue.ID})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.AdminUpdateHand(f.ctx, sess.ID, "alice", carol, HandAdd, []int64{clue.ID})
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.AdminUpdateHand(f.ctx, sess.ID, "alice", carol, "swap", []int64{clue.ID})
	require.ErrorIs(t, err, ErrValidation)

	view, err := f.svc.AdminUpdateHand(f.ctx, sess.ID, "alice", players["bob"].ID, HandRemove, []int64{clue.ID})
	require.NoError(t, err)
	for _, c := range view.Cards {
		assert.NotEqual(t, clue.ID, c.ID)
	}

	view, err = f.svc.AdminUpdateHand(f.ctx, sess.ID, "alice", carol, HandAdd, []int64{clue.ID})
	require.NoError(t, err)
	ids := make([]int64, 0, len(view.Cards))
	for _, c := range view.Cards {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, clue.ID)

	// 重复添加无操作
	again, err := f.svc.AdminUpdateHand(f.ctx, sess.ID, "alice", carol, HandAdd, []int64{clue.ID})
	require.NoError(t, err)
	assert.Len(t, again.Cards, len(view.Cards))

	stats, err := f.svc.SessionStats(f.ctx, sess.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.PlayerCount)
	assert.Equal(t, 16, stats.CardCount)
	// 角色牌不在手牌中：3 地点 + 3 嫌疑人 + 6 线索 + 1 动机
	assert.Equal(t, 13, stats.DealtCount)
}

func TestAdminUpdateHandRejectsReferenceCards(t *testing.T) {
	f := newFixture(t)
	sess, players := f.setupSession(t, threeSeats)
	f.seedReference(t, standardLayout())

	var refCard models.Card
	require.NoError(t, f.st.InTx(f.ctx, func(tx store.Tx) error {
		deck, err := tx.GetReferenceDeck(f.ctx)
		if err != nil {
			return err
		}
		cards, err := tx.ListDeckCards(f.ctx, deck.ID)
		if err != nil {
			return err
		}
		refCard = cards[0]
		return nil
	}))

	_, err := f.svc.AdminUpdateHand(f.ctx, sess.ID, "alice", players["bob"].ID, HandAdd, []int64{refCard.ID})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClueAllocation(t *testing.T) {
	tests := []struct {
		available, players int
		total, perPlayer   int
	}{
		{6, 3, 6, 2},
		{5, 3, 5, 1},
		{10, 3, 6, 2},
		{2, 3, 2, 0},
		{0, 4, 0, 0},
		{7, 4, 7, 1},
		{9, 5, 9, 1},
		{3, 0, 0, 0},
	}
	for _, tt := range tests {
		total, per := clueAllocation(tt.available, tt.players)
		assert.Equal(t, tt.total, total, "available=%d players=%d", tt.available, tt.players)
		assert.Equal(t, tt.perPlayer, per, "available=%d players=%d", tt.available, tt.players)
		assert.LessOrEqual(t, per*tt.players, total)
		assert.LessOrEqual(t, total, 2*max(tt.players, 0))
	}
}

func TestCharacterMatches(t *testing.T) {
	assert.True(t, characterMatches("Hatter", "The Mad Hatter"))
	assert.True(t, characterMatches("the mad hatter", "The Mad Hatter"))
	assert.True(t, characterMatches("The White Rabbit of Wonderland", "White Rabbit"))
	assert.False(t, characterMatches("Dormouse", "White Rabbit"))
	assert.False(t, characterMatches("", "White Rabbit"))
	assert.False(t, characterMatches("Dormouse", ""))
}
