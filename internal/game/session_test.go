package game

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"alice-srv/internal/models"
	"alice-srv/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	sess, host, err := f.svc.CreateSession(f.ctx, "  ", "alice")
	require.NoError(t, err)

	assert.Equal(t, "Alice Search - Mar 14, 2025", sess.Title)
	assert.Equal(t, models.StatusSetup, sess.Status)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{8}$`), sess.JoinCode)
	assert.Nil(t, sess.StartTime)
	assert.True(t, host.IsHost)
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "Game created. Invite players using the join code: "+sess.JoinCode))

	view, err := f.svc.PlayerHand(f.ctx, sess.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, view.Cards)
}

func TestCreateSessionTitleTooLong(t *testing.T) {
	f := newFixture(t)

	long := make([]rune, MaxTitleLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, _, err := f.svc.CreateSession(f.ctx, string(long), "alice")
	require.ErrorIs(t, err, ErrValidation)
}

func TestJoinSession(t *testing.T) {
	f := newFixture(t)
	sess, _, err := f.svc.CreateSession(f.ctx, "Tea Party", "alice")
	require.NoError(t, err)

	bob, err := f.svc.JoinSession(f.ctx, " "+sess.JoinCode+" ", "bob")
	require.NoError(t, err)
	assert.False(t, bob.IsHost)

	again, err := f.svc.JoinSession(f.ctx, sess.JoinCode, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, again.ID)
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "bob has joined the game."))

	_, err = f.svc.JoinSession(f.ctx, "NOPE1234", "carol")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJoinSessionLowercaseCode(t *testing.T) {
	f := newFixture(t)
	sess, _, err := f.svc.CreateSession(f.ctx, "Tea Party", "alice")
	require.NoError(t, err)

	lower := []byte(sess.JoinCode)
	for i, c := range lower {
		if c >= 'A' && c <= 'Z' {
			lower[i] = c + 'a' - 'A'
		}
	}
	_, err = f.svc.JoinSession(f.ctx, string(lower), "bob")
	require.NoError(t, err)
}

func TestJoinStartedSession(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)
	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	_, err := f.svc.JoinSession(f.ctx, sess.JoinCode, "dave")
	require.ErrorIs(t, err, ErrNotFound)
}

// 场景 A：三名玩家，完整的参考牌组
func TestStartDealsThreePlayers(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)

	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	got := f.session(t, sess.ID)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.NotNil(t, got.StartTime)
	require.NotNil(t, got.EndTime)
	assert.Equal(t, models.GameDuration, got.EndTime.Sub(*got.StartTime))

	decks := f.decks(t, sess.ID)
	require.Len(t, decks, 1)
	assert.Equal(t, models.DeckGame, decks[0].Type)
	assert.Equal(t, "Game Deck for Tea Party", decks[0].Name)
	// 3 角色 + 3 地点 + 1 动机 + 6 线索 + 3 嫌疑人
	assert.Len(t, f.cards(t, sess.ID), 16)

	expected := map[string]string{
		"alice": "The Mad Hatter",
		"bob":   "The Red Queen",
		"carol": "White Rabbit",
	}
	motives := 0
	for _, s := range threeSeats {
		view, err := f.svc.PlayerHand(f.ctx, sess.ID, s.user)
		require.NoError(t, err)

		require.NotNil(t, view.Character, s.user)
		assert.Equal(t, expected[s.user], view.Character.Title)

		counts := map[models.CardType]int{}
		for _, c := range view.Cards {
			counts[c.Type]++
			assert.False(t, c.Revealed)
		}
		assert.Equal(t, 1, counts[models.CardLocation], s.user)
		assert.Equal(t, 1, counts[models.CardSuspect], s.user)
		assert.Equal(t, 2, counts[models.CardClue], s.user)
		assert.Zero(t, counts[models.CardCharacter], s.user)
		motives += counts[models.CardMotive]
	}
	assert.Equal(t, 1, motives)

	assert.Equal(t, 1, f.countMessages(t, sess.ID, "The game has started. You have 90 minutes to find Alice."))
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "Cards have been dealt."))
	assert.Zero(t, f.countMessages(t, sess.ID, "Warning:"))
}

func TestStartPositionalFallback(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, []seat{
		{"alice", "Cheshire Cat", models.ColorBlue},
		{"bob", "Dormouse", models.ColorGreen},
	})

	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	seen := map[int64]bool{}
	for _, user := range []string{"alice", "bob"} {
		view, err := f.svc.PlayerHand(f.ctx, sess.ID, user)
		require.NoError(t, err)
		require.NotNil(t, view.Character)
		assert.Equal(t, models.CardCharacter, view.Character.Type)
		assert.False(t, seen[view.Character.ID])
		seen[view.Character.ID] = true
	}
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "Warning: This game works best with 3-5 players."))
}

func TestStartUnevenClues(t *testing.T) {
	f := newFixture(t)
	layout := standardLayout()
	layout.clues = 5
	f.seedReference(t, layout)
	sess, _ := f.setupSession(t, threeSeats)

	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	// min(5, 6) = 5 张复制，每人 1 张，余下的不发
	clues := 0
	for _, c := range f.cards(t, sess.ID) {
		if c.Type == models.CardClue {
			clues++
		}
	}
	assert.Equal(t, 5, clues)
	for _, s := range threeSeats {
		view, err := f.svc.PlayerHand(f.ctx, sess.ID, s.user)
		require.NoError(t, err)
		n := 0
		for _, c := range view.Cards {
			if c.Type == models.CardClue {
				n++
			}
		}
		assert.Equal(t, 1, n, s.user)
	}
}

// 场景 C：非主持人开局
func TestStartRequiresHost(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)

	err := f.svc.Start(f.ctx, sess.ID, "bob")
	require.ErrorIs(t, err, ErrForbidden)
	assert.NotEmpty(t, Reason(err))
	assert.Equal(t, models.StatusSetup, f.session(t, sess.ID).Status)

	err = f.svc.Start(f.ctx, sess.ID, "mallory")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestStartRequiresCharacters(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats[:2])
	_, err := f.svc.JoinSession(f.ctx, sess.JoinCode, "carol")
	require.NoError(t, err)

	err = f.svc.Start(f.ctx, sess.ID, "alice")
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, models.StatusSetup, f.session(t, sess.ID).Status)
}

func TestStartTwiceDoesNotRedeal(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)
	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	before, err := f.svc.PlayerHand(f.ctx, sess.ID, "bob")
	require.NoError(t, err)

	err = f.svc.Start(f.ctx, sess.ID, "alice")
	require.ErrorIs(t, err, ErrInvalidState)

	after, err := f.svc.PlayerHand(f.ctx, sess.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.decks(t, sess.ID), 1)
}

func TestStartWithoutReferenceDeck(t *testing.T) {
	f := newFixture(t)
	sess, _ := f.setupSession(t, threeSeats)

	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	assert.Equal(t, models.StatusInProgress, f.session(t, sess.ID).Status)
	assert.Empty(t, f.decks(t, sess.ID))

	alerts := 0
	for _, m := range f.messages(t, sess.ID) {
		if m.SystemType == models.SystemAlert {
			alerts++
			assert.Equal(t, "ERROR: Reference deck not found! Cards could not be dealt.", m.Content)
		}
	}
	assert.Equal(t, 1, alerts)
}

func TestStartSmallGameWithoutReferenceDeck(t *testing.T) {
	f := newFixture(t)
	sess, _ := f.setupSession(t, threeSeats[:2])

	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	assert.Equal(t, 1, f.countMessages(t, sess.ID, "ERROR: Reference deck not found!"))
	assert.Zero(t, f.countMessages(t, sess.ID, "Warning: This game works best"))
}

func TestStartRollsBackFailedDeal(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)
	before := len(f.messages(t, sess.ID))

	broken := NewService(&failingStore{inner: f.st}, WithClock(f.clock.Now), WithRand(rand.New(rand.NewSource(1))))
	err := broken.Start(f.ctx, sess.ID, "alice")
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, models.StatusSetup, f.session(t, sess.ID).Status)
	assert.Empty(t, f.decks(t, sess.ID))
	assert.Len(t, f.messages(t, sess.ID), before)

	var players []models.Player
	require.NoError(t, f.st.InTx(f.ctx, func(tx store.Tx) error {
		var err error
		players, err = tx.ListPlayers(f.ctx, sess.ID)
		return err
	}))
	for _, p := range players {
		assert.Nil(t, p.CharacterCardID)
	}
}

func TestEnd(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)

	require.ErrorIs(t, f.svc.End(f.ctx, sess.ID, "alice"), ErrInvalidState)
	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))
	require.ErrorIs(t, f.svc.End(f.ctx, sess.ID, "bob"), ErrForbidden)
	require.NoError(t, f.svc.End(f.ctx, sess.ID, "alice"))

	got := f.session(t, sess.ID)
	assert.Equal(t, models.StatusFinished, got.Status)
	assert.NotNil(t, got.EndTime)
	require.ErrorIs(t, f.svc.End(f.ctx, sess.ID, "alice"), ErrInvalidState)
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "The game has ended."))
}

func TestResetKeepsDeal(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)
	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))

	require.ErrorIs(t, f.svc.Reset(f.ctx, sess.ID, "alice"), ErrInvalidState)

	f.clock.Advance(15 * time.Minute)
	revealed, err := f.svc.CheckCardReveals(f.ctx, sess.ID)
	require.NoError(t, err)
	require.NotEmpty(t, revealed)

	hand, err := f.svc.PlayerHand(f.ctx, sess.ID, "carol")
	require.NoError(t, err)

	require.NoError(t, f.svc.End(f.ctx, sess.ID, "alice"))
	require.ErrorIs(t, f.svc.Reset(f.ctx, sess.ID, "bob"), ErrForbidden)
	require.NoError(t, f.svc.Reset(f.ctx, sess.ID, "alice"))

	got := f.session(t, sess.ID)
	assert.Equal(t, models.StatusSetup, got.Status)
	assert.Nil(t, got.StartTime)
	assert.Nil(t, got.EndTime)
	for _, c := range f.cards(t, sess.ID) {
		assert.False(t, c.Revealed, c.Title)
	}

	after, err := f.svc.PlayerHand(f.ctx, sess.ID, "carol")
	require.NoError(t, err)
	require.Len(t, after.Cards, len(hand.Cards))
	for i := range hand.Cards {
		assert.Equal(t, hand.Cards[i].ID, after.Cards[i].ID)
	}
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "Game has been reset by the host."))

	// 再次开局沿用上一轮的牌
	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))
	assert.Len(t, f.decks(t, sess.ID), 1)
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "Cards from the previous round have been kept."))
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "Cards have been dealt."))
}

func TestTimeRemainingExpiresOnce(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)

	remaining, err := f.svc.TimeRemaining(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))
	f.clock.Advance(30*time.Minute + 20*time.Second)

	remaining, err = f.svc.TimeRemaining(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 59, remaining)
	elapsed, err := f.svc.TimeElapsed(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, elapsed)

	f.clock.Advance(time.Hour)
	for range 3 {
		remaining, err = f.svc.TimeRemaining(f.ctx, sess.ID)
		require.NoError(t, err)
		assert.Zero(t, remaining)
	}

	assert.Equal(t, models.StatusFinished, f.session(t, sess.ID).Status)
	assert.Equal(t, 1, f.countMessages(t, sess.ID, "The game has ended."))

	elapsed, err = f.svc.TimeElapsed(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, elapsed)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	sess, _ := f.setupSession(t, threeSeats)

	_, err := f.svc.Status(f.ctx, sess.ID, "mallory")
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.Start(f.ctx, sess.ID, "alice"))
	f.clock.Advance(12 * time.Minute)

	view, err := f.svc.Status(f.ctx, sess.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, view.Status)
	assert.Equal(t, 12, view.TimeElapsed)
	assert.Equal(t, 78, view.TimeRemaining)
	assert.Equal(t, 3, view.PlayerCount)
	// 线索牌 10 分钟后公开
	assert.Equal(t, 6, f.countMessages(t, sess.ID, "A new clue has been revealed: "))

	f.clock.Advance(80 * time.Minute)
	view, err = f.svc.Status(f.ctx, sess.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, view.Status)
	assert.Zero(t, view.TimeRemaining)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	f.seedReference(t, standardLayout())
	first, _ := f.setupSession(t, threeSeats)
	require.NoError(t, f.svc.Start(f.ctx, first.ID, "alice"))

	f.clock.Advance(45 * time.Minute)
	second, _, err := f.svc.CreateSession(f.ctx, "Croquet", "dave")
	require.NoError(t, err)
	_, err = f.svc.SelectCharacter(f.ctx, second.ID, "dave", "Duchess", models.ColorPurple)
	require.NoError(t, err)
	require.NoError(t, f.svc.Start(f.ctx, second.ID, "dave"))

	f.clock.Advance(50 * time.Minute)
	ended, err := f.svc.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ended)
	assert.Equal(t, models.StatusFinished, f.session(t, first.ID).Status)
	assert.Equal(t, models.StatusInProgress, f.session(t, second.ID).Status)
	assert.Equal(t, 2, f.countMessages(t, second.ID, "A new clue has been revealed: "))

	ended, err = f.svc.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, ended)
}

func TestListMySessions(t *testing.T) {
	f := newFixture(t)
	first, _, err := f.svc.CreateSession(f.ctx, "One", "alice")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, _, err := f.svc.CreateSession(f.ctx, "Two", "bob")
	require.NoError(t, err)
	_, err = f.svc.JoinSession(f.ctx, second.JoinCode, "alice")
	require.NoError(t, err)

	sessions, err := f.svc.ListMySessions(f.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	assert.Equal(t, first.ID, sessions[1].ID)
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	sess := startedGame(t, f)
	require.NoError(t, f.svc.End(f.ctx, sess.ID, "alice"))

	deleted, err := f.svc.Purge(f.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// 手动结束保留开局时设定的 end_time
	f.clock.Advance(24 * time.Hour)
	deleted, err = f.svc.Purge(f.ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	f.clock.Advance(7 * 24 * time.Hour)
	deleted, err = f.svc.Purge(f.ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = f.svc.Status(f.ctx, sess.ID, "alice")
	require.ErrorIs(t, err, ErrNotFound)
}
