package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"alice-srv/internal/models"
	"alice-srv/internal/store"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	ctx   context.Context
	st    *store.Memory
	clock *fakeClock
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	clock := newFakeClock()
	return &fixture{
		ctx:   context.Background(),
		st:    st,
		clock: clock,
		svc:   NewService(st, WithClock(clock.Now), WithRand(rand.New(rand.NewSource(1)))),
	}
}

// deckLayout 参考牌组每种类型的卡牌数量
type deckLayout struct {
	characters []string
	locations  int
	motives    int
	clues      int
	suspects   int
	clueOffset *int
}

func offset(m int) *int { return &m }

func (f *fixture) seedReference(t *testing.T, layout deckLayout) {
	t.Helper()
	err := f.st.InTx(f.ctx, func(tx store.Tx) error {
		deck := &models.Deck{Type: models.DeckReference, Name: "Wonderland", CreatedAt: f.clock.Now()}
		if err := tx.CreateDeck(f.ctx, deck); err != nil {
			return err
		}
		add := func(typ models.CardType, title string, off *int) error {
			return tx.CreateCard(f.ctx, &models.Card{
				DeckID:       deck.ID,
				Type:         typ,
				Title:        title,
				RevealOffset: off,
				CreatedAt:    f.clock.Now(),
			})
		}
		for _, name := range layout.characters {
			if err := add(models.CardCharacter, name, nil); err != nil {
				return err
			}
		}
		groups := []struct {
			typ models.CardType
			n   int
			off *int
		}{
			{models.CardLocation, layout.locations, nil},
			{models.CardMotive, layout.motives, nil},
			{models.CardClue, layout.clues, layout.clueOffset},
			{models.CardSuspect, layout.suspects, nil},
		}
		for _, g := range groups {
			for i := range g.n {
				if err := add(g.typ, fmt.Sprintf("%s %d", g.typ, i+1), g.off); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// standardLayout 三人局的参考牌组
func standardLayout() deckLayout {
	return deckLayout{
		characters: []string{"The Mad Hatter", "The Red Queen", "White Rabbit"},
		locations:  3,
		motives:    1,
		clues:      6,
		suspects:   3,
		clueOffset: offset(10),
	}
}

type seat struct {
	user      string
	character string
	color     models.Color
}

var threeSeats = []seat{
	{"alice", "Hatter", models.ColorBlue},
	{"bob", "queen", models.ColorGreen},
	{"carol", "Rabbit", models.ColorPink},
}

// setupSession 创建会话，按座位加入并选择角色，第一个座位是主持人
func (f *fixture) setupSession(t *testing.T, seats []seat) (*models.Session, map[string]*models.Player) {
	t.Helper()
	sess, _, err := f.svc.CreateSession(f.ctx, "Tea Party", seats[0].user)
	require.NoError(t, err)

	players := make(map[string]*models.Player, len(seats))
	for i, s := range seats {
		if i > 0 {
			_, err := f.svc.JoinSession(f.ctx, sess.JoinCode, s.user)
			require.NoError(t, err)
		}
		p, err := f.svc.SelectCharacter(f.ctx, sess.ID, s.user, s.character, s.color)
		require.NoError(t, err)
		players[s.user] = p
	}
	return sess, players
}

func (f *fixture) session(t *testing.T, id int64) *models.Session {
	t.Helper()
	var sess *models.Session
	require.NoError(t, f.st.InTx(f.ctx, func(tx store.Tx) error {
		var err error
		sess, err = tx.GetSession(f.ctx, id)
		return err
	}))
	require.NotNil(t, sess)
	return sess
}

func (f *fixture) messages(t *testing.T, sessionID int64) []models.Message {
	t.Helper()
	var msgs []models.Message
	require.NoError(t, f.st.InTx(f.ctx, func(tx store.Tx) error {
		var err error
		msgs, err = tx.ListMessages(f.ctx, sessionID, 0)
		return err
	}))
	return msgs
}

func (f *fixture) countMessages(t *testing.T, sessionID int64, prefix string) int {
	t.Helper()
	n := 0
	for _, m := range f.messages(t, sessionID) {
		if strings.HasPrefix(m.Content, prefix) {
			n++
		}
	}
	return n
}

func (f *fixture) decks(t *testing.T, sessionID int64) []models.Deck {
	t.Helper()
	var decks []models.Deck
	require.NoError(t, f.st.InTx(f.ctx, func(tx store.Tx) error {
		var err error
		decks, err = tx.ListSessionDecks(f.ctx, sessionID)
		return err
	}))
	return decks
}

func (f *fixture) cards(t *testing.T, sessionID int64) []models.Card {
	t.Helper()
	var cards []models.Card
	require.NoError(t, f.st.InTx(f.ctx, func(tx store.Tx) error {
		var err error
		cards, err = tx.ListSessionCards(f.ctx, sessionID)
		return err
	}))
	return cards
}

// failingStore 在指定操作上返回错误，用于验证事务回滚
type failingStore struct {
	inner store.Store
}

var errInjected = errors.New("injected failure")

func (s *failingStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.inner.InTx(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx})
	})
}

type failingTx struct {
	store.Tx
}

func (t *failingTx) AddHandCard(context.Context, int64, int64) error {
	return errInjected
}
