package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alice-srv/internal/models"
	"alice-srv/internal/store"
)

// MaxCluesPerPlayer 每位玩家最多分到的线索牌数
const MaxCluesPerPlayer = 2

// clueAllocation 计算线索牌分配，余下的线索牌不发给任何人
func clueAllocation(available, players int) (total, perPlayer int) {
	if players <= 0 {
		return 0, 0
	}
	total = min(available, players*MaxCluesPerPlayer)
	return total, total / players
}

// characterMatches 角色名与卡牌标题互为子串，忽略大小写
func characterMatches(name, title string) bool {
	if name == "" || title == "" {
		return false
	}
	name = strings.ToLower(name)
	title = strings.ToLower(title)
	return strings.Contains(title, name) || strings.Contains(name, title)
}

// deal 从参考牌组克隆本局用牌并分发给玩家，必须在 Start 的事务中调用
func (s *Service) deal(ctx context.Context, tx store.Tx, sess *models.Session, players []models.Player) error {
	ref, err := tx.GetReferenceDeck(ctx)
	if err != nil {
		return fmt.Errorf("获取参考牌组失败: %w", err)
	}
	if ref == nil {
		slog.Warn("参考牌组不存在，跳过发牌", "sessionId", sess.ID)
		return s.systemMessage(ctx, tx, sess.ID, models.SystemAlert,
			"ERROR: Reference deck not found! Cards could not be dealt.")
	}
	if len(players) < RecommendedPlayers {
		if err := s.systemMessage(ctx, tx, sess.ID, models.SystemWarning,
			"Warning: This game works best with 3-5 players."); err != nil {
			return err
		}
	}
	if len(players) == 0 {
		return nil
	}

	refCards, err := tx.ListDeckCards(ctx, ref.ID)
	if err != nil {
		return fmt.Errorf("获取参考卡牌失败: %w", err)
	}
	byType := make(map[models.CardType][]models.Card, len(models.CardTypes))
	for _, c := range refCards {
		byType[c.Type] = append(byType[c.Type], c)
	}
	for _, typ := range models.CardTypes {
		s.shuffle(byType[typ])
	}

	characters := byType[models.CardCharacter]
	locations := byType[models.CardLocation]
	motives := byType[models.CardMotive]
	clues := byType[models.CardClue]
	suspects := byType[models.CardSuspect]

	n := len(players)
	totalClues, perPlayer := clueAllocation(len(clues), n)

	now := s.now()
	sid := sess.ID
	deck := &models.Deck{
		Type:      models.DeckGame,
		Name:      "Game Deck for " + sess.Title,
		SessionID: &sid,
		CreatedAt: now,
	}
	if err := tx.CreateDeck(ctx, deck); err != nil {
		return fmt.Errorf("创建本局牌组失败: %w", err)
	}

	selected := make([]models.Card, 0, 3*n+1+totalClues)
	selected = append(selected, characters[:min(n, len(characters))]...)
	selected = append(selected, locations[:min(n, len(locations))]...)
	selected = append(selected, motives[:min(1, len(motives))]...)
	selected = append(selected, clues[:totalClues]...)
	selected = append(selected, suspects[:min(n, len(suspects))]...)

	// 参考卡牌 ID -> 本局卡牌 ID
	clones := make(map[int64]int64, len(selected))
	for _, rc := range selected {
		clone := rc.CloneInto(deck.ID, now)
		if err := tx.CreateCard(ctx, &clone); err != nil {
			return fmt.Errorf("复制卡牌失败: %w", err)
		}
		clones[rc.ID] = clone.ID
	}

	// cloneAt 返回第 i 张洗过的卡牌对应的副本
	cloneAt := func(cards []models.Card, i int) (int64, bool) {
		if i >= len(cards) {
			return 0, false
		}
		id, ok := clones[cards[i].ID]
		return id, ok
	}

	hands := make([]*models.Hand, n)
	for i := range players {
		p := &players[i]
		hand, err := ensureHandFor(ctx, tx, p, now)
		if err != nil {
			return err
		}
		hands[i] = hand

		assigned := false
		for _, c := range characters {
			if !characterMatches(p.CharacterName, c.Title) {
				continue
			}
			if id, ok := clones[c.ID]; ok {
				p.CharacterCardID = &id
				assigned = true
				break
			}
		}
		if !assigned {
			if id, ok := cloneAt(characters, i); ok {
				p.CharacterCardID = &id
				assigned = true
			}
		}
		if assigned {
			if err := tx.UpdatePlayer(ctx, p); err != nil {
				return fmt.Errorf("分配角色牌失败: %w", err)
			}
		}

		var dealt []int64
		for j := range perPlayer {
			if id, ok := cloneAt(clues, i*perPlayer+j); ok {
				dealt = append(dealt, id)
			}
		}
		if id, ok := cloneAt(locations, i); ok {
			dealt = append(dealt, id)
		}
		if id, ok := cloneAt(suspects, i); ok {
			dealt = append(dealt, id)
		}
		for _, id := range dealt {
			if err := tx.AddHandCard(ctx, hand.ID, id); err != nil {
				return fmt.Errorf("发牌失败: %w", err)
			}
		}
	}

	if id, ok := cloneAt(motives, 0); ok {
		winner := s.intn(n)
		if err := tx.AddHandCard(ctx, hands[winner].ID, id); err != nil {
			return fmt.Errorf("发放动机牌失败: %w", err)
		}
	}

	slog.Info("发牌完成", "sessionId", sess.ID, "deckId", deck.ID, "cards", len(clones),
		"players", n, "cluesPerPlayer", perPlayer)
	return s.systemMessage(ctx, tx, sess.ID, models.SystemInfo,
		"Cards have been dealt. Check your hand to see your cards.")
}

// ensureHand 确保玩家拥有手牌
func ensureHand(ctx context.Context, tx store.Tx, p *models.Player, now time.Time) error {
	_, err := ensureHandFor(ctx, tx, p, now)
	return err
}

func ensureHandFor(ctx context.Context, tx store.Tx, p *models.Player, now time.Time) (*models.Hand, error) {
	hand, err := tx.GetHand(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("获取手牌失败: %w", err)
	}
	if hand != nil {
		return hand, nil
	}
	hand = &models.Hand{SessionID: p.SessionID, PlayerID: p.ID, CreatedAt: now}
	if err := tx.CreateHand(ctx, hand); err != nil {
		return nil, fmt.Errorf("创建手牌失败: %w", err)
	}
	return hand, nil
}

// DealKind 主持人补发的卡牌种类
type DealKind string

const (
	DealCharacters DealKind = "characters"
	DealClues      DealKind = "clues"
	DealLocations  DealKind = "locations"
	DealSuspects   DealKind = "suspects"
	DealMotive     DealKind = "motive"
)

var dealKindTypes = map[DealKind]models.CardType{
	DealCharacters: models.CardCharacter,
	DealClues:      models.CardClue,
	DealLocations:  models.CardLocation,
	DealSuspects:   models.CardSuspect,
	DealMotive:     models.CardMotive,
}

// AdminDealCards 主持人补发一类卡牌，返回发出的张数
// 线索补足到每人 MaxCluesPerPlayer 张，地点和嫌疑人每人一张，动机牌全局一张，
// 角色牌只发给还没有角色牌的玩家
func (s *Service) AdminDealCards(ctx context.Context, sessionID int64, userID string, kind DealKind) (int, error) {
	typ, ok := dealKindTypes[kind]
	if !ok {
		return 0, newError(ErrValidation, "无效的发牌类型: %s", kind)
	}

	dealt := 0
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, _, err := loadHost(ctx, tx, sessionID, userID, true)
		if err != nil {
			return err
		}
		if sess.Status == models.StatusFinished {
			return newError(ErrInvalidState, "游戏已结束")
		}

		players, err := tx.ListPlayers(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("获取玩家列表失败: %w", err)
		}
		if len(players) == 0 {
			return nil
		}

		now := s.now()
		hands := make([]*models.Hand, len(players))
		held := make([]int, len(players))
		assigned := make(map[int64]bool)
		for i := range players {
			p := &players[i]
			if p.CharacterCardID != nil {
				assigned[*p.CharacterCardID] = true
			}
			hand, err := ensureHandFor(ctx, tx, p, now)
			if err != nil {
				return err
			}
			hands[i] = hand
			cards, err := tx.ListHandCards(ctx, hand.ID)
			if err != nil {
				return fmt.Errorf("获取手牌失败: %w", err)
			}
			for _, c := range cards {
				assigned[c.ID] = true
				if c.Type == typ {
					held[i]++
				}
			}
		}

		pool, err := s.newDealPool(ctx, tx, sess, typ, assigned, now)
		if err != nil {
			return err
		}

		switch kind {
		case DealCharacters:
			for i := range players {
				p := &players[i]
				if p.CharacterCardID != nil {
					continue
				}
				id, ok, err := pool.take(ctx, tx, func(c models.Card) bool {
					return characterMatches(p.CharacterName, c.Title)
				})
				if err == nil && !ok {
					id, ok, err = pool.take(ctx, tx, nil)
				}
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				p.CharacterCardID = &id
				if err := tx.UpdatePlayer(ctx, p); err != nil {
					return fmt.Errorf("分配角色牌失败: %w", err)
				}
				dealt++
			}

		case DealMotive:
			for _, n := range held {
				if n > 0 {
					return nil
				}
			}
			id, ok, err := pool.take(ctx, tx, nil)
			if err != nil || !ok {
				return err
			}
			if err := tx.AddHandCard(ctx, hands[s.intn(len(hands))].ID, id); err != nil {
				return fmt.Errorf("发放动机牌失败: %w", err)
			}
			dealt++

		default:
			want := 1
			if kind == DealClues {
				want = MaxCluesPerPlayer
			}
		fill:
			for i := range players {
				for held[i] < want {
					id, ok, err := pool.take(ctx, tx, nil)
					if err != nil {
						return err
					}
					if !ok {
						break fill
					}
					if err := tx.AddHandCard(ctx, hands[i].ID, id); err != nil {
						return fmt.Errorf("发牌失败: %w", err)
					}
					held[i]++
					dealt++
				}
			}
		}

		if dealt == 0 {
			return nil
		}
		return s.systemMessage(ctx, tx, sess.ID, models.SystemInfo,
			"The host has dealt %d %s card(s).", dealt, typ)
	})
	if err != nil {
		return 0, err
	}

	slog.Info("主持人补发卡牌", "sessionId", sessionID, "kind", kind, "dealt", dealt)
	return dealt, nil
}

// dealPool 补发时可用的卡牌
// 先用本局牌组中未分配的卡牌，再从参考牌组复制本局还没有的卡牌
type dealPool struct {
	sess      *models.Session
	deckID    int64
	now       time.Time
	available []models.Card
	extras    []models.Card
}

func (s *Service) newDealPool(ctx context.Context, tx store.Tx, sess *models.Session, typ models.CardType, assigned map[int64]bool, now time.Time) (*dealPool, error) {
	pool := &dealPool{sess: sess, now: now}

	decks, err := tx.ListSessionDecks(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("获取会话牌组失败: %w", err)
	}
	for _, d := range decks {
		if d.Type == models.DeckGame {
			pool.deckID = d.ID
			break
		}
	}

	cards, err := tx.ListSessionCards(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("获取本局卡牌失败: %w", err)
	}
	titles := make(map[string]bool)
	for _, c := range cards {
		if c.Type != typ {
			continue
		}
		titles[c.Title] = true
		if !assigned[c.ID] {
			pool.available = append(pool.available, c)
		}
	}

	ref, err := tx.GetReferenceDeck(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取参考牌组失败: %w", err)
	}
	if ref != nil {
		refCards, err := tx.ListDeckCards(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("获取参考卡牌失败: %w", err)
		}
		for _, c := range refCards {
			if c.Type != typ || titles[c.Title] {
				continue
			}
			titles[c.Title] = true
			pool.extras = append(pool.extras, c)
		}
	}

	s.shuffle(pool.available)
	s.shuffle(pool.extras)
	return pool, nil
}

// take 取出一张满足 match 的卡牌，match 为 nil 时取任意一张
func (p *dealPool) take(ctx context.Context, tx store.Tx, match func(models.Card) bool) (int64, bool, error) {
	for i, c := range p.available {
		if match != nil && !match(c) {
			continue
		}
		p.available = append(p.available[:i], p.available[i+1:]...)
		return c.ID, true, nil
	}

	for i, c := range p.extras {
		if match != nil && !match(c) {
			continue
		}
		p.extras = append(p.extras[:i], p.extras[i+1:]...)

		if p.deckID == 0 {
			sid := p.sess.ID
			deck := &models.Deck{
				Type:      models.DeckGame,
				Name:      "Game Deck for " + p.sess.Title,
				SessionID: &sid,
				CreatedAt: p.now,
			}
			if err := tx.CreateDeck(ctx, deck); err != nil {
				return 0, false, fmt.Errorf("创建本局牌组失败: %w", err)
			}
			p.deckID = deck.ID
		}
		clone := c.CloneInto(p.deckID, p.now)
		if err := tx.CreateCard(ctx, &clone); err != nil {
			return 0, false, fmt.Errorf("复制卡牌失败: %w", err)
		}
		return clone.ID, true, nil
	}
	return 0, false, nil
}
