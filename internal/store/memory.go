package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"alice-srv/internal/models"
)

// Memory 内存存储
// 事务之间完全串行，出错时恢复到事务开始前的快照
type Memory struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	seq       map[string]int64
	users     map[string]models.User
	sessions  map[int64]models.Session
	players   map[int64]models.Player
	decks     map[int64]models.Deck
	cards     map[int64]models.Card
	hands     map[int64]models.Hand
	handCards map[int64]int64 // card_id -> hand_id
	messages  map[int64]models.Message
}

// NewMemory 创建内存存储
func NewMemory() *Memory {
	return &Memory{
		data: &memData{
			seq:       make(map[string]int64),
			users:     make(map[string]models.User),
			sessions:  make(map[int64]models.Session),
			players:   make(map[int64]models.Player),
			decks:     make(map[int64]models.Deck),
			cards:     make(map[int64]models.Card),
			hands:     make(map[int64]models.Hand),
			handCards: make(map[int64]int64),
			messages:  make(map[int64]models.Message),
		},
	}
}

// InTx 在内存事务中执行 fn，事务串行执行，开始时复制全部数据用于回滚
func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	defer func() {
		if r := recover(); r != nil {
			m.data = snapshot
			panic(r)
		}
		if err != nil {
			m.data = snapshot
		}
	}()

	return fn(&memTx{d: m.data})
}

func (d *memData) clone() *memData {
	return &memData{
		seq:       maps.Clone(d.seq),
		users:     maps.Clone(d.users),
		sessions:  maps.Clone(d.sessions),
		players:   maps.Clone(d.players),
		decks:     maps.Clone(d.decks),
		cards:     maps.Clone(d.cards),
		hands:     maps.Clone(d.hands),
		handCards: maps.Clone(d.handCards),
		messages:  maps.Clone(d.messages),
	}
}

func (d *memData) next(table string) int64 {
	d.seq[table]++
	return d.seq[table]
}

// 存入 map 的值不与调用方共享指针
func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copySession(s models.Session) models.Session {
	s.StartTime = copyTime(s.StartTime)
	s.EndTime = copyTime(s.EndTime)
	return s
}

func copyPlayer(p models.Player) models.Player {
	p.CharacterCardID = copyInt64(p.CharacterCardID)
	return p
}

func copyCard(c models.Card) models.Card {
	c.RevealOffset = copyInt(c.RevealOffset)
	return c
}

func copyMessage(m models.Message) models.Message {
	m.SenderID = copyInt64(m.SenderID)
	m.RecipientID = copyInt64(m.RecipientID)
	return m
}

type memTx struct {
	d *memData
}

var _ Tx = (*memTx)(nil)

// GetUser 获取用户
func (t *memTx) GetUser(_ context.Context, userID string) (*models.User, error) {
	u, ok := t.d.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// CreateUser 创建用户
func (t *memTx) CreateUser(_ context.Context, u *models.User) error {
	if _, ok := t.d.users[u.UserID]; ok {
		return ErrConflict
	}
	t.d.users[u.UserID] = *u
	return nil
}

// UpdateUserPassword 更新用户密码
func (t *memTx) UpdateUserPassword(_ context.Context, userID, password, ip string) error {
	u, ok := t.d.users[userID]
	if !ok {
		return nil
	}
	u.Password = password
	u.UpdateIP = ip
	u.UpdatedAt = time.Now()
	t.d.users[userID] = u
	return nil
}

// TouchUser 更新最后活跃时间
func (t *memTx) TouchUser(_ context.Context, userID, ip string) error {
	u, ok := t.d.users[userID]
	if !ok {
		return nil
	}
	u.UpdateIP = ip
	u.UpdatedAt = time.Now()
	t.d.users[userID] = u
	return nil
}

// CreateSession 创建会话
func (t *memTx) CreateSession(_ context.Context, s *models.Session) error {
	for _, existing := range t.d.sessions {
		if existing.JoinCode == s.JoinCode {
			return ErrConflict
		}
	}
	s.ID = t.d.next("sessions")
	t.d.sessions[s.ID] = copySession(*s)
	return nil
}

// GetSession 获取会话
func (t *memTx) GetSession(_ context.Context, id int64) (*models.Session, error) {
	s, ok := t.d.sessions[id]
	if !ok {
		return nil, nil
	}
	s = copySession(s)
	return &s, nil
}

// LockSession 内存事务本身是串行的
func (t *memTx) LockSession(ctx context.Context, id int64) (*models.Session, error) {
	return t.GetSession(ctx, id)
}

// GetSessionByJoinCode 根据加入码获取会话
func (t *memTx) GetSessionByJoinCode(_ context.Context, code string) (*models.Session, error) {
	for _, s := range t.d.sessions {
		if s.JoinCode == code {
			s = copySession(s)
			return &s, nil
		}
	}
	return nil, nil
}

// UpdateSession 更新会话状态和时间
func (t *memTx) UpdateSession(_ context.Context, s *models.Session) error {
	existing, ok := t.d.sessions[s.ID]
	if !ok {
		return nil
	}
	existing.Title = s.Title
	existing.Status = s.Status
	existing.StartTime = copyTime(s.StartTime)
	existing.EndTime = copyTime(s.EndTime)
	t.d.sessions[s.ID] = existing
	return nil
}

// ListSessionIDsByStatus 按状态列出会话ID
func (t *memTx) ListSessionIDsByStatus(_ context.Context, status models.SessionStatus) ([]int64, error) {
	var ids []int64
	for id, s := range t.d.sessions {
		if s.Status == status {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// ListSessionsByUser 列出用户参与的会话
func (t *memTx) ListSessionsByUser(_ context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	for _, p := range t.d.players {
		if p.UserID != userID {
			continue
		}
		if s, ok := t.d.sessions[p.SessionID]; ok {
			sessions = append(sessions, copySession(s))
		}
	}
	slices.SortFunc(sessions, func(a, b models.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sessions, nil
}

// DeleteFinishedSessions 级联删除过期的已结束会话
func (t *memTx) DeleteFinishedSessions(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, s := range t.d.sessions {
		if s.Status != models.StatusFinished || s.EndTime == nil || !s.EndTime.Before(before) {
			continue
		}
		t.deleteSession(id)
		n++
	}
	return n, nil
}

func (t *memTx) deleteSession(id int64) {
	delete(t.d.sessions, id)
	for pid, p := range t.d.players {
		if p.SessionID == id {
			delete(t.d.players, pid)
		}
	}
	for hid, h := range t.d.hands {
		if h.SessionID != id {
			continue
		}
		delete(t.d.hands, hid)
		for cardID, handID := range t.d.handCards {
			if handID == hid {
				delete(t.d.handCards, cardID)
			}
		}
	}
	for did, d := range t.d.decks {
		if d.SessionID == nil || *d.SessionID != id {
			continue
		}
		delete(t.d.decks, did)
		for cid, c := range t.d.cards {
			if c.DeckID == did {
				delete(t.d.cards, cid)
			}
		}
	}
	for mid, m := range t.d.messages {
		if m.SessionID == id {
			delete(t.d.messages, mid)
		}
	}
}

// checkPlayerUnique 模拟 players 表上的唯一索引
func (t *memTx) checkPlayerUnique(p *models.Player) error {
	for _, other := range t.d.players {
		if other.ID == p.ID || other.SessionID != p.SessionID {
			continue
		}
		if other.UserID == p.UserID {
			return ErrConflict
		}
		if p.Color != "" && other.Color == p.Color {
			return ErrConflict
		}
		if p.CharacterName != "" && strings.EqualFold(other.CharacterName, p.CharacterName) {
			return ErrConflict
		}
	}
	return nil
}

// CreatePlayer 创建玩家
func (t *memTx) CreatePlayer(_ context.Context, p *models.Player) error {
	if err := t.checkPlayerUnique(p); err != nil {
		return err
	}
	p.ID = t.d.next("players")
	t.d.players[p.ID] = copyPlayer(*p)
	return nil
}

// GetPlayer 获取玩家
func (t *memTx) GetPlayer(_ context.Context, id int64) (*models.Player, error) {
	p, ok := t.d.players[id]
	if !ok {
		return nil, nil
	}
	p = copyPlayer(p)
	return &p, nil
}

// GetPlayerByUser 获取用户在会话中的玩家
func (t *memTx) GetPlayerByUser(_ context.Context, sessionID int64, userID string) (*models.Player, error) {
	for _, p := range t.d.players {
		if p.SessionID == sessionID && p.UserID == userID {
			p = copyPlayer(p)
			return &p, nil
		}
	}
	return nil, nil
}

// ListPlayers 列出会话中的玩家
func (t *memTx) ListPlayers(_ context.Context, sessionID int64) ([]models.Player, error) {
	var players []models.Player
	for _, p := range t.d.players {
		if p.SessionID == sessionID {
			players = append(players, copyPlayer(p))
		}
	}
	slices.SortFunc(players, func(a, b models.Player) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return players, nil
}

// UpdatePlayer 更新玩家
func (t *memTx) UpdatePlayer(_ context.Context, p *models.Player) error {
	if _, ok := t.d.players[p.ID]; !ok {
		return nil
	}
	if err := t.checkPlayerUnique(p); err != nil {
		return err
	}
	t.d.players[p.ID] = copyPlayer(*p)
	return nil
}

// GetReferenceDeck 获取模板牌组
func (t *memTx) GetReferenceDeck(_ context.Context) (*models.Deck, error) {
	var found *models.Deck
	for _, d := range t.d.decks {
		if d.Type == models.DeckReference && d.SessionID == nil {
			if found == nil || d.ID < found.ID {
				found = &d
			}
		}
	}
	return found, nil
}

// CreateDeck 创建牌组
func (t *memTx) CreateDeck(ctx context.Context, d *models.Deck) error {
	if d.Type == models.DeckReference {
		if ref, _ := t.GetReferenceDeck(ctx); ref != nil {
			return ErrConflict
		}
	}
	d.ID = t.d.next("decks")
	d.SessionID = copyInt64(d.SessionID)
	t.d.decks[d.ID] = *d
	return nil
}

// DeleteDeck 删除牌组及其卡牌
func (t *memTx) DeleteDeck(_ context.Context, id int64) error {
	delete(t.d.decks, id)
	for cardID, c := range t.d.cards {
		if c.DeckID != id {
			continue
		}
		delete(t.d.cards, cardID)
		delete(t.d.handCards, cardID)
		for pid, p := range t.d.players {
			if p.CharacterCardID != nil && *p.CharacterCardID == cardID {
				p.CharacterCardID = nil
				t.d.players[pid] = p
			}
		}
	}
	return nil
}

// ListSessionDecks 列出会话的牌组
func (t *memTx) ListSessionDecks(_ context.Context, sessionID int64) ([]models.Deck, error) {
	var decks []models.Deck
	for _, d := range t.d.decks {
		if d.SessionID != nil && *d.SessionID == sessionID {
			d.SessionID = copyInt64(d.SessionID)
			decks = append(decks, d)
		}
	}
	slices.SortFunc(decks, func(a, b models.Deck) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return decks, nil
}

// CreateCard 创建卡牌
func (t *memTx) CreateCard(_ context.Context, c *models.Card) error {
	c.ID = t.d.next("cards")
	t.d.cards[c.ID] = copyCard(*c)
	return nil
}

func (t *memTx) sortedCards(keep func(c models.Card) bool) []models.Card {
	var cards []models.Card
	for _, c := range t.d.cards {
		if keep(c) {
			cards = append(cards, copyCard(c))
		}
	}
	slices.SortFunc(cards, func(a, b models.Card) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return cards
}

// ListDeckCards 列出牌组中的卡牌
func (t *memTx) ListDeckCards(_ context.Context, deckID int64) ([]models.Card, error) {
	return t.sortedCards(func(c models.Card) bool { return c.DeckID == deckID }), nil
}

// sessionGameDeck 卡牌是否属于会话的游戏牌组
func (t *memTx) sessionGameDeck(sessionID, deckID int64) bool {
	d, ok := t.d.decks[deckID]
	return ok && d.Type == models.DeckGame && d.SessionID != nil && *d.SessionID == sessionID
}

// ListSessionCards 列出会话游戏牌组中的卡牌
func (t *memTx) ListSessionCards(_ context.Context, sessionID int64) ([]models.Card, error) {
	return t.sortedCards(func(c models.Card) bool { return t.sessionGameDeck(sessionID, c.DeckID) }), nil
}

// GetSessionCard 获取会话中的卡牌
func (t *memTx) GetSessionCard(_ context.Context, sessionID, cardID int64) (*models.Card, error) {
	c, ok := t.d.cards[cardID]
	if !ok || !t.sessionGameDeck(sessionID, c.DeckID) {
		return nil, nil
	}
	c = copyCard(c)
	return &c, nil
}

// ListRevealCandidates 列出待定时公开的卡牌
func (t *memTx) ListRevealCandidates(_ context.Context, sessionID int64) ([]models.Card, error) {
	return t.sortedCards(func(c models.Card) bool {
		return !c.Revealed && c.RevealOffset != nil && t.sessionGameDeck(sessionID, c.DeckID)
	}), nil
}

// SetCardRevealed 设置卡牌公开状态
func (t *memTx) SetCardRevealed(_ context.Context, cardID int64, revealed bool) error {
	c, ok := t.d.cards[cardID]
	if !ok {
		return nil
	}
	c.Revealed = revealed
	t.d.cards[cardID] = c
	return nil
}

// ResetSessionCards 将会话所有卡牌恢复为未公开
func (t *memTx) ResetSessionCards(_ context.Context, sessionID int64) (int64, error) {
	var n int64
	for id, c := range t.d.cards {
		if t.sessionGameDeck(sessionID, c.DeckID) && c.Revealed {
			c.Revealed = false
			t.d.cards[id] = c
			n++
		}
	}
	return n, nil
}

// CreateHand 创建手牌
func (t *memTx) CreateHand(_ context.Context, h *models.Hand) error {
	for _, other := range t.d.hands {
		if other.PlayerID == h.PlayerID {
			return ErrConflict
		}
	}
	h.ID = t.d.next("hands")
	t.d.hands[h.ID] = *h
	return nil
}

// GetHand 获取玩家手牌
func (t *memTx) GetHand(_ context.Context, playerID int64) (*models.Hand, error) {
	for _, h := range t.d.hands {
		if h.PlayerID == playerID {
			return &h, nil
		}
	}
	return nil, nil
}

// ListHandCards 列出手牌中的卡牌
func (t *memTx) ListHandCards(_ context.Context, handID int64) ([]models.Card, error) {
	return t.sortedCards(func(c models.Card) bool {
		h, ok := t.d.handCards[c.ID]
		return ok && h == handID
	}), nil
}

// AddHandCard 向手牌添加卡牌
func (t *memTx) AddHandCard(_ context.Context, handID, cardID int64) error {
	if h, ok := t.d.handCards[cardID]; ok {
		if h == handID {
			return nil
		}
		return ErrConflict
	}
	t.d.handCards[cardID] = handID
	return nil
}

// RemoveHandCard 从手牌移除卡牌
func (t *memTx) RemoveHandCard(_ context.Context, handID, cardID int64) error {
	if h, ok := t.d.handCards[cardID]; ok && h == handID {
		delete(t.d.handCards, cardID)
	}
	return nil
}

// CreateMessage 创建消息
func (t *memTx) CreateMessage(_ context.Context, m *models.Message) error {
	m.ID = t.d.next("messages")
	t.d.messages[m.ID] = copyMessage(*m)
	return nil
}

// GetMessage 读取会话中的一条消息
func (t *memTx) GetMessage(_ context.Context, sessionID, messageID int64) (*models.Message, error) {
	m, ok := t.d.messages[messageID]
	if !ok || m.SessionID != sessionID {
		return nil, nil
	}
	m = copyMessage(m)
	return &m, nil
}

// ListMessages 列出 afterID 之后的消息，按 id 升序
func (t *memTx) ListMessages(_ context.Context, sessionID, afterID int64) ([]models.Message, error) {
	var msgs []models.Message
	for _, m := range t.d.messages {
		if m.SessionID == sessionID && m.ID > afterID {
			msgs = append(msgs, copyMessage(m))
		}
	}
	slices.SortFunc(msgs, func(a, b models.Message) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return msgs, nil
}

// DeleteMessages 删除会话的所有消息
func (t *memTx) DeleteMessages(_ context.Context, sessionID int64) (int64, error) {
	var n int64
	for id, m := range t.d.messages {
		if m.SessionID == sessionID {
			delete(t.d.messages, id)
			n++
		}
	}
	return n, nil
}

// GetSessionStats 获取会话统计
func (t *memTx) GetSessionStats(_ context.Context, sessionID int64) (*models.SessionStats, error) {
	var s models.SessionStats
	for _, p := range t.d.players {
		if p.SessionID == sessionID {
			s.PlayerCount++
		}
	}
	for id, c := range t.d.cards {
		if !t.sessionGameDeck(sessionID, c.DeckID) {
			continue
		}
		s.CardCount++
		if c.Revealed {
			s.RevealedCount++
		}
		if _, ok := t.d.handCards[id]; ok {
			s.DealtCount++
		}
	}
	for _, m := range t.d.messages {
		if m.SessionID != sessionID {
			continue
		}
		s.MessageCount++
		if m.IsDirect() {
			s.DirectCount++
		}
	}
	return &s, nil
}
