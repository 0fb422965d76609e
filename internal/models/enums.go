package models

// SessionStatus 游戏会话状态
type SessionStatus string

const (
	StatusSetup      SessionStatus = "setup"
	StatusInProgress SessionStatus = "in_progress"
	StatusFinished   SessionStatus = "finished"
)

// Valid 检查状态是否合法
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusSetup, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// DeckType 牌组类型
type DeckType string

const (
	// DeckReference 模板牌组，不属于任何会话
	DeckReference DeckType = "reference"
	// DeckGame 会话牌组，开局时从模板复制
	DeckGame DeckType = "game"
)

// Valid 检查牌组类型是否合法
func (t DeckType) Valid() bool {
	return t == DeckReference || t == DeckGame
}

// CardType 卡牌类型
type CardType string

const (
	CardCharacter CardType = "character"
	CardMotive    CardType = "motive"
	CardLocation  CardType = "location"
	CardClue      CardType = "clue"
	CardSuspect   CardType = "suspect"
)

// CardTypes 所有卡牌类型，按发牌时的洗牌顺序排列
var CardTypes = []CardType{CardCharacter, CardLocation, CardMotive, CardClue, CardSuspect}

// Valid 检查卡牌类型是否合法
func (t CardType) Valid() bool {
	switch t {
	case CardCharacter, CardMotive, CardLocation, CardClue, CardSuspect:
		return true
	}
	return false
}

// SystemType 系统消息类型
type SystemType string

const (
	SystemAlert   SystemType = "alert"
	SystemSuccess SystemType = "success"
	SystemInfo    SystemType = "info"
	SystemWarning SystemType = "warning"
)

// Valid 检查系统消息类型是否合法
func (t SystemType) Valid() bool {
	switch t {
	case SystemAlert, SystemSuccess, SystemInfo, SystemWarning:
		return true
	}
	return false
}

// Color 玩家颜色
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
)

// PlayerColors 可选的玩家颜色
var PlayerColors = []Color{ColorBlue, ColorGreen, ColorYellow, ColorPurple, ColorPink}

// Valid 检查颜色是否合法
func (c Color) Valid() bool {
	for _, pc := range PlayerColors {
		if c == pc {
			return true
		}
	}
	return false
}
