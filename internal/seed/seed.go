// Package seed 从 YAML 文件导入参考牌组
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"alice-srv/internal/models"
	"alice-srv/internal/store"

	"gopkg.in/yaml.v3"
)

// Deck 参考牌组文件
type Deck struct {
	Name  string `yaml:"name"`
	Cards []Card `yaml:"cards"`
}

// Card 参考牌组中的一张卡牌
type Card struct {
	Type         models.CardType `yaml:"type"`
	Title        string          `yaml:"title"`
	Description  string          `yaml:"description"`
	FrontImage   string          `yaml:"frontImage"`
	BackImage    string          `yaml:"backImage"`
	RevealOffset *int            `yaml:"revealOffset"`
}

// Load 解析并校验牌组
func Load(r io.Reader) (*Deck, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var d Deck
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("牌组文件为空")
		}
		return nil, fmt.Errorf("解析牌组失败: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFile 从文件读取牌组
func LoadFile(path string) (*Deck, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开牌组文件失败: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate 检查牌组内容
func (d *Deck) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("牌组名称不能为空")
	}
	if len(d.Cards) == 0 {
		return fmt.Errorf("牌组 %s 没有卡牌", d.Name)
	}
	for i := range d.Cards {
		c := &d.Cards[i]
		c.Title = strings.TrimSpace(c.Title)
		if !c.Type.Valid() {
			return fmt.Errorf("第 %d 张卡牌类型无效: %q", i+1, c.Type)
		}
		if c.Title == "" {
			return fmt.Errorf("第 %d 张卡牌标题不能为空", i+1)
		}
		if c.RevealOffset != nil && *c.RevealOffset < 0 {
			return fmt.Errorf("第 %d 张卡牌 %s 的公开时间不能为负数", i+1, c.Title)
		}
	}
	return nil
}

// Counts 按类型统计卡牌数量
func (d *Deck) Counts() map[models.CardType]int {
	counts := make(map[models.CardType]int, len(models.CardTypes))
	for _, c := range d.Cards {
		counts[c.Type]++
	}
	return counts
}

// Apply 在一个事务中用 d 替换当前参考牌组
// 已开局会话的牌组是副本，不受影响
func Apply(ctx context.Context, st store.Store, d *Deck) (*models.Deck, error) {
	now := time.Now()
	var created *models.Deck

	err := st.InTx(ctx, func(tx store.Tx) error {
		old, err := tx.GetReferenceDeck(ctx)
		if err != nil {
			return fmt.Errorf("获取参考牌组失败: %w", err)
		}
		if old != nil {
			if err := tx.DeleteDeck(ctx, old.ID); err != nil {
				return fmt.Errorf("删除旧参考牌组失败: %w", err)
			}
		}

		deck := &models.Deck{Type: models.DeckReference, Name: d.Name, CreatedAt: now}
		if err := tx.CreateDeck(ctx, deck); err != nil {
			return fmt.Errorf("创建参考牌组失败: %w", err)
		}
		for _, c := range d.Cards {
			card := &models.Card{
				DeckID:       deck.ID,
				Type:         c.Type,
				Title:        c.Title,
				Description:  c.Description,
				FrontImage:   c.FrontImage,
				BackImage:    c.BackImage,
				RevealOffset: c.RevealOffset,
				CreatedAt:    now,
			}
			if err := tx.CreateCard(ctx, card); err != nil {
				return fmt.Errorf("创建卡牌 %s 失败: %w", c.Title, err)
			}
		}
		created = deck
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("参考牌组已导入", "deck", created.Name, "id", created.ID, "cards", len(d.Cards))
	return created, nil
}
