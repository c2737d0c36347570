package store

import (
	"context"
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed/defaults.yaml
var defaultsFS embed.FS

// seedQuestTemplate and seedShopItem mirror the subset of
// quest_template/shop_item columns the bundled fixture populates.
type seedQuestTemplate struct {
	Name               string  `yaml:"name"`
	Description        string  `yaml:"description"`
	Type               string  `yaml:"type"`
	TargetType         string  `yaml:"target_type"`
	TargetValue        int     `yaml:"target_value"`
	RewardCoins        float64 `yaml:"reward_coins"`
	RewardXP           float64 `yaml:"reward_xp"`
	AllowOtherChannels bool    `yaml:"allow_other_channels"`
	Rarity             string  `yaml:"rarity"`
}

type seedShopItem struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	PriceCoins  float64 `yaml:"price_coins"`
	PriceXP     float64 `yaml:"price_xp"`
	Consumable  bool    `yaml:"consumable"`
	Stock       int     `yaml:"stock"`
}

type seedFixture struct {
	QuestTemplates []seedQuestTemplate `yaml:"quest_templates"`
	ShopItems      []seedShopItem      `yaml:"shop_items"`
}

// Seed populates quest_template and shop_item from the bundled
// defaults.yaml the first time each table is empty, so a freshly
// created database has a usable quest and shop catalog without an
// operator hand-entering rows. Parsed with yaml.v3.
func (s *Store) Seed(ctx context.Context) error {
	raw, err := defaultsFS.ReadFile("seed/defaults.yaml")
	if err != nil {
		return fmt.Errorf("store: seed: read fixture: %w", err)
	}

	var fixture seedFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return fmt.Errorf("store: seed: parse fixture: %w", err)
	}

	return s.WithTx(ctx, func(tx Tx) error {
		var questCount int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM quest_template").Scan(&questCount); err != nil {
			return fmt.Errorf("count quest_template: %w", err)
		}
		if questCount == 0 {
			for _, q := range fixture.QuestTemplates {
				_, err := tx.ExecContext(ctx, `INSERT INTO quest_template
					(name, description, type, target_type, target_value, reward_coins, reward_xp, allow_other_channels, rarity, active)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
					q.Name, q.Description, q.Type, q.TargetType, q.TargetValue, q.RewardCoins, q.RewardXP, q.AllowOtherChannels, q.Rarity)
				if err != nil {
					return fmt.Errorf("insert quest_template %q: %w", q.Name, err)
				}
			}
		}

		var itemCount int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM shop_item").Scan(&itemCount); err != nil {
			return fmt.Errorf("count shop_item: %w", err)
		}
		if itemCount == 0 {
			for _, it := range fixture.ShopItems {
				_, err := tx.ExecContext(ctx, `INSERT INTO shop_item
					(name, description, price_coins, price_xp, consumable, stock, active)
					VALUES (?, ?, ?, ?, ?, ?, 1)`,
					it.Name, it.Description, it.PriceCoins, it.PriceXP, it.Consumable, it.Stock)
				if err != nil {
					return fmt.Errorf("insert shop_item %q: %w", it.Name, err)
				}
			}
		}

		return nil
	})
}
