package store

import "regexp"

// identifierPattern is the allow-list regex every table/column name is
// checked against before being interpolated into dynamic SQL (spec.md
// §4.1: "Table and column identifiers must match ^[A-Za-z_][A-Za-z0-9_]*$
// before being interpolated; interpolation is restricted to identifiers
// from a fixed allow-list").
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// column describes one expected column for migration purposes: its
// name, its SQLite type, and the default value used when the column
// has to be added to an existing table after the fact (SQLite cannot
// add NOT NULL/PRIMARY KEY/UNIQUE retroactively, so additions are
// always nullable-with-default).
type column struct {
	Name    string
	SQLType string
	Default string // literal SQL default expression, e.g. "0" or "''"
}

// tableSpec is one entry in the expected schema the migrator
// reconciles the live database against.
type tableSpec struct {
	Name    string
	Create  string // full CREATE TABLE IF NOT EXISTS statement
	Columns []column
}

// expectedSchema is the fixed allow-list of tables and columns the
// migrator is permitted to create or extend. Identifiers here are the
// only ones ever interpolated into ALTER TABLE/CREATE TABLE
// statements; every one of them is validated against identifierPattern
// at startup as a defense against a corrupted allow-list, matching
// spec.md §4.1's insistence that this restriction holds even though
// the table list itself is compiled into the binary.
var expectedSchema = []tableSpec{
	{
		Name: "user_balance",
		Create: `CREATE TABLE IF NOT EXISTS user_balance (
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			xp REAL NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			messages INTEGER NOT NULL DEFAULT 0,
			coins REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (guild, user)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "xp", SQLType: "REAL", Default: "0"},
			{Name: "level", SQLType: "INTEGER", Default: "1"},
			{Name: "messages", SQLType: "INTEGER", Default: "0"},
			{Name: "coins", SQLType: "REAL", Default: "0"},
		},
	},
	{
		Name: "transactions",
		Create: `CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			kind TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			balance_after REAL NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			related_id INTEGER,
			related_type TEXT,
			created_at TEXT NOT NULL
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "kind", SQLType: "TEXT"},
			{Name: "amount", SQLType: "REAL", Default: "0"},
			{Name: "currency", SQLType: "TEXT"},
			{Name: "balance_after", SQLType: "REAL", Default: "0"},
			{Name: "metadata", SQLType: "TEXT", Default: "'{}'"},
			{Name: "related_id", SQLType: "INTEGER"},
			{Name: "related_type", SQLType: "TEXT"},
			{Name: "created_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "quest_template",
		Create: `CREATE TABLE IF NOT EXISTS quest_template (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_value INTEGER NOT NULL,
			reward_coins REAL NOT NULL DEFAULT 0,
			reward_xp REAL NOT NULL DEFAULT 0,
			allow_other_channels INTEGER NOT NULL DEFAULT 0,
			rarity TEXT NOT NULL DEFAULT 'common',
			metadata TEXT NOT NULL DEFAULT '{}',
			active INTEGER NOT NULL DEFAULT 1
		)`,
		Columns: []column{
			{Name: "name", SQLType: "TEXT"},
			{Name: "description", SQLType: "TEXT", Default: "''"},
			{Name: "type", SQLType: "TEXT"},
			{Name: "target_type", SQLType: "TEXT"},
			{Name: "target_value", SQLType: "INTEGER", Default: "1"},
			{Name: "reward_coins", SQLType: "REAL", Default: "0"},
			{Name: "reward_xp", SQLType: "REAL", Default: "0"},
			{Name: "allow_other_channels", SQLType: "INTEGER", Default: "0"},
			{Name: "rarity", SQLType: "TEXT", Default: "'common'"},
			{Name: "metadata", SQLType: "TEXT", Default: "'{}'"},
			{Name: "active", SQLType: "INTEGER", Default: "1"},
		},
	},
	{
		Name: "user_quest",
		Create: `CREATE TABLE IF NOT EXISTS user_quest (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			quest_id INTEGER NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			claimed INTEGER NOT NULL DEFAULT 0,
			assigned_at TEXT NOT NULL,
			completed_at TEXT
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "quest_id", SQLType: "INTEGER"},
			{Name: "progress", SQLType: "INTEGER", Default: "0"},
			{Name: "completed", SQLType: "INTEGER", Default: "0"},
			{Name: "claimed", SQLType: "INTEGER", Default: "0"},
			{Name: "assigned_at", SQLType: "TEXT"},
			{Name: "completed_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "daily_tracking",
		Create: `CREATE TABLE IF NOT EXISTS daily_tracking (
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			last_daily_claim TEXT,
			streak INTEGER NOT NULL DEFAULT 0,
			daily_xp_transferred REAL NOT NULL DEFAULT 0,
			last_xp_transfer_reset TEXT,
			last_capture_at TEXT,
			last_duel_at TEXT,
			PRIMARY KEY (guild, user)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "last_daily_claim", SQLType: "TEXT"},
			{Name: "streak", SQLType: "INTEGER", Default: "0"},
			{Name: "daily_xp_transferred", SQLType: "REAL", Default: "0"},
			{Name: "last_xp_transfer_reset", SQLType: "TEXT"},
			{Name: "last_capture_at", SQLType: "TEXT"},
			{Name: "last_duel_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "shop_item",
		Create: `CREATE TABLE IF NOT EXISTS shop_item (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_coins REAL NOT NULL DEFAULT 0,
			price_xp REAL NOT NULL DEFAULT 0,
			consumable INTEGER NOT NULL DEFAULT 1,
			stock INTEGER NOT NULL DEFAULT -1,
			metadata TEXT NOT NULL DEFAULT '{}',
			active INTEGER NOT NULL DEFAULT 1
		)`,
		Columns: []column{
			{Name: "name", SQLType: "TEXT"},
			{Name: "description", SQLType: "TEXT", Default: "''"},
			{Name: "price_coins", SQLType: "REAL", Default: "0"},
			{Name: "price_xp", SQLType: "REAL", Default: "0"},
			{Name: "consumable", SQLType: "INTEGER", Default: "1"},
			{Name: "stock", SQLType: "INTEGER", Default: "-1"},
			{Name: "metadata", SQLType: "TEXT", Default: "'{}'"},
			{Name: "active", SQLType: "INTEGER", Default: "1"},
		},
	},
	{
		Name: "inventory",
		Create: `CREATE TABLE IF NOT EXISTS inventory (
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			item_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (guild, user, item_id)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "item_id", SQLType: "INTEGER"},
			{Name: "quantity", SQLType: "INTEGER", Default: "0"},
		},
	},
	{
		Name: "active_effect",
		Create: `CREATE TABLE IF NOT EXISTS active_effect (
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			effect_type TEXT NOT NULL,
			effect_data TEXT NOT NULL DEFAULT '{}',
			expires_at TEXT NOT NULL,
			PRIMARY KEY (guild, user, effect_type)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "effect_type", SQLType: "TEXT"},
			{Name: "effect_data", SQLType: "TEXT", Default: "'{}'"},
			{Name: "expires_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "trade",
		Create: `CREATE TABLE IF NOT EXISTS trade (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild TEXT NOT NULL,
			from_user TEXT NOT NULL,
			to_user TEXT NOT NULL,
			coins REAL NOT NULL DEFAULT 0,
			xp REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			tax_coins REAL NOT NULL DEFAULT 0,
			tax_xp REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			accepted_at TEXT,
			escrow_release_at TEXT,
			completed_at TEXT
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "from_user", SQLType: "TEXT"},
			{Name: "to_user", SQLType: "TEXT"},
			{Name: "coins", SQLType: "REAL", Default: "0"},
			{Name: "xp", SQLType: "REAL", Default: "0"},
			{Name: "status", SQLType: "TEXT", Default: "'pending'"},
			{Name: "tax_coins", SQLType: "REAL", Default: "0"},
			{Name: "tax_xp", SQLType: "REAL", Default: "0"},
			{Name: "created_at", SQLType: "TEXT"},
			{Name: "accepted_at", SQLType: "TEXT"},
			{Name: "escrow_release_at", SQLType: "TEXT"},
			{Name: "completed_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "cooldown",
		Create: `CREATE TABLE IF NOT EXISTS cooldown (
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			action_type TEXT NOT NULL,
			last_action_at TEXT NOT NULL,
			PRIMARY KEY (guild, user, action_type)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "action_type", SQLType: "TEXT"},
			{Name: "last_action_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "moderation_state",
		Create: `CREATE TABLE IF NOT EXISTS moderation_state (
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			warn_count INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			mute_moderator TEXT,
			mute_reason TEXT,
			mute_expires_at TEXT,
			mute_created_at TEXT,
			PRIMARY KEY (guild, user)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "warn_count", SQLType: "INTEGER", Default: "0"},
			{Name: "updated_at", SQLType: "TEXT"},
			{Name: "mute_moderator", SQLType: "TEXT"},
			{Name: "mute_reason", SQLType: "TEXT"},
			{Name: "mute_expires_at", SQLType: "TEXT"},
			{Name: "mute_created_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "warning_history",
		Create: `CREATE TABLE IF NOT EXISTS warning_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			action TEXT NOT NULL,
			warn_count_before INTEGER NOT NULL,
			warn_count_after INTEGER NOT NULL,
			moderator TEXT,
			reason TEXT,
			created_at TEXT NOT NULL
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "action", SQLType: "TEXT"},
			{Name: "warn_count_before", SQLType: "INTEGER", Default: "0"},
			{Name: "warn_count_after", SQLType: "INTEGER", Default: "0"},
			{Name: "moderator", SQLType: "TEXT"},
			{Name: "reason", SQLType: "TEXT"},
			{Name: "created_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "appeal",
		Create: `CREATE TABLE IF NOT EXISTS appeal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			appeal_reason TEXT NOT NULL,
			moderator TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			moderator_decision TEXT,
			created_at TEXT NOT NULL,
			reviewed_at TEXT
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "appeal_reason", SQLType: "TEXT"},
			{Name: "moderator", SQLType: "TEXT"},
			{Name: "status", SQLType: "TEXT", Default: "'pending'"},
			{Name: "moderator_decision", SQLType: "TEXT"},
			{Name: "created_at", SQLType: "TEXT"},
			{Name: "reviewed_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "guild_settings",
		Create: `CREATE TABLE IF NOT EXISTS guild_settings (
			guild TEXT PRIMARY KEY,
			trade_tax_percent REAL NOT NULL DEFAULT 5,
			duel_tax_percent REAL NOT NULL DEFAULT 5,
			xp_trading_enabled INTEGER NOT NULL DEFAULT 1,
			daily_xp_transfer_cap_percent REAL NOT NULL DEFAULT 10.0,
			daily_xp_transfer_cap_max REAL NOT NULL DEFAULT 500,
			capture_cooldown_seconds INTEGER NOT NULL DEFAULT 60,
			duel_cooldown_seconds INTEGER NOT NULL DEFAULT 300,
			engagement_channel_ids TEXT NOT NULL DEFAULT '[]',
			welcome_dm_enabled INTEGER NOT NULL DEFAULT 0,
			welcome_dm_text TEXT NOT NULL DEFAULT '',
			welcome_public_text TEXT NOT NULL DEFAULT '',
			xp_per_message REAL NOT NULL DEFAULT 5,
			welcome_bonus_xp REAL NOT NULL DEFAULT 0,
			welcome_detection_enabled INTEGER NOT NULL DEFAULT 0,
			announcements_channel_id TEXT,
			ambassador_role_id TEXT,
			new_member_role_id TEXT,
			new_member_role_duration_days INTEGER NOT NULL DEFAULT 7,
			log_channel_id TEXT,
			appeal_channel_id TEXT,
			ai_enabled INTEGER NOT NULL DEFAULT 0,
			ai_confidence_threshold REAL NOT NULL DEFAULT 0.8,
			ai_flag_channel_id TEXT,
			ai_model TEXT NOT NULL DEFAULT '',
			ollama_host TEXT NOT NULL DEFAULT '',
			decay_multiplier REAL NOT NULL DEFAULT 1.0,
			warn_1_decay_days INTEGER NOT NULL DEFAULT 7,
			warn_2_decay_days INTEGER NOT NULL DEFAULT 14,
			warn_3_decay_days INTEGER NOT NULL DEFAULT 21,
			mute_duration_warn_2_minutes INTEGER NOT NULL DEFAULT 60,
			mute_duration_warn_3_minutes INTEGER NOT NULL DEFAULT 1440,
			rules_message_id TEXT,
			xp_thresholds TEXT NOT NULL DEFAULT '[]',
			minigame_channel_id TEXT
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "trade_tax_percent", SQLType: "REAL", Default: "5"},
			{Name: "duel_tax_percent", SQLType: "REAL", Default: "5"},
			{Name: "xp_trading_enabled", SQLType: "INTEGER", Default: "1"},
			{Name: "daily_xp_transfer_cap_percent", SQLType: "REAL", Default: "10.0"},
			{Name: "daily_xp_transfer_cap_max", SQLType: "REAL", Default: "500"},
			{Name: "capture_cooldown_seconds", SQLType: "INTEGER", Default: "60"},
			{Name: "duel_cooldown_seconds", SQLType: "INTEGER", Default: "300"},
			{Name: "engagement_channel_ids", SQLType: "TEXT", Default: "'[]'"},
			{Name: "welcome_dm_enabled", SQLType: "INTEGER", Default: "0"},
			{Name: "welcome_dm_text", SQLType: "TEXT", Default: "''"},
			{Name: "welcome_public_text", SQLType: "TEXT", Default: "''"},
			{Name: "xp_per_message", SQLType: "REAL", Default: "5"},
			{Name: "welcome_bonus_xp", SQLType: "REAL", Default: "0"},
			{Name: "welcome_detection_enabled", SQLType: "INTEGER", Default: "0"},
			{Name: "announcements_channel_id", SQLType: "TEXT"},
			{Name: "ambassador_role_id", SQLType: "TEXT"},
			{Name: "new_member_role_id", SQLType: "TEXT"},
			{Name: "new_member_role_duration_days", SQLType: "INTEGER", Default: "7"},
			{Name: "log_channel_id", SQLType: "TEXT"},
			{Name: "appeal_channel_id", SQLType: "TEXT"},
			{Name: "ai_enabled", SQLType: "INTEGER", Default: "0"},
			{Name: "ai_confidence_threshold", SQLType: "REAL", Default: "0.8"},
			{Name: "ai_flag_channel_id", SQLType: "TEXT"},
			{Name: "ai_model", SQLType: "TEXT", Default: "''"},
			{Name: "ollama_host", SQLType: "TEXT", Default: "''"},
			{Name: "decay_multiplier", SQLType: "REAL", Default: "1.0"},
			{Name: "warn_1_decay_days", SQLType: "INTEGER", Default: "7"},
			{Name: "warn_2_decay_days", SQLType: "INTEGER", Default: "14"},
			{Name: "warn_3_decay_days", SQLType: "INTEGER", Default: "21"},
			{Name: "mute_duration_warn_2_minutes", SQLType: "INTEGER", Default: "60"},
			{Name: "mute_duration_warn_3_minutes", SQLType: "INTEGER", Default: "1440"},
			{Name: "rules_message_id", SQLType: "TEXT"},
			{Name: "xp_thresholds", SQLType: "TEXT", Default: "'[]'"},
			{Name: "minigame_channel_id", SQLType: "TEXT"},
		},
	},
	{
		Name: "quest_exception_channel",
		Create: `CREATE TABLE IF NOT EXISTS quest_exception_channel (
			guild TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			PRIMARY KEY (guild, channel_id)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "channel_id", SQLType: "TEXT"},
		},
	},
	{
		Name: "scheduled_event",
		Create: `CREATE TABLE IF NOT EXISTS scheduled_event (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild TEXT NOT NULL,
			name TEXT NOT NULL,
			starts_at TEXT NOT NULL,
			reminded_24h INTEGER NOT NULL DEFAULT 0,
			reminded_1h INTEGER NOT NULL DEFAULT 0
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "name", SQLType: "TEXT"},
			{Name: "starts_at", SQLType: "TEXT"},
			{Name: "reminded_24h", SQLType: "INTEGER", Default: "0"},
			{Name: "reminded_1h", SQLType: "INTEGER", Default: "0"},
		},
	},
	{
		Name: "voice_session",
		Create: `CREATE TABLE IF NOT EXISTS voice_session (
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			last_accrued_at TEXT NOT NULL,
			PRIMARY KEY (guild, user)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "channel_id", SQLType: "TEXT"},
			{Name: "joined_at", SQLType: "TEXT"},
			{Name: "last_accrued_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "feed_subscription",
		Create: `CREATE TABLE IF NOT EXISTS feed_subscription (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild TEXT NOT NULL,
			platform TEXT NOT NULL,
			external_id TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			last_seen_id TEXT NOT NULL DEFAULT '',
			channel_id TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "platform", SQLType: "TEXT"},
			{Name: "external_id", SQLType: "TEXT"},
			{Name: "display_name", SQLType: "TEXT", Default: "''"},
			{Name: "last_seen_id", SQLType: "TEXT", Default: "''"},
			{Name: "channel_id", SQLType: "TEXT"},
			{Name: "active", SQLType: "INTEGER", Default: "1"},
		},
	},
	{
		Name: "temp_role",
		Create: `CREATE TABLE IF NOT EXISTS temp_role (
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			role_id TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			PRIMARY KEY (guild, user, role_id)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "role_id", SQLType: "TEXT"},
			{Name: "expires_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "weekly_challenge_history",
		Create: `CREATE TABLE IF NOT EXISTS weekly_challenge_history (
			guild TEXT NOT NULL,
			quest_id INTEGER NOT NULL,
			posted_at TEXT NOT NULL,
			PRIMARY KEY (guild, posted_at)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "quest_id", SQLType: "INTEGER"},
			{Name: "posted_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "event_reminder_sent",
		Create: `CREATE TABLE IF NOT EXISTS event_reminder_sent (
			guild TEXT NOT NULL,
			event_id INTEGER NOT NULL,
			reminder_type TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			PRIMARY KEY (guild, event_id, reminder_type)
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "event_id", SQLType: "INTEGER"},
			{Name: "reminder_type", SQLType: "TEXT"},
			{Name: "sent_at", SQLType: "TEXT"},
		},
	},
	{
		Name: "message_activity",
		Create: `CREATE TABLE IF NOT EXISTS message_activity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild TEXT NOT NULL,
			user TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		Columns: []column{
			{Name: "guild", SQLType: "TEXT"},
			{Name: "user", SQLType: "TEXT"},
			{Name: "channel_id", SQLType: "TEXT"},
			{Name: "created_at", SQLType: "TEXT"},
		},
	},
}

// legacyColumns lists columns that earlier schema versions created
// but the current expected schema no longer wants; the migrator drops
// them via the table-rebuild-and-copy dance SQLite requires (spec.md
// §4.1 step (b)). Empty for a fresh schema; populated here as a
// documented example of the mechanism the migrator supports.
var legacyColumns = map[string][]string{
	// "shop_item": {"legacy_category"},
}
