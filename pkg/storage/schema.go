package storage

var schema = []string{
	`CREATE TABLE IF NOT EXISTS proxy (
		id            SERIAL PRIMARY KEY,
		ip            TEXT NOT NULL,
		port          INT NOT NULL,
		login         TEXT NOT NULL DEFAULT '',
		password      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id               BIGINT PRIMARY KEY,
		username         TEXT NOT NULL DEFAULT '',
		is_premium       BOOLEAN NOT NULL DEFAULT false,
		premium_until    TIMESTAMPTZ,
		is_banned        BOOLEAN NOT NULL DEFAULT false,
		live_log_chat_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		phone      TEXT NOT NULL,
		api_id     INT NOT NULL,
		api_hash   TEXT NOT NULL,
		proxy_id   INT REFERENCES proxy(id),
		is_active  BOOLEAN NOT NULL DEFAULT true,
		data_json  TEXT,
		updated_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id              BIGSERIAL PRIMARY KEY,
		account_id      BIGINT NOT NULL,
		session_id      BIGINT NOT NULL,
		links           TEXT[] NOT NULL,
		interval_sec    INT NOT NULL,
		group_mode      TEXT NOT NULL,
		selected_groups BIGINT[] NOT NULL DEFAULT '{}',
		attribution     TEXT NOT NULL DEFAULT 'hidden',
		topic_links     TEXT[] NOT NULL DEFAULT '{}',
		is_running      BOOLEAN NOT NULL DEFAULT false,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS campaigns_account_session_idx ON campaigns (account_id, session_id, id DESC)`,
	`CREATE TABLE IF NOT EXISTS account_settings (
		account_id        BIGINT PRIMARY KEY,
		auto_enabled      BOOLEAN NOT NULL DEFAULT false,
		auto_start_minute INT NOT NULL DEFAULT 0,
		auto_end_minute   INT NOT NULL DEFAULT 0,
		attribution       TEXT NOT NULL DEFAULT 'hidden',
		topic_links       TEXT[] NOT NULL DEFAULT '{}',
		delay_min         INT,
		delay_max         INT,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_counters (
		account_id    BIGINT PRIMARY KEY,
		total_sent    BIGINT NOT NULL DEFAULT 0,
		template_sent BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS send_events (
		id           BIGSERIAL PRIMARY KEY,
		ts           TIMESTAMPTZ NOT NULL,
		account_id   BIGINT NOT NULL,
		session_id   BIGINT NOT NULL,
		sender_label TEXT NOT NULL,
		target_id    BIGINT NOT NULL,
		target_name  TEXT NOT NULL,
		target_link  TEXT NOT NULL,
		content_link TEXT NOT NULL,
		post_link    TEXT NOT NULL,
		status       TEXT NOT NULL,
		fail_reason  TEXT NOT NULL,
		position     INT NOT NULL,
		total        INT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS send_events_ts_idx ON send_events (ts)`,
}
