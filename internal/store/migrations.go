package store

const schema = `
CREATE TABLE IF NOT EXISTS topics (
    id                     TEXT PRIMARY KEY,
    associated_user_id     TEXT NOT NULL,
    title                  TEXT,
    description            TEXT,
    model                  TEXT NOT NULL DEFAULT '',
    tier                   TEXT NOT NULL DEFAULT 'free',
    due_payment            INTEGER NOT NULL DEFAULT 0,
    update_frequency_hours INTEGER NOT NULL DEFAULT 24,
    next_update_time       INTEGER,
    ai_conversation_id     TEXT,
    created_at             INTEGER NOT NULL,
    updated_at             INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_topics_user ON topics(associated_user_id);
CREATE INDEX IF NOT EXISTS idx_topics_next_update ON topics(next_update_time);

CREATE TABLE IF NOT EXISTS updates (
    id                  TEXT PRIMARY KEY,
    associated_topic_id TEXT NOT NULL,
    batch_id            TEXT NOT NULL,
    title               TEXT,
    author              TEXT,
    summary             TEXT,
    source_url          TEXT,
    date                INTEGER,
    key_points          TEXT,
    image_link          TEXT,
    created_at          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_updates_topic ON updates(associated_topic_id);
CREATE INDEX IF NOT EXISTS idx_updates_batch ON updates(batch_id);
CREATE INDEX IF NOT EXISTS idx_updates_created_at ON updates(created_at);

CREATE TABLE IF NOT EXISTS agents (
    id         TEXT PRIMARY KEY,
    agent_id   TEXT NOT NULL,
    model      TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id          TEXT PRIMARY KEY,
    email       TEXT NOT NULL UNIQUE,
    first_name  TEXT NOT NULL DEFAULT '',
    last_name   TEXT,
    is_verified BOOLEAN NOT NULL DEFAULT 0,
    is_active   BOOLEAN NOT NULL DEFAULT 1,
    created_at  INTEGER NOT NULL
);
`
