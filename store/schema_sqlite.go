package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS records (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    ingested_at     TEXT NOT NULL DEFAULT (datetime('now')),
    session_time    TEXT NOT NULL,
    scriptid        TEXT NOT NULL,
    uid             TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT NOT NULL DEFAULT '',
    identity_token  TEXT NOT NULL,
    record_token    TEXT NOT NULL UNIQUE,
    synced          INTEGER NOT NULL DEFAULT 0,
    data            TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_uid_script_day ON records(uid, scriptid, date(session_time));
CREATE INDEX IF NOT EXISTS idx_records_script ON records(scriptid);
CREATE INDEX IF NOT EXISTS idx_records_uid ON records(uid);

CREATE TABLE IF NOT EXISTS sequence_counters (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    scriptid      TEXT NOT NULL,
    year          INTEGER NOT NULL,
    last_sequence INTEGER NOT NULL DEFAULT 0,
    updated_at    TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE(scriptid, year)
);

CREATE TABLE IF NOT EXISTS sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ingested_at TEXT NOT NULL DEFAULT (datetime('now')),
    uid         TEXT NOT NULL DEFAULT '',
    scriptid    TEXT NOT NULL DEFAULT '',
    unique_key  TEXT NOT NULL DEFAULT '',
    data        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_uid ON sessions(uid);
CREATE INDEX IF NOT EXISTS idx_sessions_unique_key ON sessions(unique_key);

CREATE TABLE IF NOT EXISTS api_keys (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    prefix     TEXT NOT NULL UNIQUE,
    key_hash   TEXT NOT NULL,
    label      TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS app_exceptions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    country        TEXT NOT NULL DEFAULT '',
    version        TEXT NOT NULL DEFAULT '',
    editor_version TEXT NOT NULL DEFAULT '',
    device_model   TEXT NOT NULL DEFAULT '',
    memory         TEXT NOT NULL DEFAULT '',
    battery        TEXT NOT NULL DEFAULT '',
    message        TEXT NOT NULL DEFAULT '',
    stack          TEXT NOT NULL DEFAULT '',
    mailed         INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_app_exceptions_mailed ON app_exceptions(mailed);

CREATE TABLE IF NOT EXISTS outbox (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    topic      TEXT NOT NULL,
    payload    BLOB NOT NULL,
    record_id  INTEGER NOT NULL DEFAULT 0,
    retries    INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    sent_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS web_configurations (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    device_id  TEXT NOT NULL UNIQUE,
    data       TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS web_scripts (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    script_id  TEXT NOT NULL UNIQUE,
    position   INTEGER NOT NULL DEFAULT 0,
    data       TEXT NOT NULL DEFAULT '{}',
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS web_screens (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    screen_id  TEXT NOT NULL UNIQUE,
    script_id  TEXT NOT NULL,
    position   INTEGER NOT NULL DEFAULT 0,
    data       TEXT NOT NULL DEFAULT '{}',
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_web_screens_script ON web_screens(script_id);

CREATE TABLE IF NOT EXISTS web_diagnoses (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    diagnosis_id TEXT NOT NULL UNIQUE,
    script_id    TEXT NOT NULL,
    position     INTEGER NOT NULL DEFAULT 0,
    data         TEXT NOT NULL DEFAULT '{}',
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_web_diagnoses_script ON web_diagnoses(script_id);
`
