package store

// session_time is TIMESTAMP (no zone) so the date() expression index stays immutable.
const schemaPostgres = `
CREATE TABLE IF NOT EXISTS records (
    id              BIGSERIAL PRIMARY KEY,
    ingested_at     TIMESTAMP NOT NULL DEFAULT NOW(),
    session_time    TIMESTAMP NOT NULL,
    scriptid        TEXT NOT NULL,
    uid             TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT NOT NULL DEFAULT '',
    identity_token  TEXT NOT NULL,
    record_token    TEXT NOT NULL UNIQUE,
    synced          BOOLEAN NOT NULL DEFAULT FALSE,
    data            TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_uid_script_day ON records(uid, scriptid, date(session_time));
CREATE INDEX IF NOT EXISTS idx_records_script ON records(scriptid);
CREATE INDEX IF NOT EXISTS idx_records_uid ON records(uid);

CREATE TABLE IF NOT EXISTS sequence_counters (
    id            BIGSERIAL PRIMARY KEY,
    scriptid      TEXT NOT NULL,
    year          INTEGER NOT NULL,
    last_sequence INTEGER NOT NULL DEFAULT 0,
    updated_at    TIMESTAMP NOT NULL DEFAULT NOW(),
    UNIQUE(scriptid, year)
);

CREATE TABLE IF NOT EXISTS sessions (
    id          BIGSERIAL PRIMARY KEY,
    ingested_at TIMESTAMP NOT NULL DEFAULT NOW(),
    uid         TEXT NOT NULL DEFAULT '',
    scriptid    TEXT NOT NULL DEFAULT '',
    unique_key  TEXT NOT NULL DEFAULT '',
    data        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_uid ON sessions(uid);
CREATE INDEX IF NOT EXISTS idx_sessions_unique_key ON sessions(unique_key);

CREATE TABLE IF NOT EXISTS api_keys (
    id         BIGSERIAL PRIMARY KEY,
    prefix     TEXT NOT NULL UNIQUE,
    key_hash   TEXT NOT NULL,
    label      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS app_exceptions (
    id             BIGSERIAL PRIMARY KEY,
    country        TEXT NOT NULL DEFAULT '',
    version        TEXT NOT NULL DEFAULT '',
    editor_version TEXT NOT NULL DEFAULT '',
    device_model   TEXT NOT NULL DEFAULT '',
    memory         TEXT NOT NULL DEFAULT '',
    battery        TEXT NOT NULL DEFAULT '',
    message        TEXT NOT NULL DEFAULT '',
    stack          TEXT NOT NULL DEFAULT '',
    mailed         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_app_exceptions_mailed ON app_exceptions(mailed);

CREATE TABLE IF NOT EXISTS outbox (
    id         BIGSERIAL PRIMARY KEY,
    topic      TEXT NOT NULL,
    payload    BYTEA NOT NULL,
    record_id  BIGINT NOT NULL DEFAULT 0,
    retries    INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    sent_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS web_configurations (
    id         BIGSERIAL PRIMARY KEY,
    device_id  TEXT NOT NULL UNIQUE,
    data       TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS web_scripts (
    id         BIGSERIAL PRIMARY KEY,
    script_id  TEXT NOT NULL UNIQUE,
    position   INTEGER NOT NULL DEFAULT 0,
    data       TEXT NOT NULL DEFAULT '{}',
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS web_screens (
    id         BIGSERIAL PRIMARY KEY,
    screen_id  TEXT NOT NULL UNIQUE,
    script_id  TEXT NOT NULL,
    position   INTEGER NOT NULL DEFAULT 0,
    data       TEXT NOT NULL DEFAULT '{}',
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_web_screens_script ON web_screens(script_id);

CREATE TABLE IF NOT EXISTS web_diagnoses (
    id           BIGSERIAL PRIMARY KEY,
    diagnosis_id TEXT NOT NULL UNIQUE,
    script_id    TEXT NOT NULL,
    position     INTEGER NOT NULL DEFAULT 0,
    data         TEXT NOT NULL DEFAULT '{}',
    updated_at   TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_web_diagnoses_script ON web_diagnoses(script_id);
`
