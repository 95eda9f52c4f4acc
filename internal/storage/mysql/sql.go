package mysql

// Schema is applied statement by statement; the DSN needs no multiStatements.
// dedup_hash is SHA-256 of dedup_key: keys are compared byte for byte and may be
// longer than an index prefix allows.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS hotel_records (
  id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  collection  VARCHAR(128)    NOT NULL,
  dedup_hash  BINARY(32)      NOT NULL,
  dedup_key   TEXT            NOT NULL,
  version     BIGINT          NOT NULL,
  hotel_name  TEXT            NULL,
  source_url  TEXT            NULL,
  data        JSON            NOT NULL,
  run_id      VARCHAR(64)     NULL,
  scraped_at  DATETIME(6)     NOT NULL,
  PRIMARY KEY (id),
  UNIQUE KEY uq_records_key_version (collection, dedup_hash, version)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,

	// One row per key; its row lock serializes version assignment.
	`CREATE TABLE IF NOT EXISTS hotel_record_heads (
  collection   VARCHAR(128) NOT NULL,
  dedup_hash   BINARY(32)   NOT NULL,
  last_version BIGINT       NOT NULL,
  PRIMARY KEY (collection, dedup_hash)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
}

const bumpHeadSQL = `
INSERT INTO hotel_record_heads (collection, dedup_hash, last_version)
VALUES (?, ?, 1)
ON DUPLICATE KEY UPDATE last_version = last_version + 1
`

const readHeadSQL = `
SELECT last_version FROM hotel_record_heads
WHERE collection = ? AND dedup_hash = ?
`

// Keeps the head in step when a caller chose the version itself.
const raiseHeadSQL = `
INSERT INTO hotel_record_heads (collection, dedup_hash, last_version)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE last_version = GREATEST(last_version, VALUES(last_version))
`

const insertRecordSQL = `
INSERT INTO hotel_records
  (collection, dedup_hash, dedup_key, version, hotel_name, source_url, data, run_id, scraped_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const countVersionsSQL = `
SELECT COUNT(*) FROM hotel_records
WHERE collection = ? AND dedup_hash = ?
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Newest first; served by uq_records_key_version.
const listVersionsSQL = `
SELECT dedup_key, hotel_name, source_url, data, version, scraped_at, run_id
FROM hotel_records
WHERE collection = ? AND dedup_hash = ?
ORDER BY version DESC
LIMIT ?
`
