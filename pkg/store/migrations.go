package store

type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations must stay in ascending Version order.
var migrations = []migration{
	{
		Version:     1,
		Description: "create readings",
		SQL: `
			CREATE TABLE readings (
				id                 INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id             TEXT    NOT NULL,
				timestamp          TEXT    NOT NULL,
				device_id          TEXT    NOT NULL,
				parameter          TEXT    NOT NULL,
				statistic          TEXT    NOT NULL,
				value              REAL    NOT NULL,
				count              INTEGER NOT NULL,
				unit               TEXT    NOT NULL DEFAULT '',
				description        TEXT    NOT NULL DEFAULT '',
				quality            TEXT    NOT NULL DEFAULT 'unknown',
				raw_parameter_name TEXT    NOT NULL DEFAULT '',
				line_number        INTEGER NOT NULL,
				UNIQUE (timestamp, device_id, parameter, statistic)
			);
			CREATE INDEX idx_readings_timestamp ON readings(timestamp);
			CREATE INDEX idx_readings_parameter ON readings(parameter, statistic);
		`,
	},
	{
		Version:     2,
		Description: "create file_metadata",
		SQL: `
			CREATE TABLE file_metadata (
				run_id           TEXT     PRIMARY KEY,
				filename         TEXT     NOT NULL,
				file_size        INTEGER  NOT NULL,
				records_imported INTEGER  NOT NULL,
				parsing_stats    TEXT     NOT NULL,
				imported_at      DATETIME NOT NULL
			);
		`,
	},
}
