package store

const postgresSchema = `
CREATE TABLE IF NOT EXISTS canonical_telemetry (
	vehicle_plate    TEXT NOT NULL,
	ts               TIMESTAMP NOT NULL,
	vehicle_id       TEXT NOT NULL DEFAULT '',
	driver           TEXT,
	longitude        DOUBLE PRECISION,
	location         TEXT,
	terminal_serial  TEXT,
	out_speed        DOUBLE PRECISION,
	odometer         DOUBLE PRECISION,
	door1_status     TEXT,
	door2_status     TEXT,
	ignition         BOOLEAN,
	temp1            DOUBLE PRECISION,
	temp2            DOUBLE PRECISION,
	temp3            DOUBLE PRECISION,
	temp4            DOUBLE PRECISION,
	day_of_week      TEXT NOT NULL DEFAULT '',
	hour             INTEGER,
	interval_seconds BIGINT,
	is_synthetic     BOOLEAN NOT NULL DEFAULT FALSE,
	predicted_temp   DOUBLE PRECISION,
	predicted_temp2  DOUBLE PRECISION,
	PRIMARY KEY (vehicle_plate, ts),
	CHECK (NOT is_synthetic OR temp1 IS NULL)
);
CREATE INDEX IF NOT EXISTS canonical_telemetry_unmeasured_idx
	ON canonical_telemetry (vehicle_plate, ts) WHERE temp1 IS NULL;
`

// SQLite keeps ts as unix seconds so ordering and equality stay integral.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS canonical_telemetry (
	vehicle_plate    TEXT NOT NULL,
	ts               INTEGER NOT NULL,
	vehicle_id       TEXT NOT NULL DEFAULT '',
	driver           TEXT,
	longitude        REAL,
	location         TEXT,
	terminal_serial  TEXT,
	out_speed        REAL,
	odometer         REAL,
	door1_status     TEXT,
	door2_status     TEXT,
	ignition         INTEGER,
	temp1            REAL,
	temp2            REAL,
	temp3            REAL,
	temp4            REAL,
	day_of_week      TEXT NOT NULL DEFAULT '',
	hour             INTEGER,
	interval_seconds INTEGER,
	is_synthetic     INTEGER NOT NULL DEFAULT 0,
	predicted_temp   REAL,
	predicted_temp2  REAL,
	PRIMARY KEY (vehicle_plate, ts),
	CHECK (NOT is_synthetic OR temp1 IS NULL)
);
`
