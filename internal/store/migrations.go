package store

const schema = `
-- Registered machines, created on first observed reading
CREATE TABLE IF NOT EXISTS machines (
    machine_id        INTEGER PRIMARY KEY,
    machine_type      TEXT NOT NULL,
    location          TEXT,
    installation_date TEXT,
    status            TEXT
);

-- Parameters registered lazily per machine
CREATE TABLE IF NOT EXISTS parameters (
    parameter_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id     INTEGER NOT NULL,
    parameter_name TEXT NOT NULL,
    unit           TEXT,
    min_limit      REAL,
    max_limit      REAL,
    UNIQUE (machine_id, parameter_name),
    FOREIGN KEY (machine_id) REFERENCES machines(machine_id)
);

-- Append-only measurement readings
CREATE TABLE IF NOT EXISTS readings (
    reading_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id   INTEGER NOT NULL,
    parameter_id INTEGER NOT NULL,
    timestamp    TEXT NOT NULL,
    value        REAL NOT NULL,
    is_anomaly   INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (machine_id) REFERENCES machines(machine_id),
    FOREIGN KEY (parameter_id) REFERENCES parameters(parameter_id)
);

-- Anomalies, each referencing an existing reading
CREATE TABLE IF NOT EXISTS anomalies (
    anomaly_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    reading_id   INTEGER NOT NULL,
    machine_id   INTEGER NOT NULL,
    parameter_id INTEGER NOT NULL,
    timestamp    TEXT NOT NULL,
    value        REAL NOT NULL,
    severity     TEXT,
    description  TEXT,
    FOREIGN KEY (reading_id) REFERENCES readings(reading_id),
    FOREIGN KEY (machine_id) REFERENCES machines(machine_id),
    FOREIGN KEY (parameter_id) REFERENCES parameters(parameter_id)
);

-- Secondary indexes
CREATE INDEX IF NOT EXISTS idx_readings_machine_id ON readings(machine_id);
CREATE INDEX IF NOT EXISTS idx_readings_parameter_id ON readings(parameter_id);
CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp);
CREATE INDEX IF NOT EXISTS idx_anomalies_machine_id ON anomalies(machine_id);
`
