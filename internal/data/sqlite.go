package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// Schema is the layout LoadSQLite reads. Nullable columns hold missing
// qualifying times, pit data and result positions.
const Schema = `
CREATE TABLE IF NOT EXISTS races (
	id            INTEGER PRIMARY KEY,
	season        INTEGER NOT NULL,
	location      TEXT    NOT NULL,
	nolapsplanned INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS qualifyings (
	race_id   INTEGER NOT NULL,
	driver_id INTEGER NOT NULL,
	position  INTEGER NOT NULL,
	q1laptime REAL,
	q2laptime REAL,
	q3laptime REAL
);
CREATE TABLE IF NOT EXISTS drivers (
	id       INTEGER PRIMARY KEY,
	name     TEXT NOT NULL,
	initials TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS starterfields (
	race_id        INTEGER NOT NULL,
	driver_id      INTEGER NOT NULL,
	team           TEXT    NOT NULL,
	status         TEXT    NOT NULL DEFAULT '',
	resultposition INTEGER
);
CREATE TABLE IF NOT EXISTS laps (
	race_id         INTEGER NOT NULL,
	driver_id       INTEGER NOT NULL,
	lapno           INTEGER NOT NULL,
	laptime         REAL,
	racetime        REAL,
	compound        TEXT,
	tireage         INTEGER,
	pitintime       REAL,
	pitstopduration REAL
);
CREATE TABLE IF NOT EXISTS retirements (
	season    INTEGER NOT NULL,
	driver_id INTEGER NOT NULL,
	accidents REAL,
	failures  REAL
);
CREATE TABLE IF NOT EXISTS fcyphases (
	race_id  INTEGER NOT NULL,
	startlap INTEGER NOT NULL,
	endlap   INTEGER NOT NULL
);`

// LoadSQLite reads every historical table from the SQLite file at path.
// races, qualifyings, drivers and starterfields are required; laps,
// retirements and fcyphases are loaded when present.
func LoadSQLite(ctx context.Context, path string) (*Tables, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return ReadTables(ctx, db)
}

// openReadOnly opens an existing SQLite file in read-only mode
func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

// ReadTables loads the tables from an open database handle
func ReadTables(ctx context.Context, db *sql.DB) (*Tables, error) {
	t := &Tables{}
	var err error

	if t.Races, err = readRaces(ctx, db); err != nil {
		return nil, err
	}
	if t.Qualifyings, err = readQualifyings(ctx, db); err != nil {
		return nil, err
	}
	if t.Drivers, err = readDrivers(ctx, db); err != nil {
		return nil, err
	}
	if t.StarterFields, err = readStarterFields(ctx, db); err != nil {
		return nil, err
	}

	optional := []struct {
		table string
		read  func() error
	}{
		{"laps", func() (err error) { t.Laps, err = readLaps(ctx, db); return }},
		{"retirements", func() (err error) { t.Retirements, err = readRetirements(ctx, db); return }},
		{"fcyphases", func() (err error) { t.FCYPhases, err = readFCYPhases(ctx, db); return }},
	}
	for _, o := range optional {
		ok, err := tableExists(ctx, db, o.table)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := o.read(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", name, err)
	}
	return n > 0, nil
}

// queryRows runs query and hands every row to scan
func queryRows(ctx context.Context, db *sql.DB, table, query string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	return nil
}

func readRaces(ctx context.Context, db *sql.DB) ([]models.Race, error) {
	var out []models.Race
	err := queryRows(ctx, db, "races", `SELECT id, season, location, nolapsplanned FROM races ORDER BY id`, func(rows *sql.Rows) error {
		var r models.Race
		if err := rows.Scan(&r.ID, &r.Season, &r.Location, &r.NoLapsPlanned); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func readQualifyings(ctx context.Context, db *sql.DB) ([]models.Qualifying, error) {
	var out []models.Qualifying
	err := queryRows(ctx, db, "qualifyings", `SELECT race_id, driver_id, position, q1laptime, q2laptime, q3laptime FROM qualifyings`, func(rows *sql.Rows) error {
		var (
			q          models.Qualifying
			q1, q2, q3 sql.NullFloat64
		)
		if err := rows.Scan(&q.RaceID, &q.DriverID, &q.Position, &q1, &q2, &q3); err != nil {
			return err
		}
		q.Q1LapTime, q.Q2LapTime, q.Q3LapTime = q1.Float64, q2.Float64, q3.Float64
		out = append(out, q)
		return nil
	})
	return out, err
}

func readDrivers(ctx context.Context, db *sql.DB) ([]models.Driver, error) {
	var out []models.Driver
	err := queryRows(ctx, db, "drivers", `SELECT id, name, initials FROM drivers ORDER BY id`, func(rows *sql.Rows) error {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Initials); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, err
}

func readStarterFields(ctx context.Context, db *sql.DB) ([]models.StarterField, error) {
	var out []models.StarterField
	err := queryRows(ctx, db, "starterfields", `SELECT race_id, driver_id, team, status, resultposition FROM starterfields`, func(rows *sql.Rows) error {
		var (
			sf  models.StarterField
			pos sql.NullInt64
		)
		if err := rows.Scan(&sf.RaceID, &sf.DriverID, &sf.Team, &sf.Status, &pos); err != nil {
			return err
		}
		sf.ResultPosition = int(pos.Int64)
		out = append(out, sf)
		return nil
	})
	return out, err
}

func readLaps(ctx context.Context, db *sql.DB) ([]models.Lap, error) {
	var out []models.Lap
	query := `SELECT race_id, driver_id, lapno, laptime, racetime, compound, tireage, pitintime, pitstopduration
		FROM laps ORDER BY race_id, driver_id, lapno`
	err := queryRows(ctx, db, "laps", query, func(rows *sql.Rows) error {
		var (
			l                          models.Lap
			lapTime, raceTime          sql.NullFloat64
			compound                   sql.NullString
			tireAge                    sql.NullInt64
			pitInTime, pitStopDuration sql.NullFloat64
		)
		if err := rows.Scan(&l.RaceID, &l.DriverID, &l.LapNo, &lapTime, &raceTime, &compound, &tireAge, &pitInTime, &pitStopDuration); err != nil {
			return err
		}
		l.LapTime = lapTime.Float64
		l.RaceTime = raceTime.Float64
		l.Compound = compound.String
		l.TireAge = int(tireAge.Int64)
		l.PitIn = pitInTime.Valid
		l.PitStopDuration = pitStopDuration.Float64
		out = append(out, l)
		return nil
	})
	return out, err
}

func readRetirements(ctx context.Context, db *sql.DB) ([]models.Retirement, error) {
	var out []models.Retirement
	err := queryRows(ctx, db, "retirements", `SELECT season, driver_id, accidents, failures FROM retirements`, func(rows *sql.Rows) error {
		var (
			r                   models.Retirement
			accidents, failures sql.NullFloat64
		)
		if err := rows.Scan(&r.Season, &r.DriverID, &accidents, &failures); err != nil {
			return err
		}
		// missing counts mean none recorded
		r.Accidents, r.Failures = accidents.Float64, failures.Float64
		out = append(out, r)
		return nil
	})
	return out, err
}

func readFCYPhases(ctx context.Context, db *sql.DB) ([]models.FCYPhase, error) {
	var out []models.FCYPhase
	err := queryRows(ctx, db, "fcyphases", `SELECT race_id, startlap, endlap FROM fcyphases`, func(rows *sql.Rows) error {
		var p models.FCYPhase
		if err := rows.Scan(&p.RaceID, &p.StartLap, &p.EndLap); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}
