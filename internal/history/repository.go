// Package history keeps a journal of print jobs in sqlite.
package history

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

//go:embed schema.sql
var schema string

var ErrJobNotFound = errors.New("no such print job")

type Status string

const (
	Pending  Status = "pending"
	Printing Status = "printing"
	Done     Status = "done"
	Failed   Status = "failed"
)

type Job struct {
	Id         int64
	Uuid       uuid.UUID
	CreatedAt  time.Time
	FinishedAt *time.Time
	DeviceName string
	Width      int
	Height     int
	Algorithm  string
	Energy     int
	Status     Status
	Error      string
}

type Repository struct {
	Db  *sql.DB
	now func() time.Time
}

// NewRepository creates the tables if needed.
func NewRepository(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("Couldn't initialise database:\n%w", err)
	}
	return &Repository{Db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	return r.Db.Close()
}

// Create stores a new pending job, filling in its id, uuid and creation time.
func (r *Repository) Create(j *Job) error {
	if j.Uuid == uuid.Nil {
		j.Uuid = uuid.New()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = r.now()
	}
	j.Status = Pending

	row := r.Db.QueryRow(`
		INSERT INTO print_job(uuid, created_at, device_name, width, height, algorithm, energy, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		j.Uuid.String(), j.CreatedAt.UnixMilli(), j.DeviceName, j.Width, j.Height, j.Algorithm, j.Energy, j.Status)
	if err := row.Scan(&j.Id); err != nil {
		return fmt.Errorf("Failed to insert into print_job:\n%w", err)
	}
	return nil
}

// Start marks a job as being sent to the named printer.
func (r *Repository) Start(u uuid.UUID, deviceName string) error {
	return r.update(u, `UPDATE print_job SET status = ?, device_name = ? WHERE uuid = ?`,
		Printing, deviceName, u.String())
}

// Finish records the outcome of a job. A nil error marks it done.
func (r *Repository) Finish(u uuid.UUID, jobErr error) error {
	status, message := Done, ""
	if jobErr != nil {
		status, message = Failed, jobErr.Error()
	}
	return r.update(u, `UPDATE print_job SET status = ?, error = ?, finished_at = ? WHERE uuid = ?`,
		status, message, r.now().UnixMilli(), u.String())
}

func (r *Repository) update(u uuid.UUID, query string, args ...any) error {
	res, err := r.Db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("Couldn't update print job %s:\n%w", u, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Couldn't update print job %s:\n%w", u, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, u)
	}
	return nil
}

const jobColumns = `id, uuid, created_at, finished_at, device_name, width, height, algorithm, energy, status, error`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var j Job
	var uuidString string
	var created int64
	var finished sql.NullInt64
	if err := row.Scan(&j.Id, &uuidString, &created, &finished, &j.DeviceName,
		&j.Width, &j.Height, &j.Algorithm, &j.Energy, &j.Status, &j.Error); err != nil {
		return j, err
	}
	j.Uuid = uuid.MustParse(uuidString)
	j.CreatedAt = time.UnixMilli(created)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		j.FinishedAt = &t
	}
	return j, nil
}

// Get returns nil if there is no job with the uuid.
func (r *Repository) Get(u uuid.UUID) (*Job, error) {
	row := r.Db.QueryRow(`SELECT `+jobColumns+` FROM print_job WHERE uuid = ?`, u.String())
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to read print job:\n%w", err)
	}
	return &j, nil
}

// List returns up to limit jobs, newest first.
func (r *Repository) List(limit int) ([]Job, error) {
	rows, err := r.Db.Query(`SELECT `+jobColumns+` FROM print_job ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("Query execution failed:\n%w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("Row scanning failed:\n%w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Error iterating rows:\n%w", err)
	}
	return jobs, nil
}

// Interrupted marks jobs left pending or printing by a previous run as
// failed and returns how many there were.
func (r *Repository) Interrupted() (int64, error) {
	res, err := r.Db.Exec(`
		UPDATE print_job SET status = ?, error = ?, finished_at = ?
		WHERE status IN (?, ?)`,
		Failed, "interrupted", r.now().UnixMilli(), Pending, Printing)
	if err != nil {
		return 0, fmt.Errorf("Couldn't fail interrupted jobs:\n%w", err)
	}
	return res.RowsAffected()
}
