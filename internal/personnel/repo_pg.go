package personnel

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

const personnelColumns = `id, account_id, employee_code, first_name, last_name, department, position, active, manager, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, p Personnel) (Personnel, error) {
	const query = `
INSERT INTO personnel (id, account_id, employee_code, first_name, last_name, department, position, active, manager, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
ON CONFLICT (account_id) DO NOTHING
RETURNING ` + personnelColumns
	created, err := scanPersonnel(r.DB.QueryRowContext(ctx, query,
		p.ID,
		p.AccountID,
		nullableString(p.EmployeeCode),
		p.FirstName,
		p.LastName,
		string(p.Department),
		p.Position,
		p.Active,
		p.Manager,
	))
	if errors.Is(err, ErrNotFound) {
		return r.GetByAccountID(ctx, p.AccountID)
	}
	return created, err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel WHERE id = $1 LIMIT 1`
	return scanPersonnel(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) GetByAccountID(ctx context.Context, accountID string) (Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel WHERE account_id = $1 LIMIT 1`
	return scanPersonnel(r.DB.QueryRowContext(ctx, query, accountID))
}

func (r *PGRepo) ListActive(ctx context.Context) ([]Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel WHERE active ORDER BY first_name, last_name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Personnel, 0)
	for rows.Next() {
		p, err := scanPersonnel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM personnel WHERE active`).Scan(&n)
	return n, err
}

func (r *PGRepo) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Personnel, error) {
	const query = `
UPDATE personnel
SET first_name = $2, last_name = $3, position = $4, updated_at = now()
WHERE id = $1
RETURNING ` + personnelColumns
	return scanPersonnel(r.DB.QueryRowContext(ctx, query, id, u.FirstName, u.LastName, u.Position))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersonnel(row rowScanner) (Personnel, error) {
	var (
		p            Personnel
		employeeCode sql.NullString
		department   string
	)
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&employeeCode,
		&p.FirstName,
		&p.LastName,
		&department,
		&p.Position,
		&p.Active,
		&p.Manager,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Personnel{}, ErrNotFound
		}
		return Personnel{}, err
	}
	p.EmployeeCode = employeeCode.String
	p.Department = Department(department)
	return p, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
