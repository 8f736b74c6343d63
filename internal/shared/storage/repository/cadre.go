package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage"
)

const cadreColumns = `id, name, code, controlling_authority, controlling_department,
	controlling_user_id, sequence, created_at, updated_at`

func scanCadre(row interface{ Scan(...any) error }) (*model.Cadre, error) {
	c := &model.Cadre{}
	var dept, userID sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Code, &c.ControllingAuthority, &dept,
		&userID, &c.Sequence, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ControllingDepartment = stringPtr(dept)
	c.ControllingUserID = stringPtr(userID)
	return c, nil
}

func (s *Store) listCadres(ctx context.Context, query string, args ...any) ([]*model.Cadre, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*model.Cadre
	for rows.Next() {
		c, err := scanCadre(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// CreateCadre 创建 Cadre
func (s *Store) CreateCadre(ctx context.Context, c *model.Cadre) error {
	_, err := s.exec(ctx,
		`INSERT INTO cadres (`+cadreColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.Code, c.ControllingAuthority, nullString(c.ControllingDepartment),
		nullString(c.ControllingUserID), c.Sequence, utc(c.CreatedAt), utc(c.UpdatedAt),
	)
	return err
}

// GetCadre 通过 ID 查找 Cadre
func (s *Store) GetCadre(ctx context.Context, id string) (*model.Cadre, error) {
	c, err := scanCadre(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+cadreColumns+` FROM cadres WHERE id = $1`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListCadres 列出所有 Cadre
func (s *Store) ListCadres(ctx context.Context) ([]*model.Cadre, error) {
	return s.listCadres(ctx, `SELECT `+cadreColumns+` FROM cadres ORDER BY name`)
}

// ListCadresByControllingUser 列出由指定用户主管的 Cadre
func (s *Store) ListCadresByControllingUser(ctx context.Context, userID string) ([]*model.Cadre, error) {
	return s.listCadres(ctx,
		`SELECT `+cadreColumns+` FROM cadres WHERE controlling_user_id = $1 ORDER BY name`, userID)
}

// UpdateCadre 更新 Cadre 基本信息，序号不受影响
func (s *Store) UpdateCadre(ctx context.Context, c *model.Cadre) error {
	return s.execOne(ctx,
		`UPDATE cadres SET name = $1, code = $2, controlling_authority = $3,
			controlling_department = $4, controlling_user_id = $5, updated_at = $6
		 WHERE id = $7`,
		c.Name, c.Code, c.ControllingAuthority, nullString(c.ControllingDepartment),
		nullString(c.ControllingUserID), utc(c.UpdatedAt), c.ID,
	)
}

// DeleteCadre 在事务中解除成员关系并删除 Cadre
func (s *Store) DeleteCadre(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE employees SET cadre_id = NULL, updated_at = $1 WHERE cadre_id = $2`),
		utcNow(), id); err != nil {
		return fmt.Errorf("detach employees: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM cadres WHERE id = $1`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

// NextCadreSequence 原子递增 Cadre 序号
func (s *Store) NextCadreSequence(ctx context.Context, id string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		s.rebind(`UPDATE cadres SET sequence = sequence + 1, updated_at = $1 WHERE id = $2 RETURNING sequence`),
		utcNow(), id,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return seq, err
}

// CountEmployeesByCadre 每个 Cadre 的员工数，无成员的 Cadre 计 0
func (s *Store) CountEmployeesByCadre(ctx context.Context) ([]model.CadreCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, COUNT(e.id)
		 FROM cadres c LEFT JOIN employees e ON e.cadre_id = c.id
		 GROUP BY c.id, c.name
		 ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CadreCount
	for rows.Next() {
		var cc model.CadreCount
		if err := rows.Scan(&cc.CadreID, &cc.CadreName, &cc.Employees); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}
