package store

import (
	"context"
	"database/sql"

	"mediaparser/internal/model"
)

// AddTag attaches a normalized lowercase tag to a file within tx, creating
// the Tag row if it doesn't exist and incrementing usage_count only on a
// new association (idempotent: re-adding an already-attached tag is a
// no-op on usage_count).
func AddTag(ctx context.Context, tx *sql.Tx, fileID int64, name string) error {
	var tagID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID)
	if err == sql.ErrNoRows {
		res, ierr := tx.ExecContext(ctx, `INSERT INTO tags (name, usage_count) VALUES (?, 0)`, name)
		if ierr != nil {
			return ierr
		}
		tagID, err = res.LastInsertId()
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO file_tags (file_id, tag_id) VALUES (?, ?)`, fileID, tagID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE tags SET usage_count = usage_count + 1 WHERE id = ?`, tagID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTag detaches a tag from a file and decrements usage_count, the
// inverse of AddTag; returning a file's tag set to its prior state after an
// add/remove round-trip per spec.md §8.
func RemoveTag(ctx context.Context, tx *sql.Tx, fileID int64, name string) error {
	var tagID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM file_tags WHERE file_id = ? AND tag_id = ?`, fileID, tagID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		_, err = tx.ExecContext(ctx, `UPDATE tags SET usage_count = usage_count - 1 WHERE id = ?`, tagID)
	}
	return err
}

// FileTags returns the tags currently attached to a file, ordered by name.
func (s *Store) FileTags(ctx context.Context, fileID int64) ([]model.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.usage_count FROM tags t
		JOIN file_tags ft ON ft.tag_id = t.id
		WHERE ft.file_id = ? ORDER BY t.name`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.UsageCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GCUnusedTags deletes tags with zero usage, the garbage collection finalize
// performs per spec.md §3's "Tags with zero usage may be garbage-collected
// at finalize time."
func GCUnusedTags(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE usage_count <= 0`)
	return err
}
