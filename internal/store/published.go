package store

import "time"

// UpsertPublished registers a directory under a key name. Re-adding an
// existing path updates the key but keeps the original added_at stamp.
func (s *Store) UpsertPublished(path, keyName string) error {
	_, err := s.conn.Exec(`
		INSERT INTO published (path, key_name, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			key_name = excluded.key_name
	`, path, keyName, time.Now().Unix())
	return err
}

// ListPublished returns all published directories ordered by key name.
func (s *Store) ListPublished() ([]Published, error) {
	rows, err := s.conn.Query(`
		SELECT path, key_name, added_at
		FROM published ORDER BY key_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Published
	for rows.Next() {
		var p Published
		if err := rows.Scan(&p.Path, &p.KeyName, &p.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePublished removes a registered directory. Returns false if the
// path was not registered.
func (s *Store) DeletePublished(path string) (bool, error) {
	res, err := s.conn.Exec(`DELETE FROM published WHERE path = ?`, path)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
