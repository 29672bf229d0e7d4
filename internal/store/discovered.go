package store

// scanDiscovered scans a row into a Discovered. Columns must be in
// standard order: node_id, binding, name, cid.
func scanDiscovered(scanner interface{ Scan(dest ...any) error }) (Discovered, error) {
	var d Discovered
	err := scanner.Scan(&d.NodeID, &d.Binding, &d.Name, &d.CID)
	return d, err
}

// UpsertDiscovered inserts or refreshes the row for (nodeID, binding).
// A later round overwrites name and cid rather than duplicating the row.
func (s *Store) UpsertDiscovered(nodeID, binding string, name, cid *string) error {
	_, err := s.conn.Exec(`
		INSERT INTO discovered (node_id, binding, name, cid)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(node_id, binding) DO UPDATE SET
			name = excluded.name,
			cid  = excluded.cid
	`, nodeID, binding, nullable(name), nullable(cid))
	return err
}

// ListDiscovered returns all discovered rows ordered by peer then name.
func (s *Store) ListDiscovered() ([]Discovered, error) {
	rows, err := s.conn.Query(`
		SELECT node_id, binding, name, cid
		FROM discovered ORDER BY node_id, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Discovered
	for rows.Next() {
		d, err := scanDiscovered(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DiscoveredByPeer returns the rows for a single peer.
func (s *Store) DiscoveredByPeer(nodeID string) ([]Discovered, error) {
	rows, err := s.conn.Query(`
		SELECT node_id, binding, name, cid
		FROM discovered WHERE node_id = ? ORDER BY name
	`, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Discovered
	for rows.Next() {
		d, err := scanDiscovered(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
