package store

// Discovered is one remote binding learned during a scan. The peer's own
// self-index pointer is stored with binding == node_id and a NULL name;
// it drives the next discovery round and is never shown as content.
type Discovered struct {
	NodeID  string  `json:"node_id"`
	Binding string  `json:"binding"`
	Name    *string `json:"name"` // nil for the self-index sentinel row
	CID     *string `json:"cid"`  // nil until resolution succeeds
}

// IsIndex reports whether the row is a peer's self-index sentinel.
func (d Discovered) IsIndex() bool {
	return d.Name == nil
}

// Published is one local directory under active publication.
type Published struct {
	Path    string `json:"path"`
	KeyName string `json:"key"`
	AddedAt int64  `json:"added_at"` // Unix seconds
}
