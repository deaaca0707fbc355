package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint is a stable hash summarizing a database's structure, used to
// detect schema drift between runs.
type Fingerprint string

// Fingerprint computes the deterministic content hash of the description.
// The hash input is the canonical JSON form: tables, columns, foreign keys,
// and index entries sorted by name, so two logically identical schemas hash
// identically regardless of extraction order. Comments participate in the
// hash byte-exact, whitespace included.
func (d *Description) Fingerprint() (Fingerprint, error) {
	canonical := d.canonical()

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to serialize schema for hashing: %w", err)
	}

	sum := sha256.Sum256(data)

	return Fingerprint(hex.EncodeToString(sum[:])), nil
}

// canonical returns a deep copy with every collection in sorted order
func (d *Description) canonical() *Description {
	out := &Description{Tables: make([]Table, len(d.Tables))}

	for i, table := range d.Tables {
		t := Table{
			Name:    table.Name,
			Comment: table.Comment,
		}

		t.Columns = append([]Column(nil), table.Columns...)
		sort.Slice(t.Columns, func(a, b int) bool {
			return t.Columns[a].Name < t.Columns[b].Name
		})

		t.ForeignKeys = append([]ForeignKey(nil), table.ForeignKeys...)
		sort.Slice(t.ForeignKeys, func(a, b int) bool {
			return t.ForeignKeys[a].Column < t.ForeignKeys[b].Column
		})

		t.Indexes = make([]Index, len(table.Indexes))
		for j, idx := range table.Indexes {
			t.Indexes[j] = Index{
				Name:    idx.Name,
				Columns: append([]string(nil), idx.Columns...),
				Unique:  idx.Unique,
			}
		}

		sort.Slice(t.Indexes, func(a, b int) bool {
			return t.Indexes[a].Name < t.Indexes[b].Name
		})

		out.Tables[i] = t
	}

	sort.Slice(out.Tables, func(a, b int) bool {
		return out.Tables[a].Name < out.Tables[b].Name
	})

	return out
}
