package schema

import (
	"fmt"
	"strings"
)

// Description is a normalized snapshot of a relational database's structure.
// Table names are unique within a Description; column names are unique
// within a table.
type Description struct {
	Tables []Table `json:"tables"`
}

// Table represents a database table
type Table struct {
	Name        string       `json:"name"`
	Comment     string       `json:"comment,omitempty"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	Indexes     []Index      `json:"indexes,omitempty"`
}

// Column represents a table column
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment,omitempty"`
}

// ForeignKey represents a single-column foreign key relationship
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Index represents a database index
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// Table returns the named table, or nil when absent
func (d *Description) Table(name string) *Table {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return &d.Tables[i]
		}
	}

	return nil
}

// PromptContext renders the description in the compact text form handed to
// the SQL generator. One line per column keeps the token footprint low
// while preserving types, nullability, comments, and relationships.
func (d *Description) PromptContext() string {
	var b strings.Builder

	for _, table := range d.Tables {
		b.WriteString("TABLE " + table.Name)

		if table.Comment != "" {
			b.WriteString(" -- " + table.Comment)
		}

		b.WriteString("\n")

		for _, col := range table.Columns {
			b.WriteString(fmt.Sprintf("  %s %s", col.Name, col.Type))

			if !col.Nullable {
				b.WriteString(" NOT NULL")
			}

			if col.Comment != "" {
				b.WriteString(" -- " + col.Comment)
			}

			b.WriteString("\n")
		}

		for _, fk := range table.ForeignKeys {
			b.WriteString(fmt.Sprintf("  FOREIGN KEY %s -> %s.%s\n",
				fk.Column, fk.ReferencedTable, fk.ReferencedColumn))
		}

		for _, idx := range table.Indexes {
			kind := "INDEX"
			if idx.Unique {
				kind = "UNIQUE INDEX"
			}

			b.WriteString(fmt.Sprintf("  %s %s (%s)\n",
				kind, idx.Name, strings.Join(idx.Columns, ", ")))
		}

		b.WriteString("\n")
	}

	return b.String()
}
