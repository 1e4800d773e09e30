package parse

import (
	"strings"

	"vela/internal/app/types"
)

// A parsed SQL statement. String renders the canonical form the
// shell echoes back before executing.
type Statement interface {
	String() string
}

// One column = literal equality in a WHERE clause.
type Term struct {
	Column string
	Value  types.Value
}

// A conjunction of equality terms, in source order.
type Condition struct {
	Terms []Term
}

// Conjunction flattens the terms into a column-to-value dictionary.
func (c *Condition) Conjunction() types.ValueDict {
	out := make(types.ValueDict, len(c.Terms))
	for _, t := range c.Terms {
		out[t.Column] = t.Value
	}
	return out
}

func (c *Condition) String() string {
	parts := make([]string, 0, len(c.Terms))
	for _, t := range c.Terms {
		parts = append(parts, t.Column+" = "+t.Value.String())
	}
	return strings.Join(parts, " AND ")
}

type ColumnDefinition struct {
	Name string
	Type types.DataType
}

type CreateTableStatement struct {
	TableName   string
	IfNotExists bool
	Columns     []ColumnDefinition
	PrimaryKey  types.ColumnNames
}

func (s *CreateTableStatement) String() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if s.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(s.TableName)
	b.WriteString(" (")
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		b.WriteString(" ")
		b.WriteString(col.Type.String())
	}
	if len(s.PrimaryKey) > 0 {
		b.WriteString(", PRIMARY KEY (")
		b.WriteString(strings.Join(s.PrimaryKey, ", "))
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

type CreateIndexStatement struct {
	IndexName string
	TableName string
	IndexType string
	Columns   types.ColumnNames
}

func (s *CreateIndexStatement) String() string {
	var b strings.Builder
	b.WriteString("CREATE INDEX ")
	b.WriteString(s.IndexName)
	b.WriteString(" ON ")
	b.WriteString(s.TableName)
	b.WriteString(" USING ")
	b.WriteString(s.IndexType)
	b.WriteString(" (")
	b.WriteString(strings.Join(s.Columns, ", "))
	b.WriteString(")")
	return b.String()
}

type DropTableStatement struct {
	TableName string
}

func (s *DropTableStatement) String() string {
	return "DROP TABLE " + s.TableName
}

type DropIndexStatement struct {
	IndexName string
	TableName string
}

func (s *DropIndexStatement) String() string {
	return "DROP INDEX " + s.IndexName + " FROM " + s.TableName
}

type ShowType int

const (
	ShowTables ShowType = iota
	ShowColumns
	ShowIndex
)

type ShowStatement struct {
	Type      ShowType
	TableName string
}

func (s *ShowStatement) String() string {
	switch s.Type {
	case ShowTables:
		return "SHOW TABLES"
	case ShowColumns:
		return "SHOW COLUMNS FROM " + s.TableName
	}
	return "SHOW INDEX FROM " + s.TableName
}

type InsertStatement struct {
	TableName string
	Columns   types.ColumnNames // empty means declared order
	Values    []types.Value
}

func (s *InsertStatement) String() string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.TableName)
	if len(s.Columns) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(s.Columns, ", "))
		b.WriteString(")")
	}
	b.WriteString(" VALUES (")
	for i, v := range s.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteString(")")
	return b.String()
}

type DeleteStatement struct {
	TableName string
	Where     *Condition // nil means no WHERE clause
}

func (s *DeleteStatement) String() string {
	out := "DELETE FROM " + s.TableName
	if s.Where != nil {
		out += " WHERE " + s.Where.String()
	}
	return out
}

type SelectStatement struct {
	TableName string
	Star      bool
	Columns   types.ColumnNames
	Where     *Condition
}

func (s *SelectStatement) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Star {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(s.Columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(s.TableName)
	if s.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where.String())
	}
	return b.String()
}
