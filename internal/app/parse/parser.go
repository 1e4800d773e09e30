package parse

import (
	"vela/internal/app/types"
)

// A recursive-descent parser for the supported SQL subset:
// CREATE TABLE / CREATE INDEX / DROP TABLE / DROP INDEX /
// SHOW TABLES|COLUMNS|INDEX / INSERT / DELETE / SELECT, with WHERE
// clauses restricted to conjunctions of column = literal.
type Parser struct {
	lexer *Lexer
}

func NewParser(s string) *Parser {
	return &Parser{lexer: NewLexer(s)}
}

// Parse parses one complete statement.
func Parse(s string) (Statement, error) {
	p := NewParser(s)
	stmt, err := p.Statement()
	if err != nil {
		return nil, err
	}
	if !p.lexer.MatchEOF() {
		return nil, p.lexer.syntaxErrorf("expected end of statement")
	}
	return stmt, nil
}

// Statement dispatches on the leading keyword.
func (p *Parser) Statement() (Statement, error) {
	switch {
	case p.lexer.MatchKeyword("select"):
		return p.selectStatement()
	case p.lexer.MatchKeyword("insert"):
		return p.insertStatement()
	case p.lexer.MatchKeyword("delete"):
		return p.deleteStatement()
	case p.lexer.MatchKeyword("create"):
		return p.createStatement()
	case p.lexer.MatchKeyword("drop"):
		return p.dropStatement()
	case p.lexer.MatchKeyword("show"):
		return p.showStatement()
	}
	return nil, p.lexer.syntaxErrorf("expected a statement")
}

// <Select> := SELECT ( * | <IdList> ) FROM IdTok [ WHERE <Condition> ]
func (p *Parser) selectStatement() (Statement, error) {
	if err := p.lexer.EatKeyword("select"); err != nil {
		return nil, err
	}
	stmt := &SelectStatement{}
	if p.lexer.MatchDelim('*') {
		stmt.Star = true
		if err := p.lexer.EatDelim('*'); err != nil {
			return nil, err
		}
	} else {
		cols, err := p.idList()
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}
	if err := p.lexer.EatKeyword("from"); err != nil {
		return nil, err
	}
	table, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	stmt.TableName = table

	if p.lexer.MatchKeyword("where") {
		where, err := p.whereClause()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// <Insert> := INSERT INTO IdTok [ ( <IdList> ) ] VALUES ( <Literal> { , <Literal> } )
func (p *Parser) insertStatement() (Statement, error) {
	if err := p.lexer.EatKeyword("insert"); err != nil {
		return nil, err
	}
	if err := p.lexer.EatKeyword("into"); err != nil {
		return nil, err
	}
	table, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	stmt := &InsertStatement{TableName: table}

	if p.lexer.MatchDelim('(') {
		if err := p.lexer.EatDelim('('); err != nil {
			return nil, err
		}
		cols, err := p.idList()
		if err != nil {
			return nil, err
		}
		if err := p.lexer.EatDelim(')'); err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}

	if err := p.lexer.EatKeyword("values"); err != nil {
		return nil, err
	}
	if err := p.lexer.EatDelim('('); err != nil {
		return nil, err
	}
	for {
		v, err := p.literal()
		if err != nil {
			return nil, err
		}
		stmt.Values = append(stmt.Values, v)
		if !p.lexer.MatchDelim(',') {
			break
		}
		if err := p.lexer.EatDelim(','); err != nil {
			return nil, err
		}
	}
	if err := p.lexer.EatDelim(')'); err != nil {
		return nil, err
	}
	return stmt, nil
}

// <Delete> := DELETE FROM IdTok [ WHERE <Condition> ]
func (p *Parser) deleteStatement() (Statement, error) {
	if err := p.lexer.EatKeyword("delete"); err != nil {
		return nil, err
	}
	if err := p.lexer.EatKeyword("from"); err != nil {
		return nil, err
	}
	table, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	stmt := &DeleteStatement{TableName: table}
	if p.lexer.MatchKeyword("where") {
		where, err := p.whereClause()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// <Create> := CREATE TABLE <CreateTable> | CREATE INDEX <CreateIndex>
func (p *Parser) createStatement() (Statement, error) {
	if err := p.lexer.EatKeyword("create"); err != nil {
		return nil, err
	}
	if p.lexer.MatchKeyword("table") {
		return p.createTable()
	}
	if p.lexer.MatchKeyword("index") {
		return p.createIndex()
	}
	return nil, p.lexer.syntaxErrorf("expected TABLE or INDEX")
}

// <CreateTable> := TABLE [ IF NOT EXISTS ] IdTok
//
//	( <ColumnDef> { , <ColumnDef> } [ , PRIMARY KEY ( <IdList> ) ] )
func (p *Parser) createTable() (Statement, error) {
	if err := p.lexer.EatKeyword("table"); err != nil {
		return nil, err
	}
	stmt := &CreateTableStatement{}
	if p.lexer.MatchKeyword("if") {
		for _, w := range []string{"if", "not", "exists"} {
			if err := p.lexer.EatKeyword(w); err != nil {
				return nil, err
			}
		}
		stmt.IfNotExists = true
	}
	table, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	stmt.TableName = table

	if err := p.lexer.EatDelim('('); err != nil {
		return nil, err
	}
	for {
		if p.lexer.MatchKeyword("primary") {
			if err := p.lexer.EatKeyword("primary"); err != nil {
				return nil, err
			}
			if err := p.lexer.EatKeyword("key"); err != nil {
				return nil, err
			}
			if err := p.lexer.EatDelim('('); err != nil {
				return nil, err
			}
			pk, err := p.idList()
			if err != nil {
				return nil, err
			}
			if err := p.lexer.EatDelim(')'); err != nil {
				return nil, err
			}
			stmt.PrimaryKey = pk
		} else {
			name, err := p.lexer.EatId()
			if err != nil {
				return nil, err
			}
			dt, err := p.dataType()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, ColumnDefinition{Name: name, Type: dt})
		}
		if !p.lexer.MatchDelim(',') {
			break
		}
		if err := p.lexer.EatDelim(','); err != nil {
			return nil, err
		}
	}
	if err := p.lexer.EatDelim(')'); err != nil {
		return nil, err
	}
	return stmt, nil
}

// <CreateIndex> := INDEX IdTok ON IdTok [ USING IdTok ] ( <IdList> )
func (p *Parser) createIndex() (Statement, error) {
	if err := p.lexer.EatKeyword("index"); err != nil {
		return nil, err
	}
	name, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	if err := p.lexer.EatKeyword("on"); err != nil {
		return nil, err
	}
	table, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	stmt := &CreateIndexStatement{IndexName: name, TableName: table, IndexType: "BTREE"}

	if p.lexer.MatchKeyword("using") {
		if err := p.lexer.EatKeyword("using"); err != nil {
			return nil, err
		}
		kind, err := p.lexer.EatId()
		if err != nil {
			return nil, err
		}
		stmt.IndexType = kind
	}
	if err := p.lexer.EatDelim('('); err != nil {
		return nil, err
	}
	cols, err := p.idList()
	if err != nil {
		return nil, err
	}
	if err := p.lexer.EatDelim(')'); err != nil {
		return nil, err
	}
	stmt.Columns = cols
	return stmt, nil
}

// <Drop> := DROP TABLE IdTok | DROP INDEX IdTok FROM IdTok
func (p *Parser) dropStatement() (Statement, error) {
	if err := p.lexer.EatKeyword("drop"); err != nil {
		return nil, err
	}
	if p.lexer.MatchKeyword("table") {
		if err := p.lexer.EatKeyword("table"); err != nil {
			return nil, err
		}
		table, err := p.lexer.EatId()
		if err != nil {
			return nil, err
		}
		return &DropTableStatement{TableName: table}, nil
	}
	if err := p.lexer.EatKeyword("index"); err != nil {
		return nil, err
	}
	name, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	if err := p.lexer.EatKeyword("from"); err != nil {
		return nil, err
	}
	table, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	return &DropIndexStatement{IndexName: name, TableName: table}, nil
}

// <Show> := SHOW TABLES | SHOW COLUMNS FROM IdTok | SHOW INDEX FROM IdTok
func (p *Parser) showStatement() (Statement, error) {
	if err := p.lexer.EatKeyword("show"); err != nil {
		return nil, err
	}
	if p.lexer.MatchKeyword("tables") {
		if err := p.lexer.EatKeyword("tables"); err != nil {
			return nil, err
		}
		return &ShowStatement{Type: ShowTables}, nil
	}

	stmt := &ShowStatement{}
	if p.lexer.MatchKeyword("columns") {
		if err := p.lexer.EatKeyword("columns"); err != nil {
			return nil, err
		}
		stmt.Type = ShowColumns
	} else if p.lexer.MatchKeyword("index") {
		if err := p.lexer.EatKeyword("index"); err != nil {
			return nil, err
		}
		stmt.Type = ShowIndex
	} else {
		return nil, p.lexer.syntaxErrorf("expected TABLES, COLUMNS or INDEX")
	}
	if err := p.lexer.EatKeyword("from"); err != nil {
		return nil, err
	}
	table, err := p.lexer.EatId()
	if err != nil {
		return nil, err
	}
	stmt.TableName = table
	return stmt, nil
}

// <Condition> := IdTok = <Literal> { AND IdTok = <Literal> }
func (p *Parser) whereClause() (*Condition, error) {
	if err := p.lexer.EatKeyword("where"); err != nil {
		return nil, err
	}
	cond := &Condition{}
	for {
		col, err := p.lexer.EatId()
		if err != nil {
			return nil, err
		}
		if err := p.lexer.EatDelim('='); err != nil {
			return nil, err
		}
		v, err := p.literal()
		if err != nil {
			return nil, err
		}
		cond.Terms = append(cond.Terms, Term{Column: col, Value: v})
		if !p.lexer.MatchKeyword("and") {
			break
		}
		if err := p.lexer.EatKeyword("and"); err != nil {
			return nil, err
		}
	}
	return cond, nil
}

// <Literal> := IntTok | StrTok | TRUE | FALSE
func (p *Parser) literal() (types.Value, error) {
	switch {
	case p.lexer.MatchStringConstant():
		s, err := p.lexer.EatStringConstant()
		return types.TextValue(s), err
	case p.lexer.MatchKeyword("true"):
		return types.BoolValue(true), p.lexer.EatKeyword("true")
	case p.lexer.MatchKeyword("false"):
		return types.BoolValue(false), p.lexer.EatKeyword("false")
	}
	n, err := p.lexer.EatIntConstant()
	return types.IntValue(n), err
}

// <DataType> := INT | TEXT | BOOLEAN
func (p *Parser) dataType() (types.DataType, error) {
	switch {
	case p.lexer.MatchKeyword("int"):
		return types.INT, p.lexer.EatKeyword("int")
	case p.lexer.MatchKeyword("text"):
		return types.TEXT, p.lexer.EatKeyword("text")
	case p.lexer.MatchKeyword("boolean"):
		return types.BOOLEAN, p.lexer.EatKeyword("boolean")
	}
	return types.INT, p.lexer.syntaxErrorf("expected a data type")
}

// <IdList> := IdTok { , IdTok }
func (p *Parser) idList() (types.ColumnNames, error) {
	var ids types.ColumnNames
	for {
		id, err := p.lexer.EatId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		if !p.lexer.MatchDelim(',') {
			return ids, nil
		}
		if err := p.lexer.EatDelim(','); err != nil {
			return nil, err
		}
	}
}
