package server

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"vela/internal/app/exec"
	"vela/internal/app/file"
	"vela/internal/app/parse"
	"vela/internal/app/types"
)

// The read-eval-print loop: reads statements from the input one per
// line, echoes the canonical form of each valid statement, prints
// its result followed by a blank line, and keeps going after
// statement errors. The words quit and test are handled specially.
type Shell struct {
	env  *file.DbEnv
	exec *exec.SQLExec
	in   io.Reader
	out  io.Writer
}

// NewShell opens the database in the environment and binds the loop
// to the given streams.
func NewShell(env *file.DbEnv, in io.Reader, out io.Writer) (*Shell, error) {
	sqlExec, err := exec.NewSQLExec(env)
	if err != nil {
		return nil, err
	}
	return &Shell{env: env, exec: sqlExec, in: in, out: out}, nil
}

// Run processes statements until quit or end of input.
func (s *Shell) Run() error {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "quit":
			return nil
		case "test":
			if err := RunSelfTests(s.env); err != nil {
				s.env.Log.Error().Err(err).Msg("self-tests failed")
				fmt.Fprintln(s.out, "failed")
			} else {
				fmt.Fprintln(s.out, "ok")
			}
			continue
		}

		stmt, err := parse.Parse(line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(s.out, stmt.String())

		result, err := s.exec.Execute(stmt)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		s.printResult(result)
	}
	return scanner.Err()
}

func (s *Shell) printResult(result *exec.QueryResult) {
	if result.ColumnNames != nil {
		table := tablewriter.NewWriter(s.out)
		table.SetHeader(result.ColumnNames)
		table.SetAutoFormatHeaders(false)
		for _, row := range result.Rows {
			cells := make([]string, 0, len(result.ColumnNames))
			for _, name := range result.ColumnNames {
				cells = append(cells, formatValue(row[name]))
			}
			table.Append(cells)
		}
		table.Render()
	}
	fmt.Fprintln(s.out, result.Message)
	fmt.Fprintln(s.out)
}

func formatValue(v types.Value) string {
	switch v.Type {
	case types.TEXT:
		return fmt.Sprintf("%q", v.S)
	case types.BOOLEAN:
		if v.N == 0 {
			return "false"
		}
		return "true"
	}
	return fmt.Sprintf("%d", v.N)
}
