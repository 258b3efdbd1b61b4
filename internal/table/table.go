// Package table joins column records: key extraction by column, the merge and
// flatten projections, and rendering for the command line and HTTP server.
package table

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pickme-go/errors"
	streamjoin "github.com/pickme-go/stream-join"
	"github.com/pickme-go/stream-join/sources"
)

type Record = sources.Record

// nullKey is the key of nil cells. Every other key carries valuePrefix, so no
// cell value can collide with it.
const (
	nullKey     = ``
	valuePrefix = `=`
)

// ColumnKey keys records by the textual form of column, so `1`, 1 and
// json.Number(`1`) join. Nil cells join each other only. A missing column
// fails key extraction.
func ColumnKey(column string) streamjoin.KeyFunc[Record, string] {
	return func(r Record) (string, error) {
		v, ok := r[column]
		if !ok {
			return ``, errors.New(fmt.Sprintf(`column [%s] not found`, column))
		}
		if v == nil {
			return nullKey, nil
		}
		return valuePrefix + fmt.Sprint(v), nil
	}
}

// Merge combines a pair into one record. Right columns clashing with left
// ones are stored as `<rightPrefix>.<column>`.
func Merge(rightPrefix string) func(l, r Record) (Record, error) {
	return func(l, r Record) (Record, error) {
		out := make(Record, len(l)+len(r))
		for k, v := range l {
			out[k] = v
		}
		for k, v := range r {
			if _, ok := out[k]; ok {
				k = rightPrefix + `.` + k
			}
			out[k] = v
		}
		return out, nil
	}
}

// Flatten groups the matches of a left record under column. The group of
// unmatched right records has no left columns.
func Flatten(column string) func(l *Record, rs iter.Seq[Record]) (Record, error) {
	return func(l *Record, rs iter.Seq[Record]) (Record, error) {
		out := Record{}
		if l != nil {
			for k, v := range *l {
				out[k] = v
			}
		}

		matches := []Record{}
		for r := range rs {
			matches = append(matches, r)
		}
		out[column] = matches

		return out, nil
	}
}

// Columns returns the sorted union of the columns of rows.
func Columns(rows []Record) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	return cols
}

// Render writes rows as a text table.
func Render(w io.Writer, rows []Record) {
	cols := Columns(rows)

	table := tablewriter.NewWriter(w)
	table.SetHeader(cols)
	table.SetAutoFormatHeaders(false)
	for _, r := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = cell(r[c])
		}
		table.SetColumnAlignment(alignments(len(cols)))
		table.Append(line)
	}
	table.Render()
}

func alignments(n int) []int {
	a := make([]int, n)
	for i := range a {
		a[i] = tablewriter.ALIGN_LEFT
	}
	return a
}

func cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ``
	case []Record:
		parts := make([]string, 0, len(val))
		for _, r := range val {
			byt, _ := json.Marshal(r)
			parts = append(parts, string(byt))
		}
		return `[` + strings.Join(parts, `, `) + `]`
	}

	return fmt.Sprint(v)
}

// RenderStats writes the counters of an evaluation as a two column table.
func RenderStats(w io.Writer, name string, stats streamjoin.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{`Join`, name})
	for _, v := range [][]string{
		{`left.pulled`, fmt.Sprint(stats.LeftPulled)},
		{`right.indexed`, fmt.Sprint(stats.RightIndexed)},
		{`index.buckets`, fmt.Sprint(stats.Buckets)},
		{`index.build`, stats.IndexBuildTime.String()},
		{`unmatched.groups`, fmt.Sprint(stats.UnmatchedGroups)},
		{`emitted`, fmt.Sprint(stats.Emitted)},
	} {
		table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT})
		table.Append(v)
	}
	table.Render()
}

// WriteJSONLines writes one JSON object per row and stops at the first error.
func WriteJSONLines(w io.Writer, rows iter.Seq2[Record, error]) (int, error) {
	enc := json.NewEncoder(w)

	var n int
	for r, err := range rows {
		if err != nil {
			return n, err
		}
		if err := enc.Encode(r); err != nil {
			return n, errors.WithPrevious(err, `cannot write row`)
		}
		n++
	}

	return n, nil
}
