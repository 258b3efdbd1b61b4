package sources

import (
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/pickme-go/errors"
)

const parquetBatch = 256

// Parquet reads the rows of a flat parquet file as records.
func Parquet(r io.ReaderAt, size int64) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		pf, err := parquet.OpenFile(r, size)
		if err != nil {
			yield(nil, errors.WithPrevious(err, `cannot open parquet file`))
			return
		}

		var names []string
		for _, path := range pf.Schema().Columns() {
			if len(path) == 0 {
				names = append(names, ``)
				continue
			}
			names = append(names, path[len(path)-1])
		}

		buf := make([]parquet.Row, parquetBatch)
		for _, rg := range pf.RowGroups() {
			if !readRowGroup(rg, names, buf, yield) {
				return
			}
		}
	}
}

func readRowGroup(rg parquet.RowGroup, names []string, buf []parquet.Row, yield func(Record, error) bool) bool {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			rec := make(Record, len(names))
			for _, v := range row {
				if c := v.Column(); c >= 0 && c < len(names) {
					rec[names[c]] = parquetValue(v)
				}
			}
			if !yield(rec, nil) {
				return false
			}
		}

		if err == io.EOF {
			return true
		}
		if err != nil {
			yield(nil, errors.WithPrevious(err, `cannot read parquet rows`))
			return false
		}
		if n == 0 {
			return true
		}
	}
}

func parquetValue(v parquet.Value) interface{} {
	if v.IsNull() {
		return nil
	}

	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}

	return v.String()
}

// ParquetOf reads rows into T, which follows parquet-go struct tags.
func ParquetOf[T any](r io.ReaderAt, size int64) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		pf, err := parquet.OpenFile(r, size)
		if err != nil {
			yield(zero, errors.WithPrevious(err, `cannot open parquet file`))
			return
		}

		buf := make([]T, parquetBatch)
		for _, rg := range pf.RowGroups() {
			if !readGenericRowGroup(parquet.NewGenericRowGroupReader[T](rg), buf, yield) {
				return
			}
		}
	}
}

func readGenericRowGroup[T any](reader *parquet.GenericReader[T], buf []T, yield func(T, error) bool) bool {
	defer reader.Close()

	for {
		n, err := reader.Read(buf)
		for _, t := range buf[:n] {
			if !yield(t, nil) {
				return false
			}
		}

		if err == io.EOF {
			return true
		}
		if err != nil {
			var zero T
			yield(zero, errors.WithPrevious(err, `cannot read parquet rows`))
			return false
		}
		if n == 0 {
			return true
		}
	}
}

// ParquetFile reads the parquet file at path as records.
func ParquetFile(path string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, errors.WithPrevious(err, fmt.Sprintf(`cannot open [%s]`, path)))
			return
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			yield(nil, errors.WithPrevious(err, fmt.Sprintf(`cannot stat [%s]`, path)))
			return
		}

		for rec, err := range Parquet(f, stat.Size()) {
			if !yield(rec, err) {
				return
			}
		}
	}
}
