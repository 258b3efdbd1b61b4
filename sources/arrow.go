package sources

import (
	"iter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/pickme-go/errors"
)

// Arrow reads the rows of every record batch of reader. The reader is
// released when the sequence ends.
func Arrow(reader array.RecordReader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		defer reader.Release()

		for reader.Next() {
			if !yieldBatch(reader.Record(), yield) {
				return
			}
		}

		if err := reader.Err(); err != nil {
			yield(nil, errors.WithPrevious(err, `cannot read arrow record batch`))
		}
	}
}

func yieldBatch(batch arrow.Record, yield func(Record, error) bool) bool {
	schema := batch.Schema()
	cols := int(batch.NumCols())

	for row := 0; row < int(batch.NumRows()); row++ {
		rec := make(Record, cols)
		for c := 0; c < cols; c++ {
			rec[schema.Field(c).Name] = arrowValue(batch.Column(c), row)
		}
		if !yield(rec, nil) {
			return false
		}
	}

	return true
}

func arrowValue(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	}

	return arr.ValueStr(i)
}
