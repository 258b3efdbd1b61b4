package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[T any](t *testing.T, seq func(func(T, error) bool)) ([]T, error) {
	t.Helper()
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func TestSlice(t *testing.T) {
	got, err := collect[int](t, Slice([]int{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestSeq(t *testing.T) {
	got, err := collect[string](t, Seq(func(yield func(string) bool) {
		_ = yield(`a`) && yield(`b`)
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{`a`, `b`}, got)
}

func TestFunc(t *testing.T) {
	i := 0
	got, err := collect[int](t, Func(func() (int, bool, error) {
		i++
		return i, i <= 3, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	boom := errors.New(`boom`)
	_, err = collect[int](t, Func(func() (int, bool, error) {
		return 0, false, boom
	}))
	assert.ErrorIs(t, err, boom)
}

func TestChan(t *testing.T) {
	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	close(ch)

	got, err := collect[int](t, Chan(context.Background(), ch))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = collect[int](t, Chan(ctx, make(chan int)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailed(t *testing.T) {
	boom := errors.New(`boom`)
	_, err := collect[int](t, Failed[int](boom))
	assert.ErrorIs(t, err, boom)
}

const customersCSV = "id,name\n1,alice\n2,bob\n3\n"

func TestCSV(t *testing.T) {
	got, err := collect[Record](t, CSV(strings.NewReader(customersCSV)))
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{`id`: `1`, `name`: `alice`},
		{`id`: `2`, `name`: `bob`},
		{`id`: `3`, `name`: nil},
	}, got)
}

func TestCSV_Options(t *testing.T) {
	got, err := collect[Record](t, CSV(strings.NewReader("1;alice\n"), WithComma(';'), WithHeaders(`id`, `name`)))
	require.NoError(t, err)
	assert.Equal(t, []Record{{`id`: `1`, `name`: `alice`}}, got)

	got, err = collect[Record](t, CSV(strings.NewReader(``)))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVFile_LZ4(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	_, err := w.Write([]byte(customersCSV))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, `customers.csv.lz4`)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := collect[Record](t, CSVFile(path))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, `alice`, got[0][`name`])
}

func TestCSVFile_Missing(t *testing.T) {
	_, err := collect[Record](t, CSVFile(filepath.Join(t.TempDir(), `missing.csv`)))
	assert.Error(t, err)
}

func TestJSONLines(t *testing.T) {
	in := `{"id": 1, "item": "book"}
{"id": 2, "item": "pen"}`

	got, err := collect[Record](t, JSONLines[Record](strings.NewReader(in)))
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{`id`: json.Number(`1`), `item`: `book`},
		{`id`: json.Number(`2`), `item`: `pen`},
	}, got)

	type order struct {
		ID   int    `json:"id"`
		Item string `json:"item"`
	}
	orders, err := collect[order](t, JSONLines[order](strings.NewReader(in+"\n{")))
	assert.Error(t, err)
	assert.Equal(t, []order{{1, `book`}, {2, `pen`}}, orders)
}

type parquetCustomer struct {
	ID   int64  `parquet:"id"`
	Name string `parquet:"name"`
}

func writeParquet(t *testing.T, rows []parquetCustomer) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[parquetCustomer](&buf)
	_, err := w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParquet(t *testing.T) {
	data := writeParquet(t, []parquetCustomer{{1, `alice`}, {2, `bob`}})

	got, err := collect[Record](t, Parquet(bytes.NewReader(data), int64(len(data))))
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{`id`: int64(1), `name`: `alice`},
		{`id`: int64(2), `name`: `bob`},
	}, got)

	typed, err := collect[parquetCustomer](t, ParquetOf[parquetCustomer](bytes.NewReader(data), int64(len(data))))
	require.NoError(t, err)
	assert.Equal(t, []parquetCustomer{{1, `alice`}, {2, `bob`}}, typed)
}

func TestParquetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), `customers.parquet`)
	require.NoError(t, os.WriteFile(path, writeParquet(t, []parquetCustomer{{7, `carol`}}), 0o644))

	got, err := collect[Record](t, ParquetFile(path))
	require.NoError(t, err)
	assert.Equal(t, []Record{{`id`: int64(7), `name`: `carol`}}, got)

	_, err = collect[Record](t, Parquet(strings.NewReader(`not parquet`), 11))
	assert.Error(t, err)
}

func TestArrow(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: `id`, Type: arrow.PrimitiveTypes.Int64},
		{Name: `item`, Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{`book`, ``}, []bool{true, false})
	rec := b.NewRecord()
	defer rec.Release()

	reader, err := array.NewRecordReader(schema, []arrow.Record{rec})
	require.NoError(t, err)

	got, err := collect[Record](t, Arrow(reader))
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{`id`: int64(1), `item`: `book`},
		{`id`: int64(2), `item`: nil},
	}, got)
}
