package sources

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/pickme-go/errors"
	"github.com/pierrec/lz4/v4"
)

type csvOptions struct {
	comma   rune
	headers []string
}

type CSVOption func(*csvOptions)

func WithComma(r rune) CSVOption {
	return func(o *csvOptions) {
		o.comma = r
	}
}

// WithHeaders names the columns. The first line is then read as data.
func WithHeaders(headers ...string) CSVOption {
	return func(o *csvOptions) {
		o.headers = headers
	}
}

// CSV reads records from r. Unless WithHeaders is given the first line names
// the columns. Values are strings.
func CSV(r io.Reader, opts ...CSVOption) iter.Seq2[Record, error] {
	o := &csvOptions{comma: ','}
	for _, opt := range opts {
		opt(o)
	}

	return func(yield func(Record, error) bool) {
		reader := csv.NewReader(r)
		reader.Comma = o.comma
		reader.LazyQuotes = true
		reader.ReuseRecord = true
		reader.FieldsPerRecord = -1

		headers := o.headers
		if headers == nil {
			line, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, errors.WithPrevious(err, `cannot read csv headers`))
				return
			}
			headers = append([]string(nil), line...)
		}

		for {
			line, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, errors.WithPrevious(err, `cannot read csv line`))
				return
			}

			rec := make(Record, len(headers))
			for i, h := range headers {
				if i < len(line) {
					rec[h] = line[i]
					continue
				}
				rec[h] = nil
			}

			if !yield(rec, nil) {
				return
			}
		}
	}
}

// CSVFile reads the csv file at path. Files ending in .lz4 are decompressed.
func CSVFile(path string, opts ...CSVOption) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		r, closer, err := openFile(path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer closer.Close()

		for rec, err := range CSV(r, opts...) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

func openFile(path string) (io.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.WithPrevious(err, fmt.Sprintf(`cannot open [%s]`, path))
	}

	if strings.HasSuffix(path, `.lz4`) {
		return lz4.NewReader(f), f, nil
	}

	return f, f, nil
}
