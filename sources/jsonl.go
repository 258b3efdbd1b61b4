package sources

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/pickme-go/errors"
)

// JSONLines decodes a stream of JSON objects, one element per object.
// Numbers in records are json.Number.
func JSONLines[T any](r io.Reader) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		dec := json.NewDecoder(r)
		dec.UseNumber()

		for n := 0; ; n++ {
			var t T
			err := dec.Decode(&t)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(t, errors.WithPrevious(err, fmt.Sprintf(`cannot decode json element #%d`, n)))
				return
			}

			if !yield(t, nil) {
				return
			}
		}
	}
}

// JSONLinesFile is JSONLines over the file at path (.lz4 aware).
func JSONLinesFile[T any](path string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		r, closer, err := openFile(path)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		defer closer.Close()

		for t, err := range JSONLines[T](r) {
			if !yield(t, err) {
				return
			}
		}
	}
}
