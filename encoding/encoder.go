/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pickme-go/errors"
)

type Builder func() Encoder

type Encoder interface {
	Encode(data interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}

type StringEncoder struct{}

func (StringEncoder) Encode(data interface{}) ([]byte, error) {
	switch v := data.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	}

	return nil, errors.New(fmt.Sprintf(`invalid type [%T] expected string`, data))
}

func (StringEncoder) Decode(data []byte) (interface{}, error) {
	return string(data), nil
}

// JSONEncoder decodes objects into map[string]interface{}. Numbers are kept
// as json.Number so integer keys survive a round trip.
type JSONEncoder struct{}

func (JSONEncoder) Encode(data interface{}) ([]byte, error) {
	byt, err := json.Marshal(data)
	if err != nil {
		return nil, errors.WithPrevious(err, `json encode failed`)
	}

	return byt, nil
}

func (JSONEncoder) Decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.WithPrevious(err, `json decode failed`)
	}

	return v, nil
}

func ByName(name string) (Builder, error) {
	switch name {
	case `string`:
		return func() Encoder { return StringEncoder{} }, nil
	case `json`:
		return func() Encoder { return JSONEncoder{} }, nil
	}

	return nil, errors.New(fmt.Sprintf(`unknown encoder [%s]`, name))
}
