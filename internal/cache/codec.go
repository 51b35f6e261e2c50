package cache

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/hyp3rd/dbplane/internal/value"
	"github.com/klauspost/compress/zstd"
)

// register every concrete type value.Value.Native() can produce, since
// gob requires interface-boxed values to be registered by concrete type.
func init() {
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(string(""))
	gob.Register([]byte(nil))
	gob.Register(time.Time{})
	gob.Register(bool(false))
}

// gobRow is the wire shape of a value.Row: gob cannot encode the
// unexported internals of value.Value directly in a way that round-trips
// cleanly alongside time.Time, so each column is flattened to its
// native value for encoding and restored through value.FromNative.
type gobRow struct {
	Names  []string
	Values []any
}

func encodeRows(enc *zstd.Encoder, rows []value.Row) ([]byte, error) {
	wire := make([]gobRow, len(rows))

	for i, row := range rows {
		wire[i] = gobRow{Names: row.Names()}
		for _, col := range row {
			wire[i].Values = append(wire[i].Values, col.Value.Native())
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, err
	}

	return enc.EncodeAll(buf.Bytes(), nil), nil
}

func decodeRows(dec *zstd.Decoder, payload []byte) ([]value.Row, error) {
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, err
	}

	var wire []gobRow
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&wire); err != nil {
		return nil, err
	}

	rows := make([]value.Row, len(wire))

	for i, w := range wire {
		row := make(value.Row, len(w.Names))
		for j, name := range w.Names {
			row[j] = value.Column{Name: name, Value: value.FromNative(w.Values[j])}
		}

		rows[i] = row
	}

	return rows, nil
}
