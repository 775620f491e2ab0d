package kv

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/touba73/fdb-record-layer/plan"
)

// Tuple encoding: order-preserving byte encoding of datum sequences, so
// that byte comparison of encoded tuples matches datum-wise comparison.
// Layout per datum: a kind tag, then a fixed or terminated payload. Tags
// are ordered null < false < true < int < string, matching Datum.Compare.

const (
	tagNull   = 0x01
	tagFalse  = 0x02
	tagTrue   = 0x03
	tagInt    = 0x04
	tagString = 0x05
)

// EncodeTuple appends the order-preserving encoding of datums to buf.
func EncodeTuple(buf []byte, datums []plan.Datum) []byte {
	for _, d := range datums {
		buf = encodeDatum(buf, d)
	}
	return buf
}

func encodeDatum(buf []byte, d plan.Datum) []byte {
	switch {
	case d.Bool != nil:
		if *d.Bool {
			return append(buf, tagTrue)
		}
		return append(buf, tagFalse)
	case d.Int != nil:
		buf = append(buf, tagInt)
		// Flip the sign bit so negative ints order before positive.
		var enc [8]byte
		binary.BigEndian.PutUint64(enc[:], uint64(*d.Int)^(1<<63))
		return append(buf, enc[:]...)
	case d.Str != nil:
		buf = append(buf, tagString)
		for i := 0; i < len(*d.Str); i++ {
			c := (*d.Str)[i]
			buf = append(buf, c)
			if c == 0x00 {
				// Escape embedded NUL so the terminator stays unambiguous.
				buf = append(buf, 0xff)
			}
		}
		return append(buf, 0x00, 0x01)
	}
	return append(buf, tagNull)
}

// DecodeTuple decodes all datums from b.
func DecodeTuple(b []byte) ([]plan.Datum, error) {
	var out []plan.Datum
	for len(b) > 0 {
		d, rest, err := decodeDatum(b)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		b = rest
	}
	return out, nil
}

func decodeDatum(b []byte) (plan.Datum, []byte, error) {
	switch b[0] {
	case tagNull:
		return plan.Datum{}, b[1:], nil
	case tagFalse:
		return plan.BoolDatum(false), b[1:], nil
	case tagTrue:
		return plan.BoolDatum(true), b[1:], nil
	case tagInt:
		if len(b) < 9 {
			return plan.Datum{}, nil, errors.Newf("truncated int datum")
		}
		v := int64(binary.BigEndian.Uint64(b[1:9]) ^ (1 << 63))
		return plan.IntDatum(v), b[9:], nil
	case tagString:
		var s []byte
		i := 1
		for {
			if i >= len(b) {
				return plan.Datum{}, nil, errors.Newf("unterminated string datum")
			}
			c := b[i]
			if c == 0x00 {
				if i+1 < len(b) && b[i+1] == 0xff {
					s = append(s, 0x00)
					i += 2
					continue
				}
				if i+1 < len(b) && b[i+1] == 0x01 {
					return plan.StrDatum(string(s)), b[i+2:], nil
				}
				return plan.Datum{}, nil, errors.Newf("bad string terminator")
			}
			s = append(s, c)
			i++
		}
	}
	return plan.Datum{}, nil, errors.Newf("unknown tuple tag 0x%02x", b[0])
}
