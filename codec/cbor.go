package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes with RFC 8949 core deterministic rules, so regenerating an
// identical analysis yields identical bytes. Fields follow their json tags.
// Use NewCBOR; the zero value has no modes.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// Decode bounds. An aggregate carries one unit per page plus short lists,
// so anything far past these is a corrupt or hostile payload.
const (
	cborMaxArray  = 1 << 16
	cborMaxMap    = 1 << 12
	cborMaxNested = 16
)

func NewCBOR[V any]() (CBOR[V], error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{
		MaxArrayElements: cborMaxArray,
		MaxMapPairs:      cborMaxMap,
		MaxNestedLevels:  cborMaxNested,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
