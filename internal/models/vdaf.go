package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/divviup/divviup-console/internal/validation"
)

// VdafType discriminates the Vdaf union.
type VdafType string

const (
	VdafCount     VdafType = "count"
	VdafSum       VdafType = "sum"
	VdafHistogram VdafType = "histogram"
	VdafCountVec  VdafType = "count_vec"
	VdafSumVec    VdafType = "sum_vec"
)

var vdafTypes = []VdafType{VdafCount, VdafSum, VdafHistogram, VdafCountVec, VdafSumVec}

const maxSumBits = 64

// Buckets holds histogram bucket boundaries, either numeric or categorical.
type Buckets struct {
	Numeric     []uint64
	Categorical []string
}

func (b Buckets) Len() int {
	if b.Categorical != nil {
		return len(b.Categorical)
	}
	return len(b.Numeric)
}

func (b Buckets) MarshalJSON() ([]byte, error) {
	if b.Categorical != nil {
		return json.Marshal(b.Categorical)
	}
	if b.Numeric == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b.Numeric)
}

func (b *Buckets) UnmarshalJSON(data []byte) error {
	var numeric []uint64
	if err := json.Unmarshal(data, &numeric); err == nil {
		*b = Buckets{Numeric: numeric}
		return nil
	}
	var categorical []string
	if err := json.Unmarshal(data, &categorical); err != nil {
		return fmt.Errorf("buckets must be an array of integers or strings: %w", err)
	}
	*b = Buckets{Categorical: categorical}
	return nil
}

// Vdaf describes the aggregation function of a task. Only the fields
// relevant to Type are encoded.
type Vdaf struct {
	Type        VdafType
	Bits        *uint8
	Buckets     *Buckets
	Length      *uint64
	ChunkLength *uint64
}

type vdafWire struct {
	Type        VdafType `json:"type"`
	Bits        *uint8   `json:"bits,omitempty"`
	Buckets     *Buckets `json:"buckets,omitempty"`
	Length      *uint64  `json:"length,omitempty"`
	ChunkLength *uint64  `json:"chunk_length,omitempty"`
}

func CountVdaf() Vdaf {
	return Vdaf{Type: VdafCount}
}

func SumVdaf(bits uint8) Vdaf {
	return Vdaf{Type: VdafSum, Bits: &bits}
}

func HistogramVdaf(buckets []uint64) Vdaf {
	return Vdaf{Type: VdafHistogram, Buckets: &Buckets{Numeric: buckets}}
}

func CategoricalHistogramVdaf(categories []string) Vdaf {
	return Vdaf{Type: VdafHistogram, Buckets: &Buckets{Categorical: categories}}
}

func CountVecVdaf(length uint64) Vdaf {
	return Vdaf{Type: VdafCountVec, Length: &length}
}

func SumVecVdaf(bits uint8, length uint64) Vdaf {
	return Vdaf{Type: VdafSumVec, Bits: &bits, Length: &length}
}

func (v Vdaf) MarshalJSON() ([]byte, error) {
	wire := vdafWire{Type: v.Type}
	switch v.Type {
	case VdafCount:
	case VdafSum:
		wire.Bits = v.Bits
	case VdafHistogram:
		wire.Buckets = v.Buckets
		wire.Length = v.Length
		wire.ChunkLength = v.ChunkLength
	case VdafCountVec:
		wire.Length = v.Length
		wire.ChunkLength = v.ChunkLength
	case VdafSumVec:
		wire.Bits = v.Bits
		wire.Length = v.Length
		wire.ChunkLength = v.ChunkLength
	default:
		return nil, fmt.Errorf("unrecognized vdaf type %q", v.Type)
	}
	return json.Marshal(wire)
}

func (v *Vdaf) UnmarshalJSON(data []byte) error {
	var wire vdafWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if !wire.Type.known() {
		return fmt.Errorf("unrecognized vdaf type %q", wire.Type)
	}
	*v = Vdaf(wire)
	return nil
}

func (t VdafType) known() bool {
	for _, known := range vdafTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Validate reports the violations of v keyed by vdaf field.
func (v Vdaf) Validate() validation.Node {
	errs := validation.Node{}
	switch v.Type {
	case VdafCount:
	case VdafSum:
		validateBits(errs, v.Bits)
	case VdafHistogram:
		switch {
		case v.Buckets != nil:
			validateBuckets(errs, *v.Buckets)
		case v.Length != nil:
			validateLength(errs, v.Length)
		default:
			errs.Add("buckets", validation.NewViolation("required"))
		}
		validateChunkLength(errs, v.ChunkLength)
	case VdafCountVec:
		validateLength(errs, v.Length)
		validateChunkLength(errs, v.ChunkLength)
	case VdafSumVec:
		validateBits(errs, v.Bits)
		validateLength(errs, v.Length)
		validateChunkLength(errs, v.ChunkLength)
	default:
		values := make([]any, len(vdafTypes))
		for i, t := range vdafTypes {
			values[i] = string(t)
		}
		errs.Add("type", validation.NewViolation("enum", "values", values))
	}
	return errs
}

func validateBits(errs validation.Node, bits *uint8) {
	switch {
	case bits == nil:
		errs.Add("bits", validation.NewViolation("required"))
	case *bits < 1 || *bits > maxSumBits:
		errs.Add("bits", validation.NewViolation("range", "min", 1, "max", maxSumBits))
	}
}

func validateLength(errs validation.Node, length *uint64) {
	switch {
	case length == nil:
		errs.Add("length", validation.NewViolation("required"))
	case *length < 1:
		errs.Add("length", validation.NewViolation("range", "min", 1))
	}
}

func validateChunkLength(errs validation.Node, chunk *uint64) {
	if chunk != nil && *chunk < 1 {
		errs.Add("chunk_length", validation.NewViolation("range", "min", 1))
	}
}

func validateBuckets(errs validation.Node, b Buckets) {
	if b.Len() == 0 {
		errs.Add("buckets", validation.NewViolation("required"))
		return
	}

	if b.Categorical != nil {
		seen := make(map[string]struct{}, len(b.Categorical))
		for _, c := range b.Categorical {
			if _, dup := seen[c]; dup {
				errs.Add("buckets", validation.NewViolation("unique"))
				return
			}
			seen[c] = struct{}{}
		}
		return
	}

	if !sort.SliceIsSorted(b.Numeric, func(i, j int) bool { return b.Numeric[i] < b.Numeric[j] }) {
		errs.Add("buckets", validation.NewViolation("sorted"))
	}
	seen := make(map[uint64]struct{}, len(b.Numeric))
	for _, n := range b.Numeric {
		if _, dup := seen[n]; dup {
			errs.Add("buckets", validation.NewViolation("unique"))
			return
		}
		seen[n] = struct{}{}
	}
}
