// apply.go - Anwendung eines Maskenstapels auf eine Eingabe

package masker

import (
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/umbra-ml/umbra/dtype"
)

// number umfasst die unterstuetzten Zell-Dtypes.
type number interface {
	~float64 | ~float32 | ~int | ~int64 | ~int32 | ~uint8
}

// Apply materialisiert den maskierten Datenstapel: fuer jede Maske eine
// Kopie der Eingabe, in der maskierte Zellen durch den Fuellwert der
// Strategie ersetzt sind. Der Stapel hat die Form [K] + Eingabeform.
//
// Gleitkomma-Eingaben behalten ihren Dtype. Ganzzahlige Eingaben werden
// unter Mean und ChannelMean nach Float64 promoviert, unter Zero bleibt
// der Dtype erhalten. Eingabe und Maskenstapel bleiben unveraendert.
func Apply(input *tensor.Dense, masks *tensor.Dense, policy Policy) (*tensor.Dense, error) {
	if input == nil || masks == nil {
		return nil, &MaskError{Op: "apply", Err: fmt.Errorf("%w: Eingabe oder Maskenstapel ist nil", ErrInvalidArgument)}
	}
	if policy == nil {
		return nil, &MaskError{Op: "apply", Err: fmt.Errorf("%w: keine Strategie", ErrUnknownMaskType)}
	}
	inShape := []int(input.Shape())
	if err := checkShapeArg(inShape); err != nil {
		return nil, &MaskError{Op: "apply", Err: err}
	}
	if masks.Dtype() != tensor.Bool {
		return nil, &MaskError{Op: "apply", Err: fmt.Errorf("%w: Maskenstapel hat Dtype %v, erwartet bool", ErrInvalidArgument, masks.Dtype())}
	}
	mShape := []int(masks.Shape())
	if !shapeTailEq(mShape, inShape) {
		return nil, &MaskError{Op: "apply", Err: fmt.Errorf("%w: Maskenform %v passt nicht zu Eingabeform %v", ErrShapeMismatch, mShape, inShape)}
	}

	k := mShape[0]
	channels := 0
	if len(inShape) >= 2 {
		channels = inShape[len(inShape)-1]
	}

	// Fuellwerte aus der unveraenderten Eingabe berechnen.
	cells, err := dtype.AsFloat64s(input)
	if err != nil {
		return nil, &MaskError{Op: "apply", Err: fmt.Errorf("%w: %v", ErrInvalidArgument, err)}
	}
	f, err := policy.fillValues(cells, channels)
	if err != nil {
		return nil, &MaskError{Op: "apply", Err: err}
	}
	fillValue := func(j int) float64 { return f.At(j, channels) }

	// Data() panikt auf Tensoren der Groesse 0, der leere Stapel kommt
	// ohne Maskenbits aus.
	var keep []bool
	if k > 0 {
		bits, ok := asSlice(masks.Data()).([]bool)
		if !ok {
			return nil, &MaskError{Op: "apply", Err: fmt.Errorf("%w: Maskenstapel traegt kein boolesches Backing", ErrInvalidArgument)}
		}
		keep = bits
	}

	var backing any
	switch in := asSlice(input.Data()).(type) {
	case []float64:
		backing = buildBatch(in, keep, k, fillValue)
	case []float32:
		backing = buildBatch(in, keep, k, func(j int) float32 { return float32(fillValue(j)) })
	case []int:
		if keepsIntegerDtype(policy) {
			backing = buildBatch(in, keep, k, func(j int) int { return int(fillValue(j)) })
		} else {
			backing = buildBatch(cells, keep, k, fillValue)
		}
	case []int64:
		if keepsIntegerDtype(policy) {
			backing = buildBatch(in, keep, k, func(j int) int64 { return int64(fillValue(j)) })
		} else {
			backing = buildBatch(cells, keep, k, fillValue)
		}
	case []int32:
		if keepsIntegerDtype(policy) {
			backing = buildBatch(in, keep, k, func(j int) int32 { return int32(fillValue(j)) })
		} else {
			backing = buildBatch(cells, keep, k, fillValue)
		}
	case []uint8:
		if keepsIntegerDtype(policy) {
			backing = buildBatch(in, keep, k, func(j int) uint8 { return uint8(fillValue(j)) })
		} else {
			backing = buildBatch(cells, keep, k, fillValue)
		}
	default:
		return nil, &MaskError{Op: "apply", Err: fmt.Errorf("%w: Dtype %v wird nicht unterstuetzt", ErrInvalidArgument, input.Dtype())}
	}

	outShape := append([]int{k}, inShape...)
	return tensor.New(tensor.WithShape(outShape...), tensor.WithBacking(backing)), nil
}

// buildBatch fuellt den Ausgabestapel: erhaltene Zellen kopieren die
// Eingabe, maskierte Zellen erhalten den Fuellwert.
func buildBatch[T number](in []T, keep []bool, k int, fillAt func(j int) T) []T {
	n := len(in)
	out := make([]T, k*n)
	for m := 0; m < k; m++ {
		base := m * n
		for j, v := range in {
			if keep[base+j] {
				out[base+j] = v
			} else {
				out[base+j] = fillAt(j)
			}
		}
	}
	return out
}

// asSlice normalisiert Data()-Ergebnisse: Ein-Element-Tensoren liefern
// den nackten Wert statt einer Slice.
func asSlice(data any) any {
	switch v := data.(type) {
	case float64:
		return []float64{v}
	case float32:
		return []float32{v}
	case int:
		return []int{v}
	case int64:
		return []int64{v}
	case int32:
		return []int32{v}
	case uint8:
		return []uint8{v}
	case bool:
		return []bool{v}
	default:
		return data
	}
}
