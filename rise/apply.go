// apply.go - Anwendung von Float-Masken auf Bilder

package rise

import (
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/umbra-ml/umbra/dtype"
	"github.com/umbra-ml/umbra/masker"
)

// ApplyImageMasks blendet ein [H, W, C]-Bild gegen den Fuellwert der
// Strategie: out = m*x + (1-m)*fill. Der Maskenwert eines Pixels gilt
// fuer alle seine Kanaele; der Stapel hat die Form [K, H, W, C].
//
// Gleitkomma-Bilder behalten ihren Dtype, ganzzahlige werden nach
// Float64 promoviert, weil Zwischenwerte der Blendung ganzzahlig nicht
// darstellbar sind. Eingabe und Maskenstapel bleiben unveraendert.
func ApplyImageMasks(input *tensor.Dense, masks *tensor.Dense, policy masker.Policy) (*tensor.Dense, error) {
	if input == nil || masks == nil {
		return nil, fmt.Errorf("apply_image: %w: Eingabe oder Maskenstapel ist nil", masker.ErrInvalidArgument)
	}
	if policy == nil {
		return nil, fmt.Errorf("apply_image: %w: keine Strategie", masker.ErrUnknownMaskType)
	}
	inShape := []int(input.Shape())
	if len(inShape) != 3 {
		return nil, fmt.Errorf("apply_image: %w: Rang %d, erwartet [H, W, C]", masker.ErrInvalidArgument, len(inShape))
	}
	if masks.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("apply_image: %w: Maskenstapel hat Dtype %v, erwartet float32", masker.ErrInvalidArgument, masks.Dtype())
	}
	h, w, c := inShape[0], inShape[1], inShape[2]
	mShape := []int(masks.Shape())
	if len(mShape) != 3 || mShape[1] != h || mShape[2] != w {
		return nil, fmt.Errorf("apply_image: %w: Maskenform %v passt nicht zu Bildform %v", masker.ErrShapeMismatch, mShape, inShape)
	}
	k := mShape[0]

	f, err := masker.FillValues(policy, input)
	if err != nil {
		return nil, fmt.Errorf("apply_image: %w", err)
	}
	// Data() panikt auf Tensoren der Groesse 0, der leere Stapel kommt
	// ohne Gewichte aus.
	var weights []float32
	if k > 0 {
		ws, ok := asSlice(masks.Data()).([]float32)
		if !ok {
			return nil, fmt.Errorf("apply_image: %w: Maskenstapel traegt kein float32-Backing", masker.ErrInvalidArgument)
		}
		weights = ws
	}

	var backing any
	switch in := asSlice(input.Data()).(type) {
	case []float64:
		backing = blend64(in, weights, f, k, c)
	case []float32:
		backing = blend32(in, weights, f, k, c)
	default:
		cells, err := dtype.AsFloat64s(input)
		if err != nil {
			return nil, fmt.Errorf("apply_image: %w: %v", masker.ErrInvalidArgument, err)
		}
		backing = blend64(cells, weights, f, k, c)
	}

	return tensor.New(tensor.WithShape(k, h, w, c), tensor.WithBacking(backing)), nil
}

// blend64 mischt Bild und Fuellwert nach Maskengewicht.
func blend64(in []float64, weights []float32, f masker.Fill, k, c int) []float64 {
	n := len(in)
	out := make([]float64, k*n)
	for m := 0; m < k; m++ {
		base := m * n
		mbase := m * (n / c)
		for j, v := range in {
			mv := float64(weights[mbase+j/c])
			out[base+j] = mv*v + (1-mv)*f.At(j, c)
		}
	}
	return out
}

// blend32 mischt in float32, fuer Bilder im float32-Layout.
func blend32(in []float32, weights []float32, f masker.Fill, k, c int) []float32 {
	n := len(in)
	out := make([]float32, k*n)
	for m := 0; m < k; m++ {
		base := m * n
		mbase := m * (n / c)
		for j, v := range in {
			mv := weights[mbase+j/c]
			out[base+j] = mv*v + (1-mv)*float32(f.At(j, c))
		}
	}
	return out
}
