// layout.go - Achsenumordnung zwischen HWC- und CHW-Layout

package rise

import (
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/umbra-ml/umbra/masker"
)

// number umfasst die unterstuetzten Zell-Dtypes.
type number interface {
	~float64 | ~float32 | ~int | ~int64 | ~int32 | ~uint8
}

// HWCToCHW ordnet einen [H, W, C]-Tensor nach [C, H, W] um. Kanal-letzt
// ist das Layout der Maskierungsoperationen, Kanal-erst verlangen viele
// Bildmodelle.
func HWCToCHW(t *tensor.Dense) (*tensor.Dense, error) {
	if t == nil {
		return nil, fmt.Errorf("hwc_to_chw: %w: Eingabe ist nil", masker.ErrInvalidArgument)
	}
	shape := []int(t.Shape())
	if len(shape) != 3 {
		return nil, fmt.Errorf("hwc_to_chw: %w: Rang %d, erwartet [H, W, C]", masker.ErrInvalidArgument, len(shape))
	}
	h, w, c := shape[0], shape[1], shape[2]

	var backing any
	switch v := asSlice(t.Data()).(type) {
	case []float64:
		backing = hwcToCHW(v, h, w, c)
	case []float32:
		backing = hwcToCHW(v, h, w, c)
	case []int:
		backing = hwcToCHW(v, h, w, c)
	case []uint8:
		backing = hwcToCHW(v, h, w, c)
	default:
		return nil, fmt.Errorf("hwc_to_chw: %w: Dtype %v wird nicht unterstuetzt", masker.ErrInvalidArgument, t.Dtype())
	}
	return tensor.New(tensor.WithShape(c, h, w), tensor.WithBacking(backing)), nil
}

// CHWToHWC ordnet einen [C, H, W]-Tensor nach [H, W, C] um.
func CHWToHWC(t *tensor.Dense) (*tensor.Dense, error) {
	if t == nil {
		return nil, fmt.Errorf("chw_to_hwc: %w: Eingabe ist nil", masker.ErrInvalidArgument)
	}
	shape := []int(t.Shape())
	if len(shape) != 3 {
		return nil, fmt.Errorf("chw_to_hwc: %w: Rang %d, erwartet [C, H, W]", masker.ErrInvalidArgument, len(shape))
	}
	c, h, w := shape[0], shape[1], shape[2]

	var backing any
	switch v := asSlice(t.Data()).(type) {
	case []float64:
		backing = chwToHWC(v, h, w, c)
	case []float32:
		backing = chwToHWC(v, h, w, c)
	case []int:
		backing = chwToHWC(v, h, w, c)
	case []uint8:
		backing = chwToHWC(v, h, w, c)
	default:
		return nil, fmt.Errorf("chw_to_hwc: %w: Dtype %v wird nicht unterstuetzt", masker.ErrInvalidArgument, t.Dtype())
	}
	return tensor.New(tensor.WithShape(h, w, c), tensor.WithBacking(backing)), nil
}

// hwcToCHW kopiert [H, W, C]-Zellen in ein [C, H, W]-Backing.
func hwcToCHW[T number](src []T, h, w, c int) []T {
	dst := make([]T, len(src))
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				dst[ch*h*w+y*w+x] = src[i]
				i++
			}
		}
	}
	return dst
}

// chwToHWC kopiert [C, H, W]-Zellen in ein [H, W, C]-Backing.
func chwToHWC[T number](src []T, h, w, c int) []T {
	dst := make([]T, len(src))
	i := 0
	for ch := 0; ch < c; ch++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst[(y*w+x)*c+ch] = src[i]
				i++
			}
		}
	}
	return dst
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

// cellCount liefert die Zellenanzahl einer Form.
func cellCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
