// MODUL: dtype
// ZWECK: Dtype-Konvertierung zwischen Half-Precision-Puffern und Tensoren
// INPUT: float16/bfloat16 Rohdaten, *tensor.Dense beliebigen numerischen Typs
// OUTPUT: float32-Tensoren, float64-Kopien
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: x448/float16, d4l3k/go-bfloat16, pdevine/tensor (extern)
// HINWEISE: Reine In-Memory-Konvertierung, kein Datei-I/O

package dtype

import (
	"errors"
	"fmt"

	"github.com/d4l3k/go-bfloat16"
	"github.com/pdevine/tensor"
	"github.com/x448/float16"
)

// Fehler der dtype-Konvertierung
var (
	ErrInvalidShape   = errors.New("dtype: ungueltige Form")
	ErrLengthMismatch = errors.New("dtype: Pufferlaenge passt nicht zur Form")
	ErrUnsupported    = errors.New("dtype: nicht unterstuetzter Datentyp")
)

// DecodeFloat16 konvertiert IEEE-754-Half-Bits zu float32-Werten.
func DecodeFloat16(bits []uint16) []float32 {
	out := make([]float32, len(bits))
	for i, b := range bits {
		out[i] = float16.Frombits(b).Float32()
	}
	return out
}

// EncodeFloat16 konvertiert float32-Werte zu IEEE-754-Half-Bits.
// Werte ausserhalb des Half-Bereichs werden auf +/-Inf gesaettigt.
func EncodeFloat16(xs []float32) []uint16 {
	out := make([]uint16, len(xs))
	for i, x := range xs {
		out[i] = float16.Fromfloat32(x).Bits()
	}
	return out
}

// DecodeBFloat16 konvertiert rohe bfloat16-Bytes (little-endian) zu float32.
func DecodeBFloat16(data []byte) []float32 {
	return bfloat16.DecodeFloat32(data)
}

// EncodeBFloat16 konvertiert float32-Werte zu rohen bfloat16-Bytes.
func EncodeBFloat16(xs []float32) []byte {
	return bfloat16.EncodeFloat32(xs)
}

// FromFloat16Bits baut einen Float32-Tensor aus Half-Precision-Bits.
// Die Anzahl der Bits muss dem Produkt der Form entsprechen.
func FromFloat16Bits(bits []uint16, shape ...int) (*tensor.Dense, error) {
	if err := checkShape(len(bits), shape); err != nil {
		return nil, err
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(DecodeFloat16(bits))), nil
}

// FromBFloat16 baut einen Float32-Tensor aus rohen bfloat16-Bytes.
func FromBFloat16(data []byte, shape ...int) (*tensor.Dense, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: ungerade Byte-Anzahl %d", ErrLengthMismatch, len(data))
	}
	if err := checkShape(len(data)/2, shape); err != nil {
		return nil, err
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(DecodeBFloat16(data))), nil
}

// checkShape prueft Rang, Dimensionen und Gesamtgroesse gegen n Werte.
func checkShape(n int, shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("%w: Rang 0", ErrInvalidShape)
	}
	size := 1
	for _, d := range shape {
		if d < 1 {
			return fmt.Errorf("%w: Dimension %d", ErrInvalidShape, d)
		}
		size *= d
	}
	if size != n {
		return fmt.Errorf("%w: %d Werte fuer Form %v", ErrLengthMismatch, n, shape)
	}
	return nil
}

// AsFloat64s liefert eine float64-Kopie der Tensor-Daten in Zeilen-Reihenfolge.
// Unterstuetzt Float64, Float32, Int, Int64, Int32 und Uint8.
func AsFloat64s(t *tensor.Dense) ([]float64, error) {
	switch data := t.Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out, nil
	case []float32:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case []int:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	// Data() liefert bei Ein-Element-Tensoren den nackten Wert
	case float64:
		return []float64{data}, nil
	case float32:
		return []float64{float64(data)}, nil
	case int:
		return []float64{float64(data)}, nil
	case int64:
		return []float64{float64(data)}, nil
	case int32:
		return []float64{float64(data)}, nil
	case uint8:
		return []float64{float64(data)}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, t.Dtype())
	}
}
