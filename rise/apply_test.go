// apply_test.go - Tests fuer die Bildmasken-Anwendung

package rise

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pdevine/tensor"

	"github.com/umbra-ml/umbra/masker"
)

// testImage baut das [2, 2, 2]-Bild mit Pixelwerten (1,2), (3,4), (5,6),
// (7,8); der globale Mittelwert ist 4.5.
func testImage() *tensor.Dense {
	return tensor.New(tensor.WithShape(2, 2, 2), tensor.WithBacking([]float32{1, 2, 3, 4, 5, 6, 7, 8}))
}

// testWeights baut den Maskenstapel [1, 2, 2] mit Gewichten 1, 0.5, 0, 1.
func testWeights() *tensor.Dense {
	return tensor.New(tensor.WithShape(1, 2, 2), tensor.WithBacking([]float32{1, 0.5, 0, 1}))
}

func TestApplyImageMasksMean(t *testing.T) {
	out, err := ApplyImageMasks(testImage(), testWeights(), masker.Mean)
	if err != nil {
		t.Fatalf("ApplyImageMasks: %v", err)
	}
	if got := []int(out.Shape()); !reflect.DeepEqual(got, []int{1, 2, 2, 2}) {
		t.Fatalf("Form = %v, erwartet [1 2 2 2]", got)
	}
	if out.Dtype() != tensor.Float32 {
		t.Fatalf("Dtype = %v, erwartet %v", out.Dtype(), tensor.Float32)
	}

	// Gewicht 1: Original. Gewicht 0.5: halber Weg zum Mittel 4.5.
	// Gewicht 0: Mittelwert. Beide Kanaele teilen das Pixelgewicht.
	want := []float32{1, 2, 3.75, 4.25, 4.5, 4.5, 7, 8}
	if got := out.Data().([]float32); !reflect.DeepEqual(got, want) {
		t.Errorf("Stapel = %v, erwartet %v", got, want)
	}
}

func TestApplyImageMasksZero(t *testing.T) {
	out, err := ApplyImageMasks(testImage(), testWeights(), masker.Zero)
	if err != nil {
		t.Fatalf("ApplyImageMasks: %v", err)
	}
	want := []float32{1, 2, 1.5, 2, 0, 0, 7, 8}
	if got := out.Data().([]float32); !reflect.DeepEqual(got, want) {
		t.Errorf("Stapel = %v, erwartet %v", got, want)
	}
}

func TestApplyImageMasksPromotesInt(t *testing.T) {
	// Blendgewichte erzeugen Zwischenwerte, ganzzahlige Bilder werden
	// deshalb immer nach Float64 promoviert.
	img := tensor.New(tensor.WithShape(2, 2, 1), tensor.WithBacking([]uint8{10, 20, 30, 40}))
	weights := tensor.New(tensor.WithShape(1, 2, 2), tensor.WithBacking([]float32{1, 0.5, 0, 1}))

	out, err := ApplyImageMasks(img, weights, masker.Zero)
	if err != nil {
		t.Fatalf("ApplyImageMasks: %v", err)
	}
	if out.Dtype() != tensor.Float64 {
		t.Fatalf("Dtype = %v, erwartet %v", out.Dtype(), tensor.Float64)
	}
	want := []float64{10, 10, 0, 40}
	if got := out.Data().([]float64); !reflect.DeepEqual(got, want) {
		t.Errorf("Stapel = %v, erwartet %v", got, want)
	}
}

func TestApplyImageMasksPure(t *testing.T) {
	img := testImage()
	weights := testWeights()
	before := append([]float32(nil), img.Data().([]float32)...)
	weightsBefore := append([]float32(nil), weights.Data().([]float32)...)

	if _, err := ApplyImageMasks(img, weights, masker.Mean); err != nil {
		t.Fatalf("ApplyImageMasks: %v", err)
	}
	if !reflect.DeepEqual(img.Data().([]float32), before) {
		t.Error("ApplyImageMasks hat das Bild veraendert")
	}
	if !reflect.DeepEqual(weights.Data().([]float32), weightsBefore) {
		t.Error("ApplyImageMasks hat den Maskenstapel veraendert")
	}
}

func TestApplyImageMasksEmptyBatch(t *testing.T) {
	weights := tensor.New(tensor.WithShape(0, 2, 2), tensor.WithBacking([]float32{}))
	out, err := ApplyImageMasks(testImage(), weights, masker.Mean)
	if err != nil {
		t.Fatalf("ApplyImageMasks: %v", err)
	}
	if got := []int(out.Shape()); !reflect.DeepEqual(got, []int{0, 2, 2, 2}) {
		t.Errorf("Form = %v, erwartet [0 2 2 2]", got)
	}
}

func TestApplyImageMasksErrors(t *testing.T) {
	rank2 := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(make([]float32, 4)))
	boolMasks := tensor.New(tensor.WithShape(1, 2, 2), tensor.WithBacking(make([]bool, 4)))
	wrongSize := tensor.New(tensor.WithShape(1, 3, 3), tensor.WithBacking(make([]float32, 9)))

	tests := []struct {
		name   string
		input  *tensor.Dense
		masks  *tensor.Dense
		policy masker.Policy
		want   error
	}{
		{"nil bild", nil, testWeights(), masker.Mean, masker.ErrInvalidArgument},
		{"nil masken", testImage(), nil, masker.Mean, masker.ErrInvalidArgument},
		{"nil strategie", testImage(), testWeights(), nil, masker.ErrUnknownMaskType},
		{"bild rang 2", rank2, testWeights(), masker.Mean, masker.ErrInvalidArgument},
		{"masken nicht float32", testImage(), boolMasks, masker.Mean, masker.ErrInvalidArgument},
		{"falsche maskengroesse", testImage(), wrongSize, masker.Mean, masker.ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyImageMasks(tt.input, tt.masks, tt.policy)
			if !errors.Is(err, tt.want) {
				t.Errorf("Fehler = %v, erwartet %v", err, tt.want)
			}
		})
	}
}
