// generate.go - Erzeugung boolescher Occlusion-Masken pro Zelle

package masker

import (
	"github.com/pdevine/tensor"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Generate erzeugt numberOfMasks boolesche Masken ueber der Eingabeform.
// Der Ergebnis-Tensor hat die Form [numberOfMasks] + shape und Dtype bool;
// true bedeutet "Zelle bleibt erhalten". Jede Maske maskiert exakt
// round((1-pKeep)*n) gleichverteilt ohne Zuruecklegen gezogene Zellen,
// geklemmt auf mindestens eine maskierte und eine erhaltene Zelle.
//
// numberOfMasks == 0 liefert einen leeren Stapel der Form [0] + shape.
func Generate(shape []int, numberOfMasks int, pKeep float64, opts ...Option) (*tensor.Dense, error) {
	if err := checkShapeArg(shape); err != nil {
		return nil, &MaskError{Op: "generate", Err: err}
	}
	if err := checkCommonArgs(numberOfMasks, pKeep); err != nil {
		return nil, &MaskError{Op: "generate", Err: err}
	}

	n := cellCount(shape)
	batchShape := append([]int{numberOfMasks}, shape...)
	bits := make([]bool, numberOfMasks*n)
	if numberOfMasks == 0 {
		return tensor.New(tensor.WithShape(batchShape...), tensor.WithBacking(bits)), nil
	}

	for i := range bits {
		bits[i] = true
	}

	cfg := newGenConfig(opts...)
	masked := maskedCellCount(pKeep, n)
	if masked > 0 {
		picks := make([]int, masked)
		for m := 0; m < numberOfMasks; m++ {
			sampleuv.WithoutReplacement(picks, n, cfg.src)
			base := m * n
			for _, p := range picks {
				bits[base+p] = false
			}
		}
	}

	return tensor.New(tensor.WithShape(batchShape...), tensor.WithBacking(bits)), nil
}
