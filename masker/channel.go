// channel.go - Kanalmasken: Keep-Entscheidung je Kanal statt je Zelle

package masker

import (
	"fmt"

	"github.com/pdevine/tensor"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// GenerateChannel erzeugt Masken, die ganze Kanaele gemeinsam maskieren.
// Die letzte Achse der Eingabe ist die Kanalachse: pro Maske faellt eine
// Keep-Entscheidung je Kanalindex und gilt fuer alle Positionen entlang
// der uebrigen Achsen. Innerhalb einer Maske und eines Kanals treten
// daher nie gemischte Werte auf.
//
// Die Quote zaehlt Kanaele, nicht Zellen: maskiert werden exakt
// round((1-pKeep)*C) Kanaele, mit derselben Klemmung wie bei Generate.
func GenerateChannel(input *tensor.Dense, numberOfMasks int, pKeep float64, opts ...Option) (*tensor.Dense, error) {
	if input == nil {
		return nil, &MaskError{Op: "generate_channel", Err: fmt.Errorf("%w: Eingabe ist nil", ErrInvalidArgument)}
	}
	shape := []int(input.Shape())
	if err := checkShapeArg(shape); err != nil {
		return nil, &MaskError{Op: "generate_channel", Err: err}
	}
	if len(shape) < 2 {
		return nil, &MaskError{Op: "generate_channel", Err: fmt.Errorf("%w: Rang %d, Kanalmasken brauchen Rang >= 2", ErrInvalidArgument, len(shape))}
	}
	if err := checkCommonArgs(numberOfMasks, pKeep); err != nil {
		return nil, &MaskError{Op: "generate_channel", Err: err}
	}

	channels := shape[len(shape)-1]
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
	masked := maskedCellCount(pKeep, channels)
	picks := make([]int, masked)
	keep := make([]bool, channels)
	for m := 0; m < numberOfMasks; m++ {
		for c := range keep {
			keep[c] = true
		}
		if masked > 0 {
			sampleuv.WithoutReplacement(picks, channels, cfg.src)
			for _, p := range picks {
				keep[p] = false
			}
		}
		// Kanalindex = Flachindex modulo Kanalanzahl, die letzte Achse
		// laeuft im row-major Layout am schnellsten.
		base := m * n
		for j := 0; j < n; j++ {
			if !keep[j%channels] {
				bits[base+j] = false
			}
		}
	}

	return tensor.New(tensor.WithShape(batchShape...), tensor.WithBacking(bits)), nil
}
