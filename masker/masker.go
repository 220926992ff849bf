// MODUL: masker
// ZWECK: Erzeugung und Anwendung boolescher Occlusion-Masken
// INPUT: Eingabeform bzw. Eingabe-Tensor, Maskenanzahl, Keep-Anteil
// OUTPUT: Boolesche Maskenstapel, maskierte Datenstapel
// NEBENEFFEKTE: keine (reine Funktionen, Warnungen via slog)
// ABHAENGIGKEITEN: pdevine/tensor, gonum (extern), dtype, envconfig (intern)
// HINWEISE: true = Zelle bleibt erhalten, false = Zelle wird ersetzt

// Package masker erzeugt zufaellige boolesche Masken ueber strukturierten
// Eingaben (Zeitreihen, Bilder, tabellarische Daten) und wendet sie mit
// einer Fuellstrategie an. Grundbaustein fuer perturbationsbasierte
// Erklaerbarkeitsverfahren: der Aufrufer erzeugt N Masken, maskiert die
// Eingabe N-fach und beobachtet die Modellantworten auf den Varianten.
//
// Alle Operationen sind synchron, zustandslos und rein; Aufrufer duerfen
// getrennte Aufrufe beliebig parallelisieren.
package masker

import (
	"fmt"
	"math"
)

// checkShapeArg prueft Rang und Dimensionen einer Eingabeform.
func checkShapeArg(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("%w: Form mit Rang 0", ErrInvalidArgument)
	}
	for _, d := range shape {
		if d < 1 {
			return fmt.Errorf("%w: Dimension %d in Form %v", ErrInvalidArgument, d, shape)
		}
	}
	return nil
}

// checkCommonArgs prueft Maskenanzahl und Keep-Anteil.
func checkCommonArgs(numberOfMasks int, pKeep float64) error {
	if numberOfMasks < 0 {
		return fmt.Errorf("%w: negative Maskenanzahl %d", ErrInvalidArgument, numberOfMasks)
	}
	if math.IsNaN(pKeep) || pKeep <= 0 || pKeep > 1 {
		return fmt.Errorf("%w: p_keep %v ausserhalb (0, 1]", ErrInvalidArgument, pKeep)
	}
	return nil
}

// cellCount liefert die Zellenanzahl einer Form.
func cellCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// shapeTailEq prueft ob die hinteren Achsen des Stapels der Eingabeform
// entsprechen (Stapelform = [K] + Eingabeform).
func shapeTailEq(batch, input []int) bool {
	if len(batch) != len(input)+1 {
		return false
	}
	for i, d := range input {
		if batch[i+1] != d {
			return false
		}
	}
	return true
}
