// quota.go - Quotenberechnung: wie viele Zellen pro Maske fallen

package masker

import (
	"log/slog"
	"math"
)

// maskedCellCount bestimmt die Anzahl maskierter Zellen fuer n Zellen und
// Ziel-Keep-Anteil pKeep: round((1-pKeep)*n), geklemmt so dass pro Maske
// mindestens eine Zelle maskiert wird und mindestens eine erhalten bleibt.
// Bei n == 1 wird die einzige Zelle nie maskiert.
func maskedCellCount(pKeep float64, n int) int {
	masked := int(math.Round((1 - pKeep) * float64(n)))
	if masked >= n {
		slog.Warn("p_keep zu niedrig, eine Zelle bleibt unmaskiert", "p_keep", pKeep, "zellen", n)
		masked = n - 1
	}
	if masked <= 0 {
		if n > 1 {
			slog.Warn("p_keep zu hoch, eine Zelle wird trotzdem maskiert", "p_keep", pKeep, "zellen", n)
			masked = 1
		} else {
			masked = 0
		}
	}
	return masked
}
