// result.go - Ergebnis eines Erklaerungslaufs

package rise

import (
	"time"

	"github.com/pdevine/tensor"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Result buendelt die Wichtigkeitskarten eines Erklaerungslaufs.
type Result struct {
	RunID    string        // eindeutige Lauf-ID
	NumMasks int           // Anzahl verwendeter Masken
	PKeep    float64       // Ziel-Keep-Anteil
	Duration time.Duration // Gesamtdauer inklusive Modellaufrufe
	Masks    *tensor.Dense // verwendeter Maskenstapel

	heatmaps *orderedmap.OrderedMap[int, *tensor.Dense]
}

func newResult(runID string, numMasks int, pKeep float64, masks *tensor.Dense) *Result {
	return &Result{
		RunID:    runID,
		NumMasks: numMasks,
		PKeep:    pKeep,
		Masks:    masks,
		heatmaps: orderedmap.New[int, *tensor.Dense](),
	}
}

func (r *Result) setHeatmap(label int, heatmap *tensor.Dense) {
	r.heatmaps.Set(label, heatmap)
}

// Heatmap liefert die Wichtigkeitskarte eines Labels.
func (r *Result) Heatmap(label int) (*tensor.Dense, bool) {
	return r.heatmaps.Get(label)
}

// Labels liefert die erklaerten Labels in Aufrufreihenfolge.
func (r *Result) Labels() []int {
	labels := make([]int, 0, r.heatmaps.Len())
	for pair := r.heatmaps.Oldest(); pair != nil; pair = pair.Next() {
		labels = append(labels, pair.Key)
	}
	return labels
}
