// stats.go - Keep-Statistiken ueber Maskenstapel

package masker

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pdevine/tensor"
)

// KeepRate liefert den realisierten Keep-Anteil eines Maskenstapels,
// 0 bei leerem Stapel.
func KeepRate(masks *tensor.Dense) float64 {
	// Data() panikt auf Tensoren der Groesse 0.
	if masks == nil || cellCount([]int(masks.Shape())) == 0 {
		return 0
	}
	bits, ok := asSlice(masks.Data()).([]bool)
	if !ok || len(bits) == 0 {
		return 0
	}
	kept := 0
	for _, b := range bits {
		if b {
			kept++
		}
	}
	return float64(kept) / float64(len(bits))
}

// MaskStats fasst eine einzelne Maske zusammen.
type MaskStats struct {
	Index int
	Kept  int
	Cells int
}

// Rate liefert den Keep-Anteil der Maske.
func (s MaskStats) Rate() float64 {
	if s.Cells == 0 {
		return 0
	}
	return float64(s.Kept) / float64(s.Cells)
}

// BatchStats fasst einen Maskenstapel zusammen.
type BatchStats struct {
	Count int // Anzahl Masken im Stapel
	Cells int // Zellen je Maske
	Kept  int // erhaltene Zellen ueber den ganzen Stapel
	Masks []MaskStats
}

// Rate liefert den Keep-Anteil ueber den ganzen Stapel.
func (s BatchStats) Rate() float64 {
	total := s.Count * s.Cells
	if total == 0 {
		return 0
	}
	return float64(s.Kept) / float64(total)
}

// Stats berechnet die Keep-Statistik eines Maskenstapels.
func Stats(masks *tensor.Dense) (BatchStats, error) {
	if masks == nil {
		return BatchStats{}, &MaskError{Op: "stats", Err: fmt.Errorf("%w: Maskenstapel ist nil", ErrInvalidArgument)}
	}
	if masks.Dtype() != tensor.Bool {
		return BatchStats{}, &MaskError{Op: "stats", Err: fmt.Errorf("%w: Dtype %v, erwartet bool", ErrInvalidArgument, masks.Dtype())}
	}
	shape := []int(masks.Shape())
	if len(shape) < 2 {
		return BatchStats{}, &MaskError{Op: "stats", Err: fmt.Errorf("%w: Rang %d, erwartet Stapelform [K] + Eingabeform", ErrInvalidArgument, len(shape))}
	}

	k := shape[0]
	n := cellCount(shape[1:])
	st := BatchStats{Count: k, Cells: n, Masks: make([]MaskStats, 0, k)}
	if k == 0 {
		return st, nil
	}

	bits := asSlice(masks.Data()).([]bool)
	for m := 0; m < k; m++ {
		kept := 0
		for _, b := range bits[m*n : (m+1)*n] {
			if b {
				kept++
			}
		}
		st.Kept += kept
		st.Masks = append(st.Masks, MaskStats{Index: m, Kept: kept, Cells: n})
	}
	return st, nil
}

// WriteTable schreibt die Statistik als Texttabelle, gedacht fuer
// Diagnose-Ausgaben beim Abstimmen von p_keep.
func (s BatchStats) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"MASKE", "ERHALTEN", "ZELLEN", "RATE"})
	for _, m := range s.Masks {
		table.Append([]string{
			strconv.Itoa(m.Index),
			strconv.Itoa(m.Kept),
			strconv.Itoa(m.Cells),
			fmt.Sprintf("%.3f", m.Rate()),
		})
	}
	table.SetFooter([]string{"", "", "GESAMT", fmt.Sprintf("%.3f", s.Rate())})
	table.Render()
}
