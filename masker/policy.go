// policy.go - Fuellstrategien fuer maskierte Zellen

package masker

import (
	"fmt"

	"github.com/agnivade/levenshtein"
	"github.com/pdevine/tensor"
	"gonum.org/v1/gonum/stat"

	"github.com/umbra-ml/umbra/dtype"
)

// Policy bestimmt den Fuellwert maskierter Zellen. Die Menge der
// Strategien ist geschlossen; jede Variante berechnet ihre Fuellwerte
// rein aus der unveraenderten Eingabe.
type Policy interface {
	// Name liefert den Draht-Namen der Strategie.
	Name() string

	// fillValues berechnet die Fuellwerte aus den Eingabezellen.
	// channels ist die Groesse der letzten Achse, 0 bei Rang 1.
	fillValues(cells []float64, channels int) (Fill, error)
}

// Verfuegbare Fuellstrategien.
var (
	// Mean ersetzt maskierte Zellen durch den Mittelwert aller Zellen.
	Mean Policy = meanPolicy{}

	// Zero ersetzt maskierte Zellen durch 0.
	Zero Policy = zeroPolicy{}

	// ChannelMean ersetzt maskierte Zellen durch den Mittelwert ihres
	// Kanals (letzte Achse). Braucht Eingaben mit Rang >= 2.
	ChannelMean Policy = channelMeanPolicy{}
)

// policies haelt die bekannten Strategien in Dokumentationsreihenfolge.
var policies = []Policy{Mean, Zero, ChannelMean}

// Fill beschreibt die berechneten Fuellwerte einer Strategie.
type Fill struct {
	// PerChannel zeigt an, dass Values einen Wert je Kanal traegt;
	// andernfalls enthaelt Values genau einen Skalar.
	PerChannel bool
	Values     []float64
}

// At liefert den Fuellwert fuer den Flachindex j einer Eingabe mit
// channels Kanaelen.
func (f Fill) At(j, channels int) float64 {
	if f.PerChannel {
		return f.Values[j%channels]
	}
	return f.Values[0]
}

type meanPolicy struct{}

func (meanPolicy) Name() string { return "mean" }

func (meanPolicy) fillValues(cells []float64, channels int) (Fill, error) {
	return Fill{Values: []float64{stat.Mean(cells, nil)}}, nil
}

type zeroPolicy struct{}

func (zeroPolicy) Name() string { return "zero" }

func (zeroPolicy) fillValues(cells []float64, channels int) (Fill, error) {
	return Fill{Values: []float64{0}}, nil
}

type channelMeanPolicy struct{}

func (channelMeanPolicy) Name() string { return "channel_mean" }

func (channelMeanPolicy) fillValues(cells []float64, channels int) (Fill, error) {
	if channels < 1 {
		return Fill{}, fmt.Errorf("%w: channel_mean braucht eine Eingabe mit Rang >= 2", ErrInvalidArgument)
	}
	sums := make([]float64, channels)
	for j, v := range cells {
		sums[j%channels] += v
	}
	rows := float64(len(cells) / channels)
	for c := range sums {
		sums[c] /= rows
	}
	return Fill{PerChannel: true, Values: sums}, nil
}

// keepsIntegerDtype meldet, ob eine Strategie ganzzahlige Eingaben ohne
// Promotion nach Float64 fuellen kann.
func keepsIntegerDtype(p Policy) bool {
	return p == Zero
}

// PolicyNames liefert die Namen aller Strategien.
func PolicyNames() []string {
	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = p.Name()
	}
	return names
}

// ParsePolicy loest einen Strategienamen auf. Unbekannte Namen liefern
// ErrUnknownMaskType, bei geringer Editierdistanz mit Vorschlag.
func ParsePolicy(name string) (Policy, error) {
	for _, p := range policies {
		if p.Name() == name {
			return p, nil
		}
	}
	err := fmt.Errorf("%w: %q", ErrUnknownMaskType, name)
	if s := closestPolicy(name); s != "" {
		err = fmt.Errorf("%w: %q (meinten Sie %q?)", ErrUnknownMaskType, name, s)
	}
	return nil, &MaskError{Op: "parse_policy", Err: err}
}

// closestPolicy sucht den Strategienamen mit Editierdistanz < 3.
func closestPolicy(name string) string {
	best, score := "", 3
	for _, p := range policies {
		if d := levenshtein.ComputeDistance(name, p.Name()); d < score {
			best, score = p.Name(), d
		}
	}
	return best
}

// FillValues berechnet die Fuellwerte einer Strategie fuer eine Eingabe.
// Fuer Mean ist das der globale Mittelwert, fuer ChannelMean ein Wert je
// Kanal der letzten Achse, fuer Zero die Konstante 0.
func FillValues(p Policy, input *tensor.Dense) (Fill, error) {
	if p == nil {
		return Fill{}, &MaskError{Op: "fill_values", Err: fmt.Errorf("%w: keine Strategie", ErrUnknownMaskType)}
	}
	if input == nil {
		return Fill{}, &MaskError{Op: "fill_values", Err: fmt.Errorf("%w: Eingabe ist nil", ErrInvalidArgument)}
	}
	shape := []int(input.Shape())
	if err := checkShapeArg(shape); err != nil {
		return Fill{}, &MaskError{Op: "fill_values", Err: err}
	}
	cells, err := dtype.AsFloat64s(input)
	if err != nil {
		return Fill{}, &MaskError{Op: "fill_values", Err: fmt.Errorf("%w: %v", ErrInvalidArgument, err)}
	}
	channels := 0
	if len(shape) >= 2 {
		channels = shape[len(shape)-1]
	}
	f, err := p.fillValues(cells, channels)
	if err != nil {
		return Fill{}, &MaskError{Op: "fill_values", Err: err}
	}
	return f, nil
}
