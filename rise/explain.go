// explain.go - Erklaerungslaeufe: Maskieren, Vorhersagen, Aggregieren

package rise

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/emirpasic/gods/v2/sets/hashset"
	"github.com/google/uuid"
	"github.com/pdevine/tensor"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/umbra-ml/umbra/envconfig"
	"github.com/umbra-ml/umbra/masker"
)

// PredictFunc ruft das zu erklaerende Modell mit einem Stapel maskierter
// Eingaben der Form [B] + Eingabeform auf und liefert je Stapelzeile
// einen Score-Vektor. Die Funktion muss nebenlaeufig aufrufbar sein;
// der Stapel teilt sein Backing mit dem Gesamtstapel und darf nicht
// veraendert werden.
type PredictFunc func(ctx context.Context, batch *tensor.Dense) ([][]float64, error)

// Options steuert einen Erklaerungslauf. Nullwerte fallen auf die
// UMBRA_*-Defaults zurueck.
type Options struct {
	NumMasks  int           // Anzahl Masken (Default: UMBRA_MASKS)
	PKeep     float64       // Ziel-Keep-Anteil (Default: UMBRA_PKEEP)
	BatchSize int           // Stapelgroesse je Modellaufruf (Default: UMBRA_BATCH_SIZE)
	Cells     int           // Gitterzellen je Achse fuer Bildmasken (Default: UMBRA_CELLS)
	Policy    masker.Policy // Fuellstrategie (Default: Mean)
	Source    rand.Source   // Zufallsquelle (Default: frischer Seed bzw. UMBRA_SEED)
}

// DefaultOptions liefert die Defaults aus der Umgebung.
func DefaultOptions() Options {
	return Options{
		NumMasks:  envconfig.NumMasks(),
		PKeep:     envconfig.PKeep(),
		BatchSize: envconfig.BatchSize(),
		Cells:     envconfig.Cells(),
		Policy:    masker.Mean,
	}
}

// Explainer fuehrt perturbationsbasierte Erklaerungslaeufe aus.
type Explainer struct {
	opts Options
}

// NewExplainer prueft die Optionen und fuellt Nullwerte mit Defaults.
func NewExplainer(opts Options) (*Explainer, error) {
	def := DefaultOptions()
	if opts.NumMasks == 0 {
		opts.NumMasks = def.NumMasks
	}
	if opts.PKeep == 0 {
		opts.PKeep = def.PKeep
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Cells == 0 {
		opts.Cells = def.Cells
	}
	if opts.Policy == nil {
		opts.Policy = def.Policy
	}

	if opts.NumMasks < 1 {
		return nil, fmt.Errorf("explainer: %w: Maskenanzahl %d", masker.ErrInvalidArgument, opts.NumMasks)
	}
	if math.IsNaN(opts.PKeep) || opts.PKeep <= 0 || opts.PKeep > 1 {
		return nil, fmt.Errorf("explainer: %w: p_keep %v ausserhalb (0, 1]", masker.ErrInvalidArgument, opts.PKeep)
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("explainer: %w: Batchgroesse %d", masker.ErrInvalidArgument, opts.BatchSize)
	}
	if opts.Cells < 1 {
		return nil, fmt.Errorf("explainer: %w: Gitter mit %d Zellen", masker.ErrInvalidArgument, opts.Cells)
	}

	slog.Debug("explainer konfiguriert", "env", envconfig.Values())
	return &Explainer{opts: opts}, nil
}

// Explain maskiert die Eingabe mit booleschen Zellmasken, befragt das
// Modell auf allen Varianten und aggregiert je Label eine
// Wichtigkeitskarte in der Eingabeform.
func (e *Explainer) Explain(ctx context.Context, input *tensor.Dense, predict PredictFunc, labels []int) (*Result, error) {
	if input == nil {
		return nil, fmt.Errorf("explain: %w: Eingabe ist nil", masker.ErrInvalidArgument)
	}
	if predict == nil {
		return nil, fmt.Errorf("explain: %w: predict ist nil", masker.ErrInvalidArgument)
	}
	if err := checkLabels(labels); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	start := time.Now()
	runID := uuid.NewString()
	inShape := []int(input.Shape())
	slog.Debug("erklaerungslauf gestartet", "run_id", runID, "form", inShape,
		"masken", e.opts.NumMasks, "p_keep", e.opts.PKeep, "strategie", e.opts.Policy.Name())

	masks, err := masker.Generate(inShape, e.opts.NumMasks, e.opts.PKeep, e.sourceOptions()...)
	if err != nil {
		return nil, err
	}
	data, err := masker.Apply(input, masks, e.opts.Policy)
	if err != nil {
		return nil, err
	}
	scores, err := e.predictBatched(ctx, data, predict, labels)
	if err != nil {
		return nil, err
	}

	n := cellCount(inShape)
	bits := asSlice(masks.Data()).([]bool)
	heats := aggregateBits(bits, scores, labels, n, float64(e.opts.NumMasks)*e.opts.PKeep)

	res := newResult(runID, e.opts.NumMasks, e.opts.PKeep, masks)
	for i, l := range labels {
		res.setHeatmap(l, tensor.New(tensor.WithShape(inShape...), tensor.WithBacking(heats[i])))
	}
	res.Duration = time.Since(start)
	slog.Debug("erklaerungslauf beendet", "run_id", runID, "dauer", res.Duration,
		"keep_rate", masker.KeepRate(masks))
	return res, nil
}

// ExplainImage erklaert ein [H, W, C]-Bild mit glatten Float-Masken.
// Die Wichtigkeitskarten haben die Form [H, W]; der Maskenwert eines
// Pixels gilt fuer alle Kanaele.
func (e *Explainer) ExplainImage(ctx context.Context, input *tensor.Dense, predict PredictFunc, labels []int) (*Result, error) {
	if input == nil {
		return nil, fmt.Errorf("explain_image: %w: Eingabe ist nil", masker.ErrInvalidArgument)
	}
	if predict == nil {
		return nil, fmt.Errorf("explain_image: %w: predict ist nil", masker.ErrInvalidArgument)
	}
	if err := checkLabels(labels); err != nil {
		return nil, fmt.Errorf("explain_image: %w", err)
	}
	inShape := []int(input.Shape())
	if len(inShape) != 3 {
		return nil, fmt.Errorf("explain_image: %w: Rang %d, erwartet [H, W, C]", masker.ErrInvalidArgument, len(inShape))
	}

	start := time.Now()
	runID := uuid.NewString()
	h, w := inShape[0], inShape[1]
	slog.Debug("bild-erklaerungslauf gestartet", "run_id", runID, "form", inShape,
		"masken", e.opts.NumMasks, "p_keep", e.opts.PKeep, "zellen", e.opts.Cells)

	masks, err := GenerateImageMasks(h, w, e.opts.NumMasks, e.opts.PKeep, e.opts.Cells, e.opts.Source)
	if err != nil {
		return nil, err
	}
	data, err := ApplyImageMasks(input, masks, e.opts.Policy)
	if err != nil {
		return nil, err
	}
	scores, err := e.predictBatched(ctx, data, predict, labels)
	if err != nil {
		return nil, err
	}

	weights := asSlice(masks.Data()).([]float32)
	heats := aggregateWeights(weights, scores, labels, h*w, float64(e.opts.NumMasks)*e.opts.PKeep)

	res := newResult(runID, e.opts.NumMasks, e.opts.PKeep, masks)
	for i, l := range labels {
		res.setHeatmap(l, tensor.New(tensor.WithShape(h, w), tensor.WithBacking(heats[i])))
	}
	res.Duration = time.Since(start)
	slog.Debug("bild-erklaerungslauf beendet", "run_id", runID, "dauer", res.Duration)
	return res, nil
}

// sourceOptions reicht eine konfigurierte Zufallsquelle an masker durch.
func (e *Explainer) sourceOptions() []masker.Option {
	if e.opts.Source != nil {
		return []masker.Option{masker.WithSource(e.opts.Source)}
	}
	return nil
}

// predictBatched zerlegt den Datenstapel in Teilstapel und ruft das
// Modell nebenlaeufig auf. Score-Vektoren landen indexstabil in der
// Reihenfolge der Masken.
func (e *Explainer) predictBatched(ctx context.Context, data *tensor.Dense, predict PredictFunc, labels []int) ([][]float64, error) {
	shape := []int(data.Shape())
	k := shape[0]
	rowShape := shape[1:]
	n := cellCount(rowShape)

	scores := make([][]float64, k)
	g, ctx := errgroup.WithContext(ctx)
	for off := 0; off < k; off += e.opts.BatchSize {
		begin, end := off, min(off+e.opts.BatchSize, k)
		chunk, err := chunkRows(data, begin, end, n, rowShape)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			out, err := predict(ctx, chunk)
			if err != nil {
				return fmt.Errorf("predict [%d:%d): %w", begin, end, err)
			}
			if len(out) != end-begin {
				return fmt.Errorf("predict [%d:%d): %w: %d Score-Vektoren fuer %d Eingaben",
					begin, end, masker.ErrInvalidArgument, len(out), end-begin)
			}
			for i, s := range out {
				for _, l := range labels {
					if l >= len(s) {
						return fmt.Errorf("predict [%d:%d): %w: Label %d ausserhalb der %d Modell-Scores",
							begin, end, masker.ErrInvalidArgument, l, len(s))
					}
				}
				scores[begin+i] = s
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// chunkRows schneidet die Zeilen [begin, end) als Sicht auf den Stapel.
func chunkRows(data *tensor.Dense, begin, end, n int, rowShape []int) (*tensor.Dense, error) {
	shape := append([]int{end - begin}, rowShape...)
	switch v := asSlice(data.Data()).(type) {
	case []float64:
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(v[begin*n:end*n])), nil
	case []float32:
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(v[begin*n:end*n])), nil
	case []int:
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(v[begin*n:end*n])), nil
	case []int64:
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(v[begin*n:end*n])), nil
	case []int32:
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(v[begin*n:end*n])), nil
	case []uint8:
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(v[begin*n:end*n])), nil
	default:
		return nil, fmt.Errorf("predict: %w: Stapel-Dtype %v wird nicht unterstuetzt", masker.ErrInvalidArgument, data.Dtype())
	}
}

// checkLabels verlangt mindestens ein Label, keine Duplikate und keine
// negativen Indizes.
func checkLabels(labels []int) error {
	if len(labels) == 0 {
		return fmt.Errorf("%w: keine Labels", masker.ErrInvalidArgument)
	}
	seen := hashset.New[int]()
	for _, l := range labels {
		if l < 0 {
			return fmt.Errorf("%w: negatives Label %d", masker.ErrInvalidArgument, l)
		}
		if seen.Contains(l) {
			return fmt.Errorf("%w: Label %d doppelt angefragt", masker.ErrInvalidArgument, l)
		}
		seen.Add(l)
	}
	return nil
}

// aggregateBits summiert Score-gewichtete boolesche Masken und normiert
// auf Maskenanzahl mal Keep-Anteil.
func aggregateBits(bits []bool, scores [][]float64, labels []int, n int, norm float64) [][]float64 {
	heats := make([][]float64, len(labels))
	for i := range heats {
		heats[i] = make([]float64, n)
	}
	vec := make([]float64, n)
	for m := range scores {
		for j := 0; j < n; j++ {
			if bits[m*n+j] {
				vec[j] = 1
			} else {
				vec[j] = 0
			}
		}
		for i, l := range labels {
			floats.AddScaled(heats[i], scores[m][l], vec)
		}
	}
	for i := range heats {
		floats.Scale(1/norm, heats[i])
	}
	return heats
}

// aggregateWeights summiert Score-gewichtete Float-Masken.
func aggregateWeights(weights []float32, scores [][]float64, labels []int, n int, norm float64) [][]float64 {
	heats := make([][]float64, len(labels))
	for i := range heats {
		heats[i] = make([]float64, n)
	}
	vec := make([]float64, n)
	for m := range scores {
		for j := 0; j < n; j++ {
			vec[j] = float64(weights[m*n+j])
		}
		for i, l := range labels {
			floats.AddScaled(heats[i], scores[m][l], vec)
		}
	}
	for i := range heats {
		floats.Scale(1/norm, heats[i])
	}
	return heats
}
