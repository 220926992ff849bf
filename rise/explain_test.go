// explain_test.go - Tests fuer Erklaerungslaeufe

package rise

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/pdevine/tensor"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/umbra-ml/umbra/masker"
)

// sumPredict bewertet jede Stapelzeile mit (Summe, -Summe) ihrer Zellen.
func sumPredict(rowCells int) PredictFunc {
	return func(ctx context.Context, batch *tensor.Dense) ([][]float64, error) {
		var cells []float64
		switch v := batch.Data().(type) {
		case []float64:
			cells = v
		case []float32:
			cells = make([]float64, len(v))
			for i, f := range v {
				cells[i] = float64(f)
			}
		default:
			return nil, errors.New("unerwarteter Stapel-Dtype")
		}
		rows := len(cells) / rowCells
		out := make([][]float64, rows)
		for r := 0; r < rows; r++ {
			sum := 0.0
			for _, v := range cells[r*rowCells : (r+1)*rowCells] {
				sum += v
			}
			out[r] = []float64{sum, -sum}
		}
		return out, nil
	}
}

func TestExplainHeatmap(t *testing.T) {
	// Die Wichtigkeitskarte muss exakt der Score-gewichteten Summe der
	// zurueckgegebenen Masken entsprechen, normiert auf N * p_keep.
	input := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{1, 2, 3, 4}))
	e, err := NewExplainer(Options{
		NumMasks:  6,
		PKeep:     0.5,
		BatchSize: 2,
		Cells:     2,
		Policy:    masker.Mean,
		Source:    rand.NewSource(5),
	})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}

	res, err := e.Explain(context.Background(), input, sumPredict(4), []int{0, 1})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if res.RunID == "" {
		t.Error("RunID ist leer")
	}
	if got := res.Labels(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Labels = %v, erwartet [0 1]", got)
	}

	// Referenzrechnung aus dem zurueckgegebenen Maskenstapel.
	data, err := masker.Apply(input, res.Masks, masker.Mean)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	scores, err := sumPredict(4)(context.Background(), data)
	if err != nil {
		t.Fatalf("sumPredict: %v", err)
	}
	bits := res.Masks.Data().([]bool)
	want := make([][]float64, 2)
	for i := range want {
		want[i] = make([]float64, 4)
	}
	vec := make([]float64, 4)
	for m := 0; m < 6; m++ {
		for j := 0; j < 4; j++ {
			if bits[m*4+j] {
				vec[j] = 1
			} else {
				vec[j] = 0
			}
		}
		for i, l := range []int{0, 1} {
			floats.AddScaled(want[i], scores[m][l], vec)
		}
	}
	for i := range want {
		floats.Scale(1/(6*0.5), want[i])
	}

	for i, l := range []int{0, 1} {
		hm, ok := res.Heatmap(l)
		if !ok {
			t.Fatalf("Heatmap(%d) fehlt", l)
		}
		if got := []int(hm.Shape()); !reflect.DeepEqual(got, []int{4, 1}) {
			t.Fatalf("Heatmap-Form = %v, erwartet [4 1]", got)
		}
		if !floats.EqualApprox(hm.Data().([]float64), want[i], 1e-12) {
			t.Errorf("Heatmap(%d) = %v, erwartet %v", l, hm.Data(), want[i])
		}
	}
}

func TestExplainChunking(t *testing.T) {
	// 5 Masken bei Stapelgroesse 2: Teilstapel der Groessen 2, 2, 1.
	input := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{1, 2, 3}))
	e, err := NewExplainer(Options{
		NumMasks:  5,
		PKeep:     0.5,
		BatchSize: 2,
		Cells:     2,
		Source:    rand.NewSource(1),
	})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}

	var mu sync.Mutex
	var sizes []int
	predict := func(ctx context.Context, batch *tensor.Dense) ([][]float64, error) {
		rows := []int(batch.Shape())[0]
		mu.Lock()
		sizes = append(sizes, rows)
		mu.Unlock()
		out := make([][]float64, rows)
		for i := range out {
			out[i] = []float64{1}
		}
		return out, nil
	}

	if _, err := e.Explain(context.Background(), input, predict, []int{0}); err != nil {
		t.Fatalf("Explain: %v", err)
	}
	sort.Ints(sizes)
	if !reflect.DeepEqual(sizes, []int{1, 2, 2}) {
		t.Errorf("Teilstapel = %v, erwartet [1 2 2]", sizes)
	}
}

func TestExplainPredictError(t *testing.T) {
	errModel := errors.New("modell nicht erreichbar")
	input := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{1, 2, 3}))
	e, err := NewExplainer(Options{NumMasks: 4, PKeep: 0.5, BatchSize: 2, Cells: 2})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}
	predict := func(ctx context.Context, batch *tensor.Dense) ([][]float64, error) {
		return nil, errModel
	}
	if _, err := e.Explain(context.Background(), input, predict, []int{0}); !errors.Is(err, errModel) {
		t.Errorf("Fehler = %v, erwartet errModel", err)
	}
}

func TestExplainScoreCountMismatch(t *testing.T) {
	input := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{1, 2, 3}))
	e, err := NewExplainer(Options{NumMasks: 4, PKeep: 0.5, BatchSize: 2, Cells: 2})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}
	predict := func(ctx context.Context, batch *tensor.Dense) ([][]float64, error) {
		return [][]float64{{1}}, nil
	}
	if _, err := e.Explain(context.Background(), input, predict, []int{0}); !errors.Is(err, masker.ErrInvalidArgument) {
		t.Errorf("Fehler = %v, erwartet ErrInvalidArgument", err)
	}
}

func TestExplainLabelOutOfRange(t *testing.T) {
	input := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{1, 2, 3}))
	e, err := NewExplainer(Options{NumMasks: 4, PKeep: 0.5, BatchSize: 4, Cells: 2})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}
	if _, err := e.Explain(context.Background(), input, sumPredict(3), []int{0, 5}); !errors.Is(err, masker.ErrInvalidArgument) {
		t.Errorf("Fehler = %v, erwartet ErrInvalidArgument", err)
	}
}

func TestExplainLabelValidation(t *testing.T) {
	input := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{1, 2, 3}))
	e, err := NewExplainer(Options{NumMasks: 2, PKeep: 0.5, BatchSize: 2, Cells: 2})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}

	called := false
	predict := func(ctx context.Context, batch *tensor.Dense) ([][]float64, error) {
		called = true
		return nil, nil
	}

	tests := []struct {
		name   string
		labels []int
	}{
		{"keine labels", nil},
		{"doppelt", []int{1, 1}},
		{"negativ", []int{0, -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Explain(context.Background(), input, predict, tt.labels); !errors.Is(err, masker.ErrInvalidArgument) {
				t.Errorf("Fehler = %v, erwartet ErrInvalidArgument", err)
			}
		})
	}
	if called {
		t.Error("predict wurde trotz ungueltiger Labels aufgerufen")
	}
}

func TestExplainImageHeatmap(t *testing.T) {
	backing := make([]float32, 6*5*3)
	for i := range backing {
		backing[i] = float32(i % 11)
	}
	input := tensor.New(tensor.WithShape(6, 5, 3), tensor.WithBacking(backing))
	e, err := NewExplainer(Options{
		NumMasks:  4,
		PKeep:     0.8,
		BatchSize: 2,
		Cells:     2,
		Policy:    masker.Mean,
		Source:    rand.NewSource(7),
	})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}

	res, err := e.ExplainImage(context.Background(), input, sumPredict(6*5*3), []int{0})
	if err != nil {
		t.Fatalf("ExplainImage: %v", err)
	}
	hm, ok := res.Heatmap(0)
	if !ok {
		t.Fatal("Heatmap(0) fehlt")
	}
	if got := []int(hm.Shape()); !reflect.DeepEqual(got, []int{6, 5}) {
		t.Fatalf("Heatmap-Form = %v, erwartet [6 5]", got)
	}

	// Referenzrechnung aus dem zurueckgegebenen Maskenstapel.
	data, err := ApplyImageMasks(input, res.Masks, masker.Mean)
	if err != nil {
		t.Fatalf("ApplyImageMasks: %v", err)
	}
	scores, err := sumPredict(6*5*3)(context.Background(), data)
	if err != nil {
		t.Fatalf("sumPredict: %v", err)
	}
	weights := res.Masks.Data().([]float32)
	want := make([]float64, 6*5)
	vec := make([]float64, 6*5)
	for m := 0; m < 4; m++ {
		for j := range vec {
			vec[j] = float64(weights[m*len(vec)+j])
		}
		floats.AddScaled(want, scores[m][0], vec)
	}
	floats.Scale(1/(4*0.8), want)

	if !floats.EqualApprox(hm.Data().([]float64), want, 1e-9) {
		t.Errorf("Heatmap = %v, erwartet %v", hm.Data(), want)
	}
}

func TestExplainImageRankError(t *testing.T) {
	input := tensor.New(tensor.WithShape(4, 4), tensor.WithBacking(make([]float32, 16)))
	e, err := NewExplainer(Options{NumMasks: 2, PKeep: 0.5, BatchSize: 2, Cells: 2})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}
	if _, err := e.ExplainImage(context.Background(), input, sumPredict(16), []int{0}); !errors.Is(err, masker.ErrInvalidArgument) {
		t.Errorf("Fehler = %v, erwartet ErrInvalidArgument", err)
	}
}

func TestNewExplainerDefaults(t *testing.T) {
	t.Setenv("UMBRA_MASKS", "17")
	t.Setenv("UMBRA_PKEEP", "0.25")
	t.Setenv("UMBRA_BATCH_SIZE", "")
	t.Setenv("UMBRA_CELLS", "")

	e, err := NewExplainer(Options{})
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}
	if e.opts.NumMasks != 17 {
		t.Errorf("NumMasks = %d, erwartet 17 (UMBRA_MASKS)", e.opts.NumMasks)
	}
	if e.opts.PKeep != 0.25 {
		t.Errorf("PKeep = %v, erwartet 0.25 (UMBRA_PKEEP)", e.opts.PKeep)
	}
	if e.opts.BatchSize != 100 {
		t.Errorf("BatchSize = %d, erwartet Default 100", e.opts.BatchSize)
	}
	if e.opts.Cells != 8 {
		t.Errorf("Cells = %d, erwartet Default 8", e.opts.Cells)
	}
	if e.opts.Policy != masker.Mean {
		t.Errorf("Policy = %v, erwartet Mean", e.opts.Policy)
	}
}

func TestNewExplainerInvalid(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative maskenanzahl", Options{NumMasks: -3}},
		{"p_keep ueber eins", Options{PKeep: 1.5}},
		{"negative batchgroesse", Options{BatchSize: -1}},
		{"negative zellen", Options{Cells: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewExplainer(tt.opts); !errors.Is(err, masker.ErrInvalidArgument) {
				t.Errorf("Fehler = %v, erwartet ErrInvalidArgument", err)
			}
		})
	}
}

func TestResultLabelsOrder(t *testing.T) {
	res := newResult("lauf", 2, 0.5, nil)
	empty := tensor.New(tensor.WithShape(1), tensor.WithBacking([]float64{0}))
	res.setHeatmap(3, empty)
	res.setHeatmap(1, empty)
	res.setHeatmap(2, empty)

	if got := res.Labels(); !reflect.DeepEqual(got, []int{3, 1, 2}) {
		t.Errorf("Labels = %v, erwartet [3 1 2]", got)
	}
	if _, ok := res.Heatmap(9); ok {
		t.Error("Heatmap(9) vorhanden, erwartet fehlend")
	}
}
