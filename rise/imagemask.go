// MODUL: rise
// ZWECK: Perturbationsbasierte Erklaerungen nach dem RISE-Verfahren
// INPUT: Eingabe-Tensor, Modell-Aufruffunktion, Ziel-Labels
// OUTPUT: Wichtigkeitskarten je Label
// NEBENEFFEKTE: Modellaufrufe ueber PredictFunc, Fortschritt via slog
// ABHAENGIGKEITEN: masker, dtype, envconfig (intern); tensor, gonum,
//                  x/image, x/sync, uuid, ordered-map, gods (extern)
// HINWEISE: Masken und Aggregation sind deterministisch bei fixer Quelle

// Package rise erklaert Modellvorhersagen durch zufaellige Maskierung:
// die Eingabe wird vielfach abgedeckt, das Modell auf allen Varianten
// befragt und jede Zelle nach den Scores gewichtet, unter denen sie
// sichtbar war. Fuer Bilder kommen glatte, bilinear hochskalierte
// Masken zum Einsatz, fuer beliebige Eingaben die booleschen
// Zellmasken des masker-Pakets.
package rise

import (
	"fmt"
	"image"
	"image/color"
	"math"
	randv2 "math/rand/v2"

	"github.com/pdevine/tensor"
	"golang.org/x/exp/rand"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/umbra-ml/umbra/envconfig"
	"github.com/umbra-ml/umbra/masker"
)

// GenerateImageMasks erzeugt numberOfMasks glatte Masken [K, h, w] mit
// Werten in [0, 1]. Pro Maske wird ein cells x cells Bernoulli(pKeep)-
// Gitter gezogen, bilinear ueber die Zielgroesse hinaus hochskaliert
// und mit zufaelligem Versatz unterhalb einer Gitterzelle beschnitten.
// Der Versatz verhindert, dass Zellgrenzen in allen Masken auf
// dieselben Pixel fallen.
//
// src == nil zieht einen frischen Seed, UMBRA_SEED pinnt ihn.
func GenerateImageMasks(h, w, numberOfMasks int, pKeep float64, cells int, src rand.Source) (*tensor.Dense, error) {
	if h < 1 || w < 1 {
		return nil, fmt.Errorf("image_masks: %w: Bildgroesse %dx%d", masker.ErrInvalidArgument, h, w)
	}
	if numberOfMasks < 0 {
		return nil, fmt.Errorf("image_masks: %w: negative Maskenanzahl %d", masker.ErrInvalidArgument, numberOfMasks)
	}
	if math.IsNaN(pKeep) || pKeep <= 0 || pKeep > 1 {
		return nil, fmt.Errorf("image_masks: %w: p_keep %v ausserhalb (0, 1]", masker.ErrInvalidArgument, pKeep)
	}
	if cells < 1 {
		return nil, fmt.Errorf("image_masks: %w: Gitter mit %d Zellen", masker.ErrInvalidArgument, cells)
	}

	out := make([]float32, numberOfMasks*h*w)
	if numberOfMasks == 0 {
		return tensor.New(tensor.WithShape(0, h, w), tensor.WithBacking(out)), nil
	}

	src = newSource(src)
	r := rand.New(src)
	bern := distuv.Bernoulli{P: pKeep, Src: src}

	// Zellgroesse aufgerundet; das Upsampling-Ziel ist eine Gitterzelle
	// groesser als das Bild, damit der Versatz Platz hat.
	cellH := (h + cells - 1) / cells
	cellW := (w + cells - 1) / cells
	upH := (cells + 1) * cellH
	upW := (cells + 1) * cellW

	grid := image.NewGray16(image.Rect(0, 0, cells, cells))
	up := image.NewGray16(image.Rect(0, 0, upW, upH))
	for m := 0; m < numberOfMasks; m++ {
		for y := 0; y < cells; y++ {
			for x := 0; x < cells; x++ {
				var v uint16
				if bern.Rand() == 1 {
					v = 0xffff
				}
				grid.SetGray16(x, y, color.Gray16{Y: v})
			}
		}
		draw.BiLinear.Scale(up, up.Bounds(), grid, grid.Bounds(), draw.Src, nil)

		dy := r.Intn(cellH)
		dx := r.Intn(cellW)
		base := m * h * w
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[base+y*w+x] = float32(up.Gray16At(x+dx, y+dy).Y) / 0xffff
			}
		}
	}

	return tensor.New(tensor.WithShape(numberOfMasks, h, w), tensor.WithBacking(out)), nil
}

// newSource liefert die Zufallsquelle fuer Bildmasken: die uebergebene
// Quelle, sonst UMBRA_SEED, sonst ein frischer Seed.
func newSource(src rand.Source) rand.Source {
	if src != nil {
		return src
	}
	if seed, ok := envconfig.Seed(); ok {
		return rand.NewSource(seed)
	}
	return rand.NewSource(randv2.Uint64())
}
