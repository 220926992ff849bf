// config_knobs.go - Masken- und Batch-Parameter
//
// Dieses Modul enthaelt:
// - Standard-Parameter fuer Maskengenerierung
// - Batch-Einstellungen fuer Modellaufrufe
package envconfig

// =============================================================================
// Masken-Parameter
// =============================================================================

var (
	// NumMasks setzt die Standard-Maskenanzahl fuer Erklaerungslaeufe
	// Konfigurierbar via UMBRA_MASKS
	NumMasks = Positive("UMBRA_MASKS", 1000)

	// PKeep setzt den Standard-Keep-Anteil in (0, 1]
	// Konfigurierbar via UMBRA_PKEEP
	PKeep = Fraction("UMBRA_PKEEP", 0.5)

	// Cells setzt die Gitterzellen je Achse fuer Bildmasken
	// Konfigurierbar via UMBRA_CELLS
	Cells = Positive("UMBRA_CELLS", 8)
)

// =============================================================================
// Batch-Einstellungen
// =============================================================================

var (
	// BatchSize setzt die Batchgroesse fuer Modellaufrufe
	// Konfigurierbar via UMBRA_BATCH_SIZE
	BatchSize = Positive("UMBRA_BATCH_SIZE", 100)
)
