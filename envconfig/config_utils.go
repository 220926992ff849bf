// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - Positive: Integer-Getter mit Default-Wert und Untergrenze 1
// - Fraction: Anteils-Getter mit Default-Wert in (0, 1]
// - String: String-Getter
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// =============================================================================
// Getter
// =============================================================================

// Positive gibt eine Funktion zurueck, die einen int >= 1 mit Default-Wert liest
func Positive(key string, defaultValue int) func() int {
	return func() int {
		if s := Var(key); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				return n
			}
			slog.Warn("ungueltige Environment-Variable, verwende Default", "key", key, "value", s, "default", defaultValue)
		}
		return defaultValue
	}
}

// Fraction gibt eine Funktion zurueck, die einen Anteil in (0, 1] mit Default-Wert liest
func Fraction(key string, defaultValue float64) func() float64 {
	return func() float64 {
		if s := Var(key); s != "" {
			if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
				return f
			}
			slog.Warn("ungueltige Environment-Variable, verwende Default", "key", key, "value", s, "default", defaultValue)
		}
		return defaultValue
	}
}

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"UMBRA_DEBUG":      {"UMBRA_DEBUG", LogLevel(), "Zusaetzliche Debug-Ausgaben (z.B. UMBRA_DEBUG=1)"},
		"UMBRA_SEED":       {"UMBRA_SEED", String("UMBRA_SEED")(), "Fixierter Seed fuer reproduzierbare Masken"},
		"UMBRA_MASKS":      {"UMBRA_MASKS", NumMasks(), "Standard-Maskenanzahl fuer Erklaerungslaeufe (default 1000)"},
		"UMBRA_PKEEP":      {"UMBRA_PKEEP", PKeep(), "Standard-Keep-Anteil in (0, 1] (default 0.5)"},
		"UMBRA_CELLS":      {"UMBRA_CELLS", Cells(), "Gitterzellen je Achse fuer Bildmasken (default 8)"},
		"UMBRA_BATCH_SIZE": {"UMBRA_BATCH_SIZE", BatchSize(), "Batchgroesse fuer Modellaufrufe (default 100)"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
