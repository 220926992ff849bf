// config.go - Haupt-Konfigurationsfunktionen fuer Umbra
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (UMBRA_DEBUG)
// - Seed: Gibt fixierten Zufalls-Seed zurueck (UMBRA_SEED)
// - Var: Liest eine Environment-Variable
//
// Weitere Konfigurationen sind ausgelagert:
// - config_knobs.go: Masken- und Batch-Parameter
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via UMBRA_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("UMBRA_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Seed gibt den fixierten Zufalls-Seed zurueck
// Konfigurierbar via UMBRA_SEED
// ok == false wenn nicht gesetzt; ungueltige Werte werden ignoriert
func Seed() (seed uint64, ok bool) {
	s := Var("UMBRA_SEED")
	if s == "" {
		return 0, false
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		slog.Warn("ungueltiger Seed, ignoriert", "UMBRA_SEED", s)
		return 0, false
	}

	return n, true
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
