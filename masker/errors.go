// errors.go - Fehlertaxonomie der Maskierungs-Operationen

package masker

import "errors"

// Sentinel-Fehler; Aufrufer pruefen mit errors.Is.
var (
	// ErrInvalidArgument meldet unbrauchbare Argumente: p_keep ausserhalb
	// (0, 1], negative Maskenanzahl, Formen mit Rang 0 oder Dimension < 1.
	ErrInvalidArgument = errors.New("masker: ungueltiges Argument")

	// ErrShapeMismatch meldet einen Maskenstapel, dessen hintere Achsen
	// nicht zur Eingabeform passen.
	ErrShapeMismatch = errors.New("masker: Formen stimmen nicht ueberein")

	// ErrUnknownMaskType meldet einen unbekannten Namen einer
	// Fuellstrategie.
	ErrUnknownMaskType = errors.New("masker: unbekannter Maskentyp")
)

// MaskError traegt die Operation, in der ein Fehler auftrat.
type MaskError struct {
	Op  string // "generate", "generate_channel", "apply", ...
	Err error
}

// Error implementiert das error-Interface
func (e *MaskError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap gibt den urspruenglichen Fehler zurueck
func (e *MaskError) Unwrap() error {
	return e.Err
}
