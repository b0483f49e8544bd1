//go:build !tesseract

package recognize

import "fmt"

// NewTesseract reports that this binary was built without tesseract.
// Rebuild with -tags tesseract (requires libtesseract).
func NewTesseract(languages []string) (Recognizer, error) {
	return nil, fmt.Errorf("%w: built without the tesseract tag", ErrUnavailable)
}
