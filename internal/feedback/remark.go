package feedback

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/molsim/dockenergy/pkg/core"
)

const remarkPrefix = "REMARK      NON-BONDED ENERGY (kcal/mol): "

var printer = message.NewPrinter(language.English)

// Remark returns the PDB REMARK line carrying the total energy, formatted
// with group separators and three decimals.
func Remark(e core.Energy) string {
	return remarkPrefix + printer.Sprintf("%.3f", float64(e.Total()))
}

// WriteRemark writes the remark line followed by a newline.
func WriteRemark(w io.Writer, e core.Energy) error {
	_, err := fmt.Fprintln(w, Remark(e))
	return err
}
