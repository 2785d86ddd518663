package chem

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// amountTolerance is the tolerance used when deciding whether an atom count
// is integral and whether an element is present at all.
const amountTolerance = 1e-8

// specialFormulas maps reduced formulas that are conventionally written as
// molecules (diatomic gases, alkali peroxides) to their molecular form.
// A composition whose reduced formula appears here has its formula unit
// doubled and its formula-unit count halved.
var specialFormulas = map[string]string{
	"LiO": "Li2O2",
	"NaO": "Na2O2",
	"KO":  "K2O2",
	"HO":  "H2O2",
	"CsO": "Cs2O2",
	"RbO": "Rb2O2",
	"O":   "O2",
	"N":   "N2",
	"F":   "F2",
	"Cl":  "Cl2",
	"H":   "H2",
}

// Composition is an immutable multiset of element symbol to atom count.
//
// The zero value is an empty composition. Counts at or below zero are
// dropped on construction.
type Composition struct {
	amounts map[string]float64
}

// New builds a Composition from an element→count map. The input map is
// copied.
func New(amounts map[string]float64) Composition {
	c := Composition{amounts: make(map[string]float64, len(amounts))}
	for el, n := range amounts {
		if n > amountTolerance {
			c.amounts[el] = n
		}
	}
	return c
}

// MustParse is like Parse but panics on error.
// Use only in tests or with literal formulas.
func MustParse(formula string) Composition {
	c, err := Parse(formula)
	if err != nil {
		panic(err)
	}
	return c
}

// Contains reports whether el is present.
func (c Composition) Contains(el string) bool {
	_, ok := c.amounts[el]
	return ok
}

// Count returns the number of atoms of el (0 if absent).
func (c Composition) Count(el string) float64 {
	return c.amounts[el]
}

// NumAtoms returns the total number of atoms.
func (c Composition) NumAtoms() float64 {
	total := 0.0
	for _, el := range c.Elements() {
		total += c.amounts[el]
	}
	return total
}

// Len returns the number of distinct elements.
func (c Composition) Len() int {
	return len(c.amounts)
}

// IsElement reports whether the composition holds exactly one element.
func (c Composition) IsElement() bool {
	return len(c.amounts) == 1
}

// Elements returns element symbols sorted alphabetically.
func (c Composition) Elements() []string {
	els := make([]string, 0, len(c.amounts))
	for el := range c.amounts {
		els = append(els, el)
	}
	sort.Strings(els)
	return els
}

// ByElectronegativity returns element symbols in ascending Pauling
// electronegativity. Ties keep alphabetical order, so the result is
// deterministic; the last element is the most electronegative.
func (c Composition) ByElectronegativity() []string {
	els := c.Elements()
	sort.SliceStable(els, func(i, j int) bool {
		return Electronegativity(els[i]) < Electronegativity(els[j])
	})
	return els
}

// MostElectronegative returns the most electronegative element present,
// or "" for an empty composition.
func (c Composition) MostElectronegative() string {
	els := c.ByElectronegativity()
	if len(els) == 0 {
		return ""
	}
	return els[len(els)-1]
}

// Amounts returns a copy of the element→count map.
func (c Composition) Amounts() map[string]float64 {
	out := make(map[string]float64, len(c.amounts))
	for el, n := range c.amounts {
		out[el] = n
	}
	return out
}

// Formula returns the full (unreduced) formula, elements ordered by
// electronegativity.
func (c Composition) Formula() string {
	return formatFormula(c.amounts, c.ByElectronegativity())
}

// ReducedFormula returns the formula normalised to the smallest integer
// atom ratios, with molecular special cases applied (O4 → "O2").
func (c Composition) ReducedFormula() string {
	formula, _ := c.reduced()
	return formula
}

// FormulaUnits returns how many reduced formula units the composition
// holds: NumAtoms divided by the atom count of the reduced formula.
func (c Composition) FormulaUnits() float64 {
	_, factor := c.reduced()
	return factor
}

func (c Composition) reduced() (string, float64) {
	if len(c.amounts) == 0 {
		return "", 0
	}
	order := c.ByElectronegativity()

	factor := 1.0
	if allIntegral(c.amounts) {
		g := 0
		for _, el := range order {
			g = gcd(g, int(math.Round(c.amounts[el])))
		}
		if g > 0 {
			factor = float64(g)
		}
	}

	reduced := make(map[string]float64, len(c.amounts))
	for el, n := range c.amounts {
		reduced[el] = n / factor
	}
	formula := formatFormula(reduced, order)

	if special, ok := specialFormulas[formula]; ok {
		formula = special
		factor /= 2
	}
	return formula, factor
}

// String returns the full formula.
func (c Composition) String() string {
	return c.Formula()
}

// MarshalJSON encodes the composition as an element→count object.
func (c Composition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.amounts)
}

// UnmarshalJSON accepts either an element→count object or a formula string.
func (c *Composition) UnmarshalJSON(data []byte) error {
	var formula string
	if err := json.Unmarshal(data, &formula); err == nil {
		parsed, err := Parse(formula)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var amounts map[string]float64
	if err := json.Unmarshal(data, &amounts); err != nil {
		return fmt.Errorf("composition must be a formula string or element map: %w", err)
	}
	for el := range amounts {
		if !IsElement(el) {
			return fmt.Errorf("unknown element %q", el)
		}
	}
	*c = New(amounts)
	return nil
}

func formatFormula(amounts map[string]float64, order []string) string {
	var b strings.Builder
	for _, el := range order {
		n := amounts[el]
		b.WriteString(el)
		if math.Abs(n-1) < amountTolerance {
			continue
		}
		if isIntegral(n) {
			b.WriteString(strconv.Itoa(int(math.Round(n))))
		} else {
			b.WriteString(strconv.FormatFloat(n, 'g', -1, 64))
		}
	}
	return b.String()
}

func allIntegral(amounts map[string]float64) bool {
	for _, n := range amounts {
		if !isIntegral(n) {
			return false
		}
	}
	return true
}

func isIntegral(n float64) bool {
	return math.Abs(n-math.Round(n)) < amountTolerance
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
