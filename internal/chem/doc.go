// Package chem provides the composition abstraction used by correction
// rules: element membership, atom counts, reduced formulas and formula-unit
// counts, and electronegativity ordering.
//
// Reduced formulas follow the usual materials-database convention: elements
// are ordered by ascending electronegativity, counts are divided by their
// greatest common divisor, and molecular species keep their molecular form
// (a composition of four oxygen atoms reduces to "O2" with two formula
// units, Li2O2 stays "Li2O2").
package chem
