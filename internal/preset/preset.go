// Package preset builds the named compatibility schemes from preset
// configuration.
//
// Every scheme chains, in order: the pseudopotential check, the gas
// correction, the anion correction and the Hubbard U mixing correction.
// MITAqueous appends the aqueous correction.
package preset

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/roach88/ecompat/internal/compat"
	"github.com/roach88/ecompat/internal/config"
	"github.com/roach88/ecompat/internal/correction"
)

//go:embed data/*.yaml
var builtinFS embed.FS

// Ledger source names of the built-in schemes.
const (
	SourceMaterialsProject = "MaterialsProjectCompatibility"
	SourceMIT              = "MITCompatibility"
	SourceMITAqueous       = "MITAqueousCompatibility"
)

// Options configures the built-in schemes.
type Options struct {
	// CompatType selects GGA-only or GGA/GGA+U mixing. Empty means
	// Advanced.
	CompatType correction.CompatType

	// CorrectPeroxide enables peroxide/superoxide/ozonide corrections.
	CorrectPeroxide bool

	// CheckHash verifies pseudopotential hashes instead of symbols.
	CheckHash bool

	// Classifier determines oxide and sulfide subtypes from structural
	// data. Optional.
	Classifier correction.StructureClassifier

	// Clean resets entries before processing. Ignored by Aqueous.
	Clean bool

	// Workers bounds batch parallelism. 0 means sequential.
	Workers int

	// Logger receives provenance warnings and rejections.
	Logger *slog.Logger
}

// DefaultOptions returns Advanced mixing with peroxide corrections and
// clean processing.
func DefaultOptions() Options {
	return Options{
		CompatType:      correction.CompatAdvanced,
		CorrectPeroxide: true,
		Clean:           true,
		Workers:         1,
	}
}

// Builtin returns an embedded preset: "mp" or "mit".
func Builtin(name string) (*config.Preset, error) {
	data, err := builtinFS.ReadFile("data/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown builtin preset %q (want \"mp\" or \"mit\")", name)
	}
	p, err := config.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("builtin preset %q: %w", name, err)
	}
	if err := config.Validate(p); err != nil {
		return nil, fmt.Errorf("builtin preset %q: %w", name, err)
	}
	return p, nil
}

// Rules builds the solid-phase rule chain for p: pseudopotential check,
// gas, anion, Hubbard U.
func Rules(p *config.Preset, opts Options) ([]correction.Rule, error) {
	mode := correction.VerifySymbol
	if opts.CheckHash {
		mode = correction.VerifyHash
	}
	methods := make(map[string]correction.MethodSpec, len(p.InputSet.Methods))
	for el, m := range p.InputSet.Methods {
		methods[el] = correction.MethodSpec{Symbol: m.Symbol, Hash: m.Hash}
	}
	potcar, err := correction.NewInputMethodRule(p.InputSet.Name, methods, mode)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.Name, err)
	}

	anionOpts := []correction.AnionOption{}
	if opts.Classifier != nil {
		anionOpts = append(anionOpts, correction.WithClassifier(opts.Classifier))
	}
	if opts.Logger != nil {
		anionOpts = append(anionOpts, correction.WithAnionLogger(opts.Logger))
	}

	compatType := opts.CompatType
	if compatType == "" {
		compatType = correction.CompatAdvanced
	}
	hubbard, err := correction.NewHubbardRule(p.Name, compatType,
		correction.HubbardTable(p.InputSet.Hubbards),
		correction.HubbardTable(p.Advanced.UCorrections))
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.Name, err)
	}

	return []correction.Rule{
		potcar,
		correction.NewReferenceTableRule(p.Name, p.Advanced.CompoundEnergies),
		correction.NewAnionRule(p.Name, p.OxideCorrections, p.SulfideCorrections, opts.CorrectPeroxide, anionOpts...),
		hubbard,
	}, nil
}

// MaterialsProject builds the Materials Project mixing scheme.
func MaterialsProject(p *config.Preset, opts Options) (*compat.Compatibility, error) {
	return build(SourceMaterialsProject, p, opts, false)
}

// MIT builds the MIT mixing scheme.
func MIT(p *config.Preset, opts Options) (*compat.Compatibility, error) {
	return build(SourceMIT, p, opts, false)
}

// MITAqueous builds the MIT mixing scheme with aqueous corrections. The
// preset must define AqueousCompoundEnergies.
func MITAqueous(p *config.Preset, opts Options) (*compat.Compatibility, error) {
	if len(p.AqueousCompoundEnergies) == 0 {
		return nil, fmt.Errorf("preset %s: AqueousCompoundEnergies is required for the aqueous scheme", p.Name)
	}
	return build(SourceMITAqueous, p, opts, true)
}

// Aqueous builds the aqueous free-energy scheme. It never cleans entries:
// it runs on top of a solid-phase scheme's corrections.
func Aqueous(opts Options) *compat.Compatibility {
	return compat.NewAqueousCompatibility(engineOptions(opts, false)...)
}

func build(source string, p *config.Preset, opts Options, aqueous bool) (*compat.Compatibility, error) {
	rules, err := Rules(p, opts)
	if err != nil {
		return nil, err
	}
	if aqueous {
		rules = append(rules, correction.NewAqueousRule(p.Name, source, p.AqueousCompoundEnergies))
	}
	rs, err := compat.NewRuleSet(rules...)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.Name, err)
	}
	return compat.New(source, rs, engineOptions(opts, opts.Clean)...), nil
}

func engineOptions(opts Options, clean bool) []compat.Option {
	out := []compat.Option{compat.WithClean(clean)}
	if opts.Workers > 0 {
		out = append(out, compat.WithWorkers(opts.Workers))
	}
	if opts.Logger != nil {
		out = append(out, compat.WithLogger(opts.Logger))
	}
	return out
}

// Scheme names accepted by ByName.
const (
	SchemeMP         = "mp"
	SchemeMIT        = "mit"
	SchemeMITAqueous = "mit-aqueous"
	SchemeAqueous    = "aqueous"
)

// ByName builds the scheme with the given name. p is ignored by the
// aqueous free-energy scheme.
func ByName(name string, p *config.Preset, opts Options) (*compat.Compatibility, error) {
	switch name {
	case SchemeMP:
		return MaterialsProject(p, opts)
	case SchemeMIT:
		return MIT(p, opts)
	case SchemeMITAqueous:
		return MITAqueous(p, opts)
	case SchemeAqueous:
		return Aqueous(opts), nil
	}
	return nil, fmt.Errorf("unknown scheme %q (want %s, %s, %s or %s)",
		name, SchemeMP, SchemeMIT, SchemeMITAqueous, SchemeAqueous)
}
