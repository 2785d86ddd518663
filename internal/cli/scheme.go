package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ecompat/internal/compat"
	"github.com/roach88/ecompat/internal/config"
	"github.com/roach88/ecompat/internal/correction"
	"github.com/roach88/ecompat/internal/preset"
)

// SchemeOptions holds the flags that select and configure a scheme.
type SchemeOptions struct {
	Preset     string
	Scheme     string
	CompatType string
	NoPeroxide bool
	CheckHash  bool
	NoClean    bool
	Workers    int
}

func (o *SchemeOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Preset, "preset", "", `preset file (.yaml, .cue, .json) or builtin "mp"/"mit"`)
	cmd.Flags().StringVar(&o.Scheme, "scheme", preset.SchemeMP, "scheme (mp|mit|mit-aqueous|aqueous)")
	cmd.Flags().StringVar(&o.CompatType, "compat-type", string(correction.CompatAdvanced), "Hubbard U mixing (Advanced|GGA)")
	cmd.Flags().BoolVar(&o.NoPeroxide, "no-peroxide", false, "disable peroxide/superoxide/ozonide corrections")
	cmd.Flags().BoolVar(&o.CheckHash, "check-hash", false, "verify pseudopotential hashes instead of symbols")
	cmd.Flags().BoolVar(&o.NoClean, "no-clean", false, "keep corrections from previous runs")
	cmd.Flags().IntVar(&o.Workers, "workers", 1, "parallel workers for batch processing")
}

// builtScheme is a configured engine and the preset it came from.
type builtScheme struct {
	engine *compat.Compatibility
	preset *config.Preset
}

// presetName returns the preset name recorded with a run. The aqueous
// free-energy scheme uses no preset.
func (b builtScheme) presetName() string {
	if b.preset == nil {
		return ""
	}
	return b.preset.Name
}

// build loads the preset and builds the selected scheme. Failures are
// reported through formatter and returned as ExitErrors.
func (o *SchemeOptions) build(formatter *OutputFormatter, logger *slog.Logger) (builtScheme, error) {
	var p *config.Preset
	if o.Scheme != preset.SchemeAqueous {
		var err error
		p, err = loadPreset(o.Preset, o.Scheme)
		if err != nil {
			return builtScheme{}, failLoad(formatter, err)
		}
	}

	opts := preset.DefaultOptions()
	opts.CompatType = correction.CompatType(o.CompatType)
	opts.CorrectPeroxide = !o.NoPeroxide
	opts.CheckHash = o.CheckHash
	opts.Clean = !o.NoClean
	opts.Workers = o.Workers
	opts.Logger = logger

	engine, err := preset.ByName(o.Scheme, p, opts)
	if err != nil {
		return builtScheme{}, formatter.Fail(ExitCommandError, ErrCodeScheme, err)
	}
	logger.Debug("scheme built",
		"scheme", engine.Name(),
		"preset", builtScheme{preset: p}.presetName(),
		"clean", engine.Clean(),
	)
	return builtScheme{engine: engine, preset: p}, nil
}

// failLoad reports a load error, keeping its code when it has one.
func failLoad(formatter *OutputFormatter, err error) error {
	if le, ok := err.(*config.LoadError); ok {
		if le.Path != "" {
			return formatter.Fail(ExitCommandError, le.Code, fmt.Errorf("%s: %s", le.Path, le.Message))
		}
		return formatter.Fail(ExitCommandError, le.Code, errors.New(le.Message))
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
}

// componentNames lists a scheme's components in configuration order.
func componentNames(c *compat.Compatibility) []string {
	var names []string
	for _, comp := range c.Scheme().Components() {
		names = append(names, comp.Name)
	}
	return names
}

func describeScheme(c *compat.Compatibility) string {
	return fmt.Sprintf("%s (clean=%t)", c.Name(), c.Clean())
}
