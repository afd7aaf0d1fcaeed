package config

import (
	"fmt"
	"strings"

	"github.com/mxrlang/mxrc/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatVerify Feature = iota
	FeatFold
	FeatIsoc99Scanf
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnShadow
	WarnImplicitReturn
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	BackendName    string
	BackendTarget  string
	GOOS           string
	GOARCH         string
	WordSize       int
	StackAlignment int
	PrintSymbol    string
	ScanSymbol     string
	LinkerArgs     []string
}

func NewConfig() *Config {
	cfg := &Config{
		FeatureMap:     make(map[string]Feature),
		WarningMap:     make(map[string]Warning),
		BackendName:    "qbe",
		WordSize:       8,
		StackAlignment: 16,
		PrintSymbol:    "printf",
		ScanSymbol:     "scanf",
	}

	features := map[Feature]Info{
		FeatVerify:      {"verify", true, "Check the block structure of the IR after lowering."},
		FeatFold:        {"fold", true, "Fold operations whose operands are all constants."},
		FeatIsoc99Scanf: {"isoc99-scanf", false, "Bind scan statements to glibc's '__isoc99_scanf'."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that follow a return."},
		WarnShadow:          {"shadow", false, "Warn when a local variable shadows a function."},
		WarnImplicitReturn:  {"implicit-return", false, "Warn when a function falls off its end."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget configures the compiler for a backend and target ABI given as
// "backend" or "backend/target", e.g. "qbe", "qbe/arm64" or "llvm".
func (c *Config) SetTarget(goos, goarch, target string) error {
	c.GOOS, c.GOARCH = goos, goarch

	backend, abi, _ := strings.Cut(target, "/")
	switch backend {
	case "", "qbe":
		c.BackendName = "qbe"
	case "llvm":
		c.BackendName = "llvm"
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'qbe', 'llvm'", backend)
	}

	if abi == "" {
		abi = libqbe.DefaultTarget(goos, goarch)
	}
	c.BackendTarget = abi

	switch abi {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.StackAlignment = 8, 16
	case "arm", "rv32":
		c.WordSize, c.StackAlignment = 4, 8
	default:
		return fmt.Errorf("unrecognized target '%s'", abi)
	}
	return nil
}

// ScanFunc returns the symbol scan statements are bound to.
func (c *Config) ScanFunc() string {
	if c.IsFeatureEnabled(FeatIsoc99Scanf) {
		return "__isoc99_scanf"
	}
	return c.ScanSymbol
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag applies a single -W<name>, -Wno-<name>, -F<name> or -Fno-<name>
// switch. -Wall and -Wno-all toggle every warning.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	if len(trimmed) < 2 || (trimmed[0] != 'W' && trimmed[0] != 'F') {
		return fmt.Errorf("unknown switch '%s'", flag)
	}
	isWarning := trimmed[0] == 'W'
	name, isNo := strings.CutPrefix(trimmed[1:], "no-")
	enable := !isNo

	if isWarning && name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// SetupFlagGroups registers -W and -F switches for every warning and feature
// on fs. The returned entries are indexed by Warning and Feature, with -Wall
// last among the warnings; pass them to ApplyFlagGroups after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	warnings = make([]cli.FlagGroupEntry, WarnCount+1)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warnings[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: new(bool), Disabled: new(bool)}
	}
	warnings[WarnCount] = cli.FlagGroupEntry{Name: "all", Prefix: "W", Usage: "Enable every warning.", Enabled: new(bool), Disabled: new(bool)}
	features = make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		features[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: new(bool), Disabled: new(bool)}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warnings:", warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable compiler features", "feature flag", "Available Features:", features)
	return warnings, features
}

// ApplyFlagGroups copies parsed -W/-F switches into c. Disabling wins over
// enabling when both are given.
func (c *Config) ApplyFlagGroups(warnings, features []cli.FlagGroupEntry) {
	// Specific switches override -Wall and -Wno-all.
	if all := warnings[WarnCount]; *all.Enabled || *all.Disabled {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, !*all.Disabled)
		}
	}
	for i, entry := range warnings[:WarnCount] {
		if *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range features {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
