package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

type FlagGroup struct {
	Name                 string
	Description          string
	Flags                []FlagGroupEntry
	GroupType            string
	AvailableFlagsHeader string
}

// FlagGroupEntry is one member of a family of switches sharing a prefix,
// such as -Wshadow and -Wno-shadow.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	flagGroups []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

// Args returns the positional arguments left after Parse.
func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, strings.Join(value, ","), expectedType)
}

// AddFlagGroup defines <prefix><name> and <prefix>no-<name> for every entry.
func (f *FlagSet) AddFlagGroup(name, description, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name:                 name,
		Description:          description,
		Flags:                entries,
		GroupType:            groupType,
		AvailableFlagsHeader: availableFlagsHeader,
	})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// Parse accepts --name, --name=value, -name (for multi-letter names such as
// -Wshadow), -x value and -xvalue. Everything after "--" is positional.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
			continue
		}

		body := strings.TrimPrefix(arg[1:], "-")
		name, value, hasValue := strings.Cut(body, "=")
		flag, ok := f.flags[name]
		if !ok && !strings.HasPrefix(arg, "--") {
			// -xvalue
			flag, ok = f.shorthands[body[:1]]
			name, value = body[:1], body[1:]
			hasValue = value != ""
			if ok {
				if _, isBool := flag.Value.(*boolValue); isBool && hasValue {
					return fmt.Errorf("unknown flag: %s", arg)
				}
			}
		}
		if !ok {
			return fmt.Errorf("unknown flag: %s", arg)
		}

		if !hasValue {
			if _, isBool := flag.Value.(*boolValue); isBool {
				value = ""
			} else {
				if i+1 >= len(arguments) {
					return fmt.Errorf("flag needs an argument: -%s", name)
				}
				i++
				value = arguments[i]
			}
		}
		if err := flag.Value.Set(value); err != nil {
			return fmt.Errorf("-%s: %w", name, err)
		}
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		fmt.Fprintf(a.Stderr, "Usage: %s %s\nRun '%s --help' for all available options and flags.\n", a.Name, a.Synopsis, a.Name)
		return err
	}
	if help {
		a.writeHelpPage(a.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) writeHelpPage(w io.Writer) {
	var sb strings.Builder
	width := terminalWidth(w)
	const indent1, indent2 = "    ", "        "

	if len(a.Authors) > 0 {
		fmt.Fprintf(&sb, "\n%sCopyright (c) %d: %s and contributors\n", indent1, a.Since, strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent1, a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indent1, indent2, a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indent1)
		for _, line := range wrapText(a.Description, width-len(indent2)) {
			fmt.Fprintf(&sb, "%s%s\n", indent2, line)
		}
	}

	var options []*Flag
	grouped := make(map[string]bool)
	for _, g := range a.FlagSet.flagGroups {
		for _, e := range g.Flags {
			grouped[e.Prefix+e.Name], grouped[e.Prefix+"no-"+e.Name] = true, true
		}
	}
	leftWidth := 0
	for _, flag := range a.FlagSet.flags {
		if grouped[flag.Name] {
			continue
		}
		options = append(options, flag)
		leftWidth = max(leftWidth, len(formatFlag(flag)))
	}
	sort.Slice(options, func(i, j int) bool { return options[i].Name < options[j].Name })

	fmt.Fprintf(&sb, "\n%sOptions\n", indent1)
	for _, flag := range options {
		right := ""
		if _, isBool := flag.Value.(*boolValue); !isBool && flag.DefValue != "" {
			right = fmt.Sprintf(" |%s|", flag.DefValue)
		}
		writeEntry(&sb, indent2, leftWidth, width, formatFlag(flag), flag.Usage+right)
	}

	for _, g := range a.FlagSet.flagGroups {
		if len(g.Flags) == 0 {
			continue
		}
		prefix := g.Flags[0].Prefix
		fmt.Fprintf(&sb, "\n%s%s\n", indent1, g.Name)
		writeEntry(&sb, indent2, leftWidth, width, fmt.Sprintf("-%s<%s>", prefix, g.GroupType), "Enable a specific "+g.GroupType)
		writeEntry(&sb, indent2, leftWidth, width, fmt.Sprintf("-%sno-<%s>", prefix, g.GroupType), "Disable a specific "+g.GroupType)
		if g.AvailableFlagsHeader != "" {
			fmt.Fprintf(&sb, "%s%s\n", indent1, g.AvailableFlagsHeader)
		}
		entries := append([]FlagGroupEntry(nil), g.Flags...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			state := "|-|"
			if e.Enabled != nil && *e.Enabled {
				state = "|x|"
			}
			writeEntry(&sb, indent2, leftWidth, width, e.Name, e.Usage+" "+state)
		}
	}
	fmt.Fprint(w, sb.String())
}

func formatFlag(flag *Flag) string {
	_, isBool := flag.Value.(*boolValue)
	var sb strings.Builder
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !isBool && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func writeEntry(sb *strings.Builder, indent string, leftWidth, width int, left, usage string) {
	leftWidth = max(leftWidth, len(left))
	lines := wrapText(usage, max(width-len(indent)-leftWidth-1, 10))
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(sb, "%s%-*s %s\n", indent, leftWidth, left, lines[0])
	pad := strings.Repeat(" ", leftWidth+1)
	for _, line := range lines[1:] {
		fmt.Fprintf(sb, "%s%s%s\n", indent, pad, line)
	}
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 80
	}
	return max(width, 20)
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		return words
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
