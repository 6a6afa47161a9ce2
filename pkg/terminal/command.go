// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cosiner/argv"
	"github.com/spf13/pflag"

	"github.com/go-gouge/gouge/pkg/config"
	"github.com/go-gouge/gouge/pkg/docs"
	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
	"github.com/go-gouge/gouge/service/snapshot"
)

// callContext is the context a command is executed in.
type callContext struct {
	// Scope expressions are evaluated in.
	Scope api.EvalScope
	// Flags holds the options of the command, parsed from its declared
	// option specs. Nil for commands that take their argument string raw.
	Flags *pflag.FlagSet
	// Args holds the positional arguments of commands that declare them.
	Args []string
}

type cmdfunc func(t *Term, ctx callContext, args string) error

// argSpec describes one positional argument of a command. The type hint is
// informational, it is shown in the generated documentation but arguments
// are always passed to commands as strings.
type argSpec struct {
	name     string
	typeHint string
	help     string
	optional bool
	variadic bool
}

// optSpec describes one named option of a command. Boolean options take no
// value. Options declared here are parsed before the command runs.
type optSpec struct {
	long    string
	short   string
	boolean bool
	def     string
	hint    string
	help    string
}

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	args           []argSpec
	options        []optSpec
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// parsesArgs returns true if the argument string of the command should be
// tokenized and matched against its declared specs before the command
// runs. Commands that take a single free form expression receive the raw
// argument string instead, so that expressions do not need quoting.
func (c command) parsesArgs() bool {
	return len(c.options) > 0 || len(c.args) > 1
}

// usage returns the one line usage of the command, built from its declared
// options and positional arguments.
func (c command) usage() string {
	buf := new(strings.Builder)
	buf.WriteString(c.aliases[0])
	for _, opt := range c.options {
		buf.WriteString(" [")
		if opt.short != "" {
			fmt.Fprintf(buf, "-%s|", opt.short)
		}
		fmt.Fprintf(buf, "--%s", opt.long)
		if !opt.boolean {
			hint := opt.hint
			if hint == "" {
				hint = "value"
			}
			buf.WriteString(" " + hint)
		}
		buf.WriteString("]")
	}
	for _, arg := range c.args {
		switch {
		case arg.variadic:
			fmt.Fprintf(buf, " [%s ...]", arg.name)
		case arg.optional:
			fmt.Fprintf(buf, " [%s]", arg.name)
		default:
			fmt.Fprintf(buf, " <%s>", arg.name)
		}
	}
	return buf.String()
}

// parseArgs tokenizes the argument string honoring quoting and matches it
// against the declared specs of the command. Unknown options and arity
// mismatches are reported together with the usage line.
func (c command) parseArgs(args string) (*pflag.FlagSet, []string, error) {
	var words []string
	if args != "" {
		v, err := argv.Argv(args, func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		}, nil)
		if err != nil {
			return nil, nil, err
		}
		if len(v) != 1 {
			return nil, nil, fmt.Errorf("illegal argument list '%s'", args)
		}
		words = v[0]
	}
	fs := pflag.NewFlagSet(c.aliases[0], pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, opt := range c.options {
		if opt.boolean {
			fs.BoolP(opt.long, opt.short, opt.def == "true", opt.help)
		} else {
			fs.StringP(opt.long, opt.short, opt.def, opt.help)
		}
	}
	if err := fs.Parse(words); err != nil {
		return nil, nil, fmt.Errorf("%v, usage: %s", err, c.usage())
	}
	rest := fs.Args()
	min, max := c.arity()
	if len(rest) < min {
		return nil, nil, fmt.Errorf("not enough arguments, usage: %s", c.usage())
	}
	if max >= 0 && len(rest) > max {
		return nil, nil, fmt.Errorf("too many arguments, usage: %s", c.usage())
	}
	return fs, rest, nil
}

// arity returns the number of required positional arguments and the
// maximum number of positional arguments, -1 if the command is variadic.
func (c command) arity() (min, max int) {
	for _, arg := range c.args {
		if arg.variadic {
			return min, -1
		}
		max++
		if !arg.optional {
			min++
		}
	}
	return min, max
}

// Commands represents the commands for the gouge terminal process.
type Commands struct {
	cmds   []command
	client service.Client
}

// ShortLoadConfig loads less information, not following pointers
// and limiting struct fields loaded to 3.
var ShortLoadConfig = api.LoadConfig{MaxStringLen: 64, MaxStructFields: 3}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands(client service.Client) *Commands {
	c := &Commands{client: client}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, group: otherCmds, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for full documentation.`},
		{aliases: []string{"pjson", "pj"}, group: payloadCmds, cmdFn: pjsonCommand,
			args: []argSpec{
				{name: "expr", typeHint: "expression", help: "expression evaluating to the payload"},
			},
			options: []optSpec{
				{long: "compact", short: "c", boolean: true, help: "print the document on a single line"},
				{long: "sort-keys", short: "k", boolean: true, help: "sort object keys alphabetically"},
				{long: "raw", short: "r", boolean: true, help: "print the payload verbatim, without parsing it"},
				{long: "base64", short: "b", boolean: true, help: "base64-decode the payload before parsing it"},
				{long: "depth", short: "d", def: "0", hint: "n", help: "elide objects and arrays nested deeper than n levels"},
			},
			helpMsg: `Evaluates an expression and pretty-prints its payload as JSON.

	pjson [-c|--compact] [-k|--sort-keys] [-r|--raw] [-b|--base64] [-d|--depth n] <expr>

The expression must evaluate to a string, a byte slice or array, or a
pointer or interface wrapping one of those. The payload is parsed as JSON
and reprinted indented, with syntax colors if the terminal supports them.
Object keys keep the order they have in the document unless -k is
specified.

	-c	print the document on a single line
	-k	sort object keys alphabetically
	-r	print the payload verbatim, without parsing it
	-b	base64-decode the payload before parsing it
	-d n	elide objects and arrays nested deeper than n levels

The amount of payload loaded from the target is controlled by the
max-string-len and max-array-values configuration parameters. A payload
cut short by them is reported as truncated instead of being printed as
broken JSON.`},
		{aliases: []string{"print", "p"}, group: dataCmds, cmdFn: printVar, helpMsg: `Evaluate an expression.

	print <expression>

The value of the expression is loaded using the max-string-len,
max-array-values and max-variable-recurse configuration parameters and
printed as a Go-like literal. With the short-types configuration
parameter set, package paths in type names are reduced to the package
name.`},
		{aliases: []string{"whatis"}, group: dataCmds, cmdFn: whatisCommand, helpMsg: `Prints type of an expression.

	whatis <expression>

The short-types configuration parameter applies.`},
		{aliases: []string{"examinemem", "x"}, group: dataCmds, cmdFn: examineMemoryCmd, helpMsg: `Examine raw memory at the given address.

	examinemem [-fmt <format>] [-count <count>] [-size <size>] <address>

The address may be a literal number or an expression evaluating to a
pointer, a slice or an integer. Format is one of bin, oct, dec or hex
(the default). Count is the number of values to read (default 1) and
size is the width in bytes of each value (default 1); count*size must
not exceed 1000.

For example:

	x -fmt hex -count 20 -size 4 0xc00008af38
	x -fmt dec -count 8 resp.body`},
		{aliases: []string{"sources"}, group: sessionCmds, cmdFn: sources, helpMsg: `Print list of source files.

	sources [<regex>]

If regex is specified only the source files matching it will be returned.`},
		{aliases: []string{"funcs"}, group: sessionCmds, cmdFn: funcs, helpMsg: `Print list of functions.

	funcs [<regex>]

If regex is specified only the functions matching it will be returned.`},
		{aliases: []string{"goroutines", "grs"}, group: sessionCmds, cmdFn: goroutines, helpMsg: `List goroutines.

	goroutines [-u|-r|-s]

Prints one line per goroutine of the inspected process.

	-u	location the goroutine is stopped at in user code (default)
	-r	location the goroutine is stopped at, including runtime frames
	-s	location of the go statement that started the goroutine`},
		{aliases: []string{"breakpoints", "bp"}, group: sessionCmds, cmdFn: breakpoints, helpMsg: `Print out info for breakpoints set in the host debugger.

	breakpoints

Breakpoints are created and cleared by the host debugger, gouge only
lists them.`},
		{aliases: []string{"state"}, group: sessionCmds, cmdFn: stateCommand, helpMsg: `Print the state of the inspected process.

	state

Shows the stop the session is examining: target name and pid, the
current thread and the selected goroutine.`},
		{aliases: []string{"snapshot"}, group: snapshotCmds, cmdFn: snapshotCommand,
			args: []argSpec{
				{name: "file", typeHint: "path", help: "file to write the snapshot to"},
				{name: "expr", typeHint: "expression", help: "expressions to record", variadic: true},
			},
			helpMsg: `Record a snapshot of the current stop to a file.

	snapshot <file> [expr ...]

Captures the state of the session, the evaluation of the listed
expressions and the memory they reference into a YAML file. The file can
be examined later with "gouge examine <file>", without access to the
original process. Expressions are loaded with the same limits used by
pjson.`},
		{aliases: []string{"source"}, group: scriptCmds, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of gouge commands, or a Starlark script.

	source <path>
	source <path>.star
	source -

If path ends with the .star extension it is interpreted as a Starlark
script. See Documentation/cli/starlark.md for the syntax.

If path is a single '-' character an interactive Starlark interpreter
will start instead. Type 'exit' to exit.`},
		{aliases: []string{"config"}, group: otherCmds, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias of <command> or removes an alias.`},
		{aliases: []string{"docs"}, group: otherCmds, cmdFn: c.docsCommand,
			args: []argSpec{
				{name: "path", typeHint: "path", help: "file to write the reference to"},
			},
			helpMsg: `Writes the command reference to a markdown file.

	docs [-post] <path>

With -post the reference is wrapped in blog post front matter, ready to
be published.`},
		{aliases: []string{"transcript"}, group: otherCmds, cmdFn: transcript, helpMsg: `Appends command output to a file.

	transcript [-t] [-x] <output file>
	transcript -off

Output of gouge's commands is appended to the specified output file. If
'-t' is specified and the output file exists it is truncated. If '-x' is
specified output to stdout is suppressed instead.

Using the -off option disables the transcript.`},
		{aliases: []string{"exit", "quit", "q"}, group: otherCmds, cmdFn: exitCommand, helpMsg: `Exit gouge.

	exit

The inspected process is left exactly as it was.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			c.cmds[i].helpMsg = helpMsg
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, group: scriptCmds, cmdFn: cf, helpMsg: helpMsg})
}

// Find will look up the command for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
// If the command is an empty string it will replay the last command.
func (c *Commands) Find(cmdstr string) command {
	// If <enter> use last command, if there was one.
	if cmdstr == "" {
		return command{aliases: []string{"nullcmd"}, cmdFn: nullCommand}
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v
		}
	}

	return command{aliases: []string{"nocmd"}, cmdFn: noCmdAvailable}
}

// CallWithContext takes a command and a context that command should be executed in.
func (c *Commands) CallWithContext(cmdstr string, t *Term, ctx callContext) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	cmd := c.Find(cmdname)
	if cmd.parsesArgs() {
		fs, rest, err := cmd.parseArgs(args)
		if err != nil {
			return err
		}
		ctx.Flags, ctx.Args = fs, rest
	}
	return cmd.cmdFn(t, ctx, args)
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	ctx := callContext{Scope: api.EvalScope{GoroutineID: -1, Frame: 0, DeferredCall: 0}}
	return c.CallWithContext(cmdstr, t, ctx)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var noCmdError = errors.New("command not available")

func noCmdAvailable(t *Term, ctx callContext, args string) error {
	return noCmdError
}

func nullCommand(t *Term, ctx callContext, args string) error {
	return nil
}

func (c *Commands) help(t *Term, ctx callContext, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return noCmdError
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func pjsonCommand(t *Term, ctx callContext, args string) error {
	expr := ctx.Args[0]

	v, err := t.client.EvalVariable(ctx.Scope, expr, t.payloadLoadConfig())
	if err != nil {
		return err
	}

	var payload []byte
	if decode, _ := ctx.Flags.GetBool("base64"); decode {
		payload, err = v.DecodedPayload()
	} else {
		payload, err = v.PayloadBytes()
	}
	if err != nil {
		return err
	}

	if raw, _ := ctx.Flags.GetBool("raw"); raw {
		t.stdout.Write(payload)
		fmt.Fprintln(t.stdout)
		return nil
	}

	indent := t.conf.Indent
	if indent == "" {
		indent = "  "
	}
	if compact, _ := ctx.Flags.GetBool("compact"); compact {
		indent = ""
	}
	sortKeys := t.conf.SortKeys
	if k, _ := ctx.Flags.GetBool("sort-keys"); k {
		sortKeys = true
	}
	d, _ := ctx.Flags.GetString("depth")
	maxDepth, err := strconv.Atoi(d)
	if err != nil {
		return fmt.Errorf("invalid depth %q", d)
	}

	if err := t.stdout.ColorizePrint(payload, indent, sortKeys, maxDepth); err != nil {
		return fmt.Errorf("payload of %s is not valid JSON: %v", expr, err)
	}
	fmt.Fprintln(t.stdout)
	return nil
}

func printVar(t *Term, ctx callContext, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("not enough arguments")
	}
	val, err := t.client.EvalVariable(ctx.Scope, args, t.loadConfig())
	if err != nil {
		return err
	}

	fmt.Fprintln(t.stdout, val.PrettyString(api.PrettyNewlines|t.prettyFlags(), ""))
	return nil
}

func whatisCommand(t *Term, ctx callContext, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("not enough arguments")
	}
	typ, err := t.client.DescribeType(ctx.Scope, args)
	if err != nil {
		return err
	}
	if t.conf != nil && t.conf.ShortenTypes {
		typ = api.ShortenType(typ)
	}
	fmt.Fprintln(t.stdout, typ)
	return nil
}

func examineMemoryCmd(t *Term, ctx callContext, args string) error {
	v := strings.FieldsFunc(args, func(c rune) bool {
		return c == ' '
	})

	var (
		address uint64
		err     error
		ok      bool
	)

	// Default value
	priFmt := byte('x')
	count := 1
	size := 1

	for i := 0; i < len(v); i++ {
		switch v[i] {
		case "-fmt":
			i++
			if i >= len(v) {
				return fmt.Errorf("expected argument after -fmt")
			}
			fmtMapToPriFmt := map[string]byte{
				"oct":         'o',
				"octal":       'o',
				"hex":         'x',
				"hexadecimal": 'x',
				"dec":         'd',
				"decimal":     'd',
				"bin":         'b',
				"binary":      'b',
			}
			priFmt, ok = fmtMapToPriFmt[v[i]]
			if !ok {
				return fmt.Errorf("%q is not a valid format", v[i])
			}
		case "-count", "-len":
			i++
			if i >= len(v) {
				return fmt.Errorf("expected argument after -count/-len")
			}
			var err error
			count, err = strconv.Atoi(v[i])
			if err != nil || count <= 0 {
				return fmt.Errorf("count/len must be a positive integer")
			}
		case "-size":
			i++
			if i >= len(v) {
				return fmt.Errorf("expected argument after -size")
			}
			var err error
			size, err = strconv.Atoi(v[i])
			if err != nil || size <= 0 || size > 8 {
				return fmt.Errorf("size must be a positive integer (<=8)")
			}
		default:
			if i != len(v)-1 {
				return fmt.Errorf("unknown option %q", v[i])
			}
			address, err = strconv.ParseUint(v[i], 0, 64)
			if err != nil {
				address, err = examineMemoryExpr(t, ctx, v[i])
				if err != nil {
					return err
				}
			}
		}
	}

	// TODO, maybe configured by user.
	if count*size > 1000 {
		return fmt.Errorf("read memory range (count*size) must be less than or equal to 1000 bytes")
	}

	if address == 0 {
		return fmt.Errorf("no address specified")
	}

	memArea, isLittleEndian, err := t.client.ExamineMemory(address, count*size)
	if err != nil {
		return err
	}
	fmt.Fprint(t.stdout, api.PrettyExamineMemory(address, memArea, isLittleEndian, priFmt, size))
	return nil
}

// examineMemoryExpr evaluates expr and interprets the result as a memory
// address.
func examineMemoryExpr(t *Term, ctx callContext, expr string) (uint64, error) {
	val, err := t.client.EvalVariable(ctx.Scope, expr, ShortLoadConfig)
	if err != nil {
		return 0, err
	}
	switch val.Kind {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Slice:
		if val.Base != 0 {
			return val.Base, nil
		}
		if len(val.Children) == 1 {
			return val.Children[0].Addr, nil
		}
	case reflect.Array:
		return val.Addr, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.ParseUint(val.Value, 0, 64)
	}
	return 0, fmt.Errorf("can not convert %q to address", expr)
}

func printSortedStrings(t *Term, v []string, err error) error {
	if err != nil {
		return err
	}
	sort.Strings(v)
	for _, d := range v {
		fmt.Fprintln(t.stdout, d)
	}
	return nil
}

func sources(t *Term, ctx callContext, args string) error {
	srcs, err := t.client.ListSources(args)
	return printSortedStrings(t, srcs, err)
}

func funcs(t *Term, ctx callContext, args string) error {
	fns, err := t.client.ListFunctions(args)
	return printSortedStrings(t, fns, err)
}

type byGoroutineID []api.Goroutine

func (a byGoroutineID) Len() int           { return len(a) }
func (a byGoroutineID) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byGoroutineID) Less(i, j int) bool { return a[i].ID < a[j].ID }

func goroutines(t *Term, ctx callContext, argstr string) error {
	args := strings.Split(argstr, " ")
	fgl := fglUserCurrent

	for _, arg := range args {
		switch arg {
		case "-u":
			fgl = fglUserCurrent
		case "-r":
			fgl = fglRuntimeCurrent
		case "-s":
			fgl = fglStart
		case "":
			// nothing to do
		default:
			return fmt.Errorf("wrong argument: '%s'", arg)
		}
	}

	state, err := t.client.GetState(false)
	if err != nil {
		return err
	}
	gs, err := t.client.ListGoroutines()
	if err != nil {
		return err
	}
	sort.Sort(byGoroutineID(gs))
	for i := range gs {
		prefix := "  "
		if state.SelectedGoroutine != nil && gs[i].ID == state.SelectedGoroutine.ID {
			prefix = "* "
		}
		fmt.Fprintf(t.stdout, "%sGoroutine %s\n", prefix, formatGoroutine(&gs[i], fgl))
	}
	fmt.Fprintf(t.stdout, "[%d goroutines]\n", len(gs))
	return nil
}

type formatGoroutineLoc int

const (
	fglRuntimeCurrent = formatGoroutineLoc(iota)
	fglUserCurrent
	fglStart
)

func formatGoroutine(g *api.Goroutine, fgl formatGoroutineLoc) string {
	if g == nil {
		return "<nil>"
	}
	var locname string
	var loc api.Location
	switch fgl {
	case fglRuntimeCurrent:
		locname = "Runtime"
		loc = g.CurrentLoc
	case fglUserCurrent:
		locname = "User"
		loc = g.UserCurrentLoc
	case fglStart:
		locname = "Start"
		loc = g.StartLoc
	}

	buf := new(strings.Builder)
	fmt.Fprintf(buf, "%d - %s: %s", g.ID, locname, loc.String())
	if g.ThreadID != 0 {
		fmt.Fprintf(buf, " (thread %d)", g.ThreadID)
	}
	return buf.String()
}

// byID sorts breakpoints by ID.
type byID []api.Breakpoint

func (a byID) Len() int           { return len(a) }
func (a byID) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byID) Less(i, j int) bool { return a[i].ID < a[j].ID }

func breakpoints(t *Term, ctx callContext, args string) error {
	breakPoints, err := t.client.ListBreakpoints()
	if err != nil {
		return err
	}
	sort.Sort(byID(breakPoints))
	for i := range breakPoints {
		bp := &breakPoints[i]
		enabled := ""
		if bp.Disabled {
			enabled = " (disabled)"
		}
		fmt.Fprintf(t.stdout, "%s at %s (%d)%s\n", formatBreakpointName(bp, true), formatBreakpointLocation(bp), bp.TotalHitCount, enabled)
	}
	if len(breakPoints) == 0 {
		fmt.Fprintln(t.stdout, "(no breakpoints)")
	}
	return nil
}

func formatBreakpointName(bp *api.Breakpoint, upcase bool) string {
	thing := "breakpoint"
	if upcase {
		thing = "Breakpoint"
	}
	id := bp.Name
	if id == "" {
		id = strconv.Itoa(bp.ID)
	}
	return fmt.Sprintf("%s %s", thing, id)
}

func formatBreakpointLocation(bp *api.Breakpoint) string {
	if bp.FunctionName != "" {
		return fmt.Sprintf("%#v for %s() %s:%d", bp.Addr, bp.FunctionName, bp.File, bp.Line)
	}
	return fmt.Sprintf("%#v for %s:%d", bp.Addr, bp.File, bp.Line)
}

func stateCommand(t *Term, ctx callContext, args string) error {
	state, err := t.client.GetState(true)
	if err != nil {
		return err
	}
	printState(t, state)
	return nil
}

func printState(t *Term, state *api.DebuggerState) {
	if state.Exited {
		fmt.Fprintf(t.stdout, "Process %d has exited with status %d\n", t.client.ProcessPid(), state.ExitStatus)
		return
	}
	if state.Running {
		fmt.Fprintln(t.stdout, "Process is running, no state to examine")
		return
	}
	fmt.Fprintf(t.stdout, "Target %s (pid %d), stop #%d\n", t.client.TargetName(), t.client.ProcessPid(), state.StateID)
	if state.When != "" {
		fmt.Fprintf(t.stdout, "Stopped at: %s\n", state.When)
	}
	if th := state.CurrentThread; th != nil {
		fname := "???"
		if th.Function != nil {
			fname = th.Function.Name
		}
		fmt.Fprintf(t.stdout, "Thread %d at %s:%d %s (%#v)\n", th.ID, th.File, th.Line, fname, th.PC)
	}
	if g := state.SelectedGoroutine; g != nil {
		fmt.Fprintf(t.stdout, "Goroutine %s\n", formatGoroutine(g, fglUserCurrent))
	}
}

func snapshotCommand(t *Term, ctx callContext, args string) error {
	path := ctx.Args[0]
	exprs := ctx.Args[1:]

	snap, err := snapshot.Record(t.client, exprs, t.payloadLoadConfig())
	if err != nil {
		return err
	}
	if err := snapshot.WriteFile(path, snap); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Snapshot %s written to %s (%d variables, %d memory ranges)\n", snap.ID, path, len(snap.Variables), len(snap.Memory))
	return nil
}

func (c *Commands) sourceCommand(t *Term, ctx callContext, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("wrong number of arguments: source <filename>")
	}

	if filepath.Ext(args) == ".star" {
		_, err := t.starlarkEnv.Execute(args, nil, "main", nil)
		return err
	}

	if args == "-" {
		return t.starlarkEnv.REPL()
	}

	return c.executeFile(t, args)
}

func (c *Commands) docsCommand(t *Term, ctx callContext, args string) error {
	v := config.Split2PartsBySpace(args)
	asPost := false
	path := ""
	switch {
	case len(v) == 2 && v[0] == "-post":
		asPost = true
		path = v[1]
	case len(v) == 1:
		path = v[0]
	}
	if path == "" || strings.HasPrefix(path, "-") {
		return fmt.Errorf("wrong number of arguments: docs [-post] <path>")
	}

	var buf bytes.Buffer
	c.WriteMarkdown(&buf)

	out := buf.Bytes()
	if asPost {
		post := &docs.Post{
			Layout:     "post",
			Title:      "Gouge command reference",
			Date:       time.Now(),
			Categories: []string{"gouge"},
			Body:       buf.String(),
		}
		var err error
		out, err = post.Marshal()
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Written %s\n", path)
	return nil
}

func transcript(t *Term, ctx callContext, args string) error {
	argv := strings.SplitN(args, " ", -1)
	truncate := false
	fileOnly := false
	disable := false
	filename := ""
	for _, arg := range argv {
		switch arg {
		case "-t":
			truncate = true
		case "-x":
			fileOnly = true
		case "-off":
			disable = true
		default:
			if filename != "" || strings.HasPrefix(arg, "-") {
				return fmt.Errorf("unrecognized option %q", arg)
			}
			filename = arg
		}
	}

	if disable {
		if filename != "" {
			return errors.New("-off option specified with an output file")
		}
		return t.stdout.CloseTranscript()
	}

	if filename == "" {
		return errors.New("no output file specified")
	}

	fileFlags := os.O_APPEND | os.O_WRONLY | os.O_CREATE
	if truncate {
		fileFlags |= os.O_TRUNC
	}
	fh, err := os.OpenFile(filename, fileFlags, 0660)
	if err != nil {
		return err
	}

	t.stdout.TranscribeTo(fh, fileOnly)
	return nil
}

// ExitRequestError is returned when the user
// exits gouge.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, ctx callContext, args string) error {
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
