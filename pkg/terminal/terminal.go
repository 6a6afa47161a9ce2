package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/mattn/go-isatty"

	"github.com/go-gouge/gouge/pkg/config"
	"github.com/go-gouge/gouge/pkg/terminal/colorize"
	"github.com/go-gouge/gouge/pkg/terminal/starbind"
	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
)

const (
	historyFile                 string = ".gouge_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiBlack     = 30
	ansiRed       = 31
	ansiGreen     = 32
	ansiYellow    = 33
	ansiBlue      = 34
	ansiMagenta   = 35
	ansiCyan      = 36
	ansiWhite     = 37
	ansiBrBlack   = 90
	ansiBrRed     = 91
	ansiBrGreen   = 92
	ansiBrYellow  = 93
	ansiBrBlue    = 94
	ansiBrMagenta = 95
	ansiBrCyan    = 96
	ansiBrWhite   = 97
)

// Term represents the terminal running gouge.
type Term struct {
	client      service.Client
	conf        *config.Config
	prompt      string
	line        *liner.State
	cmds        *Commands
	dumb        bool
	stdout      *transcriptWriter
	starlarkEnv *starbind.Env

	// InitFile is a file with commands to execute when the terminal starts.
	InitFile string

	cmdCompls    *trie.Trie
	configCompls *trie.Trie
	funcCompls   *trie.Trie
}

// New returns a new Term.
func New(client service.Client, conf *config.Config) *Term {
	cmds := DebugCommands(client)
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}

	t := &Term{
		client: client,
		conf:   conf,
		prompt: "(gouge) ",
		line:   liner.NewLiner(),
		cmds:   cmds,
		stdout: &transcriptWriter{pw: &pagingWriter{w: getColorableWriter()}},
	}

	t.dumb = strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdout.Fd())
	if t.dumb {
		t.stdout.pw.w = os.Stdout
	} else {
		t.stdout.colorEscapes = map[colorize.Style]string{
			colorize.NormalStyle:  terminalResetEscapeCode,
			colorize.KeyStyle:     fmt.Sprintf(terminalHighlightEscapeCode, sanitizeColor(conf.JSONKeyColor, ansiBlue)),
			colorize.StringStyle:  fmt.Sprintf(terminalHighlightEscapeCode, sanitizeColor(conf.JSONStringColor, ansiGreen)),
			colorize.NumberStyle:  fmt.Sprintf(terminalHighlightEscapeCode, sanitizeColor(conf.JSONNumberColor, ansiCyan)),
			colorize.LiteralStyle: fmt.Sprintf(terminalHighlightEscapeCode, sanitizeColor(conf.JSONNumberColor, ansiCyan)),
		}
	}

	t.starlarkEnv = starbind.New(starlarkContext{t}, t.stdout)
	return t
}

// sanitizeColor returns code if it is a base or bright ANSI color code,
// def otherwise.
func sanitizeColor(code, def int) int {
	if (code > ansiWhite && code < ansiBrBlack) || code < ansiBlack || code > ansiBrWhite {
		return def
	}
	return code
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// sigintGuard reminds the user that gouge holds no power over the
// inspected process. Stopping and resuming belong to the host debugger.
func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		fmt.Printf("received SIGINT, the inspected process is unaffected (type 'exit' to leave)\n")
	}
}

// Run begins running gouge in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	go t.sigintGuard(ch)

	t.setupCompleter()

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}

	if t.client != nil {
		t.Println("Inspecting ", fmt.Sprintf("%s (pid %d)", t.client.TargetName(), t.client.ProcessPid()))
	}
	fmt.Println("Type 'help' for list of commands.")

	if t.conf.CommandPath != "" {
		if err := t.starlarkEnv.LoadDirectory(t.conf.CommandPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading custom commands from %q: %v\n", t.conf.CommandPath, err)
		}
	}

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	var lastCmd string

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Println("exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}

		if strings.TrimSpace(cmdstr) == "" {
			cmdstr = lastCmd
		}

		lastCmd = cmdstr

		t.stdout.Echo(t.prompt + cmdstr + "\n")
		t.stdout.pw.PageMaybe(nil)

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}

		t.stdout.Flush()
		t.stdout.pw.Reset()
	}
}

// setupCompleter primes tab completion. Command names complete at the
// start of the line, configuration parameters complete after "config" and
// function names complete everywhere else. Function names are fetched
// from the session on first use.
func (t *Term) setupCompleter() {
	t.cmdCompls = trie.New()
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			t.cmdCompls.Add(alias, nil)
		}
	}
	t.configCompls = trie.New()
	it := config.IterateConfiguration(t.conf, "yaml")
	for it.Next() {
		name, _ := it.Field()
		if name != "" {
			t.configCompls.Add(name, nil)
		}
	}
	t.line.SetCompleter(t.complete)
}

func (t *Term) complete(line string) (c []string) {
	if !strings.Contains(strings.TrimSpace(line), " ") {
		return t.cmdCompls.PrefixSearch(strings.ToLower(line))
	}
	idx := strings.LastIndex(line, " ")
	prefix, word := line[:idx+1], line[idx+1:]
	if word == "" {
		return nil
	}

	var compls []string
	switch strings.SplitN(strings.TrimSpace(line), " ", 2)[0] {
	case "help", "h":
		compls = t.cmdCompls.PrefixSearch(strings.ToLower(word))
	case "config":
		compls = t.configCompls.PrefixSearch(word)
	default:
		if t.funcCompls == nil {
			if t.client == nil {
				return nil
			}
			fns, err := t.client.ListFunctions("")
			if err != nil {
				return nil
			}
			t.funcCompls = trie.New()
			for _, fn := range fns {
				t.funcCompls.Add(fn, nil)
			}
		}
		compls = t.funcCompls.PrefixSearch(word)
	}
	for _, compl := range compls {
		c = append(c, prefix+compl)
	}
	return c
}

// Println prints str to the terminal, with prefix highlighted in the
// accent color.
func (t *Term) Println(prefix, str string) {
	if !t.dumb {
		code := sanitizeColor(t.conf.JSONKeyColor, ansiBlue)
		prefix = fmt.Sprintf(terminalHighlightEscapeCode, code) + prefix + terminalResetEscapeCode
	}
	fmt.Fprintf(t.stdout, "%s%s\n", prefix, str)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
	} else {
		if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Println("readline history error:", err)
			}
			f.Close()
		}
	}

	if t.client != nil {
		if err := t.client.Disconnect(); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

// loadConfig returns an api.LoadConfig with the parameters specified in
// the configuration file.
func (t *Term) loadConfig() api.LoadConfig {
	r := api.DefaultLoadConfig

	if t.conf != nil && t.conf.MaxStringLen != nil {
		r.MaxStringLen = *t.conf.MaxStringLen
	}
	if t.conf != nil && t.conf.MaxArrayValues != nil {
		r.MaxArrayValues = *t.conf.MaxArrayValues
	}
	if t.conf != nil && t.conf.MaxVariableRecurse != nil {
		r.MaxVariableRecurse = *t.conf.MaxVariableRecurse
	}

	return r
}

// prettyFlags returns the value rendering options selected in the
// configuration file.
func (t *Term) prettyFlags() api.PrettyFlags {
	if t.conf != nil && t.conf.ShortenTypes {
		return api.PrettyShortenType
	}
	return 0
}

// payloadLoadConfig returns the api.LoadConfig used to load payloads. It
// follows pointers deeply and, unless configured otherwise, loads whole
// strings.
func (t *Term) payloadLoadConfig() api.LoadConfig {
	r := api.PayloadLoadConfig

	if t.conf != nil && t.conf.MaxStringLen != nil {
		r.MaxStringLen = *t.conf.MaxStringLen
	}
	if t.conf != nil && t.conf.MaxArrayValues != nil {
		r.MaxArrayValues = *t.conf.MaxArrayValues
	}

	return r
}
