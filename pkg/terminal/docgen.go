package terminal

import (
	"fmt"
	"io"
	"strings"
)

func replaceDocPath(s string) string {
	const docpath = "Documentation/"

	i0 := 0

	for {
		start := strings.Index(s[i0:], docpath)
		if start < 0 {
			return s
		}
		start += i0
		if start-1 >= 0 && s[start-1] != ' ' {
			i0 = start + len(docpath) + 1
			continue
		}
		var end int
		for end = start + len(docpath); end < len(s); end++ {
			if s[end] == ' ' {
				break
			}
		}
		// If we captured a trailing dot, backtrack.
		if s[end-1] == '.' {
			end--
		}

		text := s[start:end]
		s = s[:start] + fmt.Sprintf("[%s](//github.com/go-gouge/gouge/tree/master/%s)", text, text) + s[end:]
		i0 = end + 1
	}
}

// WriteMarkdown writes the command reference to w. The output is what the
// docs command and "gouge docs" emit.
func (commands *Commands) WriteMarkdown(w io.Writer) {
	fmt.Fprint(w, "# Configuration and Command History\n\n")
	fmt.Fprint(w, "If `$XDG_CONFIG_HOME` is set, then configuration and command history files are located in `$XDG_CONFIG_HOME/gouge`. ")
	fmt.Fprint(w, "Otherwise, they are located in `$HOME/.config/gouge` on Linux and `$HOME/.gouge` on other systems.\n\n")
	fmt.Fprint(w, "The configuration file `config.yml` contains all the configurable options and their default values. ")
	fmt.Fprint(w, "The command history is stored in `.gouge_history`.\n\n")

	fmt.Fprint(w, "# Commands\n")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(w, "\n## %s\n\n", cgd.description)

		fmt.Fprint(w, "Command | Description\n")
		fmt.Fprint(w, "--------|------------\n")
		for _, cmd := range commands.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			fmt.Fprintf(w, "[%s](#%s) | %s\n", cmd.aliases[0], cmd.aliases[0], h)
		}
		fmt.Fprint(w, "\n")

	}

	for _, cmd := range commands.cmds {
		fmt.Fprintf(w, "## %s\n%s\n\n", cmd.aliases[0], replaceDocPath(cmd.helpMsg))
		if len(cmd.args) > 0 {
			fmt.Fprint(w, "Argument | Type | Description\n")
			fmt.Fprint(w, "---------|------|------------\n")
			for _, arg := range cmd.args {
				name := arg.name
				switch {
				case arg.variadic:
					name += " ..."
				case arg.optional:
					name = "[" + name + "]"
				}
				fmt.Fprintf(w, "`%s` | %s | %s\n", name, arg.typeHint, arg.help)
			}
			fmt.Fprint(w, "\n")
		}
		if len(cmd.options) > 0 {
			fmt.Fprint(w, "Option | Description\n")
			fmt.Fprint(w, "-------|------------\n")
			for _, opt := range cmd.options {
				names := "--" + opt.long
				if opt.short != "" {
					names = "-" + opt.short + ", " + names
				}
				if !opt.boolean {
					hint := opt.hint
					if hint == "" {
						hint = "value"
					}
					names += " " + hint
				}
				fmt.Fprintf(w, "`%s` | %s\n", names, opt.help)
			}
			fmt.Fprint(w, "\n")
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprint(w, "Aliases:")
			for _, alias := range cmd.aliases[1:] {
				fmt.Fprintf(w, " %s", alias)
			}
			fmt.Fprint(w, "\n")
		}
		fmt.Fprint(w, "\n")
	}
}
