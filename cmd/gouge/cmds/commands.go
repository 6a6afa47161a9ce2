package cmds

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-gouge/gouge/cmd/gouge/cmds/helphelpers"
	"github.com/go-gouge/gouge/pkg/config"
	"github.com/go-gouge/gouge/pkg/docs"
	"github.com/go-gouge/gouge/pkg/logflags"
	"github.com/go-gouge/gouge/pkg/terminal"
	"github.com/go-gouge/gouge/pkg/version"
	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/dapclient"
	"github.com/go-gouge/gouge/service/rpc2"
	"github.com/go-gouge/gouge/service/rpccommon"
	"github.com/go-gouge/gouge/service/snapshot"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// addr is the inspection server listen address.
	addr string
	// acceptMulti allows multiple clients to connect to the same server.
	acceptMulti bool
	// checkLocalConnUser is true if the server should check that local
	// connections come from the same user that started it.
	checkLocalConnUser bool
	// initFile is the path to initialization file.
	initFile string
	// commandPath overrides the directory custom commands are loaded from.
	commandPath string
	// docsPost wraps the output of the docs command in front matter.
	docsPost bool
	// versionVerbose adds the dependency list to the version command.
	versionVerbose bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const gougeCommandLongDesc = `Gouge is a payload inspector for paused Go programs.

Gouge sits next to the debugger that owns the target process and lets you
evaluate expressions, pretty print the JSON payloads they contain and record
snapshots of what you saw. It never resumes, steps or otherwise controls the
process, those operations stay with the host debugger.`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Config setup and load. Documentation generation must not touch the
	// user's configuration directory.
	if docCall {
		conf = &config.Config{}
	} else {
		conf = config.LoadConfig()
	}

	// Main gouge root command.
	rootCommand = &cobra.Command{
		Use:   "gouge",
		Short: "Gouge is a payload inspector for paused Go programs.",
		Long:  gougeCommandLongDesc,
	}

	rootCommand.PersistentFlags().StringVarP(&addr, "listen", "l", "127.0.0.1:0", "Inspection server listen address.")
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable inspection server logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'gouge help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'gouge help log').")
	rootCommand.PersistentFlags().BoolVarP(&acceptMulti, "accept-multiclient", "", false, "Allows a serve instance to accept multiple client connections.")
	rootCommand.PersistentFlags().BoolVarP(&checkLocalConnUser, "only-same-user", "", true, "Only connections from the same user that started this instance of gouge are allowed to connect.")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.PersistentFlags().StringVar(&commandPath, "commands", "", "Load custom commands from the specified directory instead of the configured command-path.")

	// 'connect' subcommand.
	connectCommand := &cobra.Command{
		Use:   "connect addr",
		Short: "Connect to a running inspection server.",
		Long:  "Connect to a running inspection server and begin an interactive session.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide an address as the first argument")
			}
			return nil
		},
		Run: connectCmd,
	}
	rootCommand.AddCommand(connectCommand)

	// 'dap' subcommand.
	dapCommand := &cobra.Command{
		Use:   "dap addr",
		Short: "Connect to a server speaking the Debug Adaptor Protocol (DAP).",
		Long: `Connect to a server speaking the Debug Adaptor Protocol (DAP) and begin an
interactive session over it.

The server must hold the target process stopped at a breakpoint. Session
commands without a DAP equivalent (funcs, breakpoints, snapshot) report an
unsupported error when used.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide an address as the first argument")
			}
			return nil
		},
		Run: dapCmd,
	}
	rootCommand.AddCommand(dapCommand)

	// 'examine' subcommand.
	examineCommand := &cobra.Command{
		Use:   "examine <snapshot>",
		Short: "Examine a recorded snapshot.",
		Long: `Examine a recorded snapshot.

The examine command opens the given snapshot file and begins an interactive
session over its recorded state. No server and no live process are involved,
expressions evaluate against what the snapshot recorded.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a snapshot file")
			}
			return nil
		},
		Run: examineCmd,
	}
	rootCommand.AddCommand(examineCommand)

	// 'serve' subcommand.
	serveCommand := &cobra.Command{
		Use:   "serve <snapshot>",
		Short: "Serve a recorded snapshot over the inspection API.",
		Long: `Serve a recorded snapshot over the inspection API.

The serve command opens the given snapshot file and exposes it on a JSON-RPC
listener, so that 'gouge connect' sessions can examine it remotely, for
example to share a captured payload with another developer.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a snapshot file")
			}
			return nil
		},
		Run: serveCmd,
	}
	rootCommand.AddCommand(serveCommand)

	// 'docs' subcommand.
	docsCommand := &cobra.Command{
		Use:   "docs [dir]",
		Short: "Write the command reference to a directory.",
		Long: `Write the command reference to a directory.

The docs command renders the documentation of every session command as
markdown and writes it to README.md in the given directory, defaulting to
Documentation/cli. With --post the reference is wrapped in blog post front
matter and written to a dated post file instead.`,
		Run: docsCmd,
	}
	docsCommand.Flags().BoolVar(&docsPost, "post", false, "Wrap the generated markdown in blog post front matter.")
	rootCommand.AddCommand(docsCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Gouge Inspector\n%s\n", version.GougeVersion)
			if versionVerbose {
				fmt.Println(version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	rpc		Log all RPC messages
	dap		Log all DAP messages
	script		Log the Starlark script host
	terminal	Log the terminal client
	docs		Log documentation generation
	snapshot	Log snapshot record and replay

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
This option will also redirect the "API server listening at:" message in
serve mode.

`,
	})

	defaultHelpFunc := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		defaultHelpFunc(cmd, args)
	})
	defaultUsageFunc := rootCommand.UsageFunc()
	rootCommand.SetUsageFunc(func(cmd *cobra.Command) error {
		helphelpers.Prepare(cmd)
		return defaultUsageFunc(cmd)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func connectCmd(cmd *cobra.Command, args []string) {
	addr := args[0]
	if addr == "" {
		fmt.Fprint(os.Stderr, "An empty address was provided. You must provide an address as the first argument.\n")
		os.Exit(1)
	}
	os.Exit(connect(addr, nil))
}

func dapCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := setupLogging(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		if acceptMulti {
			fmt.Fprintf(os.Stderr, "Warning: accept multiclient mode not supported with dap\n")
		}

		client, err := dapclient.NewClient(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		return runTerminal(client)
	}()
	os.Exit(status)
}

func examineCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := setupLogging(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		snap, err := snapshot.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}

		// Make a local in-memory connection that client and server use to communicate
		listener, clientConn := service.ListenerPipe()
		defer listener.Close()

		server := rpccommon.NewServer(&service.Config{
			Listener: listener,
			Backend:  snapshot.NewBackend(snap),
		})
		if err := server.Run(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer server.Stop()

		return runTerminal(rpc2.NewClientFromConn(clientConn))
	}()
	os.Exit(status)
}

func serveCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := setupLogging(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		if initFile != "" {
			fmt.Fprint(os.Stderr, "Warning: init file ignored with serve\n")
		}
		if commandPath != "" {
			fmt.Fprint(os.Stderr, "Warning: custom command directory ignored with serve\n")
		}

		snap, err := snapshot.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			fmt.Printf("couldn't start listener: %s\n", err)
			return 1
		}

		disconnectChan := make(chan struct{})
		server := rpccommon.NewServer(&service.Config{
			Listener:           listener,
			Backend:            snapshot.NewBackend(snap),
			AcceptMulti:        acceptMulti,
			CheckLocalConnUser: checkLocalConnUser,
			DisconnectChan:     disconnectChan,
		})
		if err := server.Run(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		logflags.WriteAPIListeningMessage(listener.Addr())
		waitForDisconnectSignal(disconnectChan)
		if err := server.Stop(); err != nil {
			fmt.Println(err)
			return 1
		}
		return 0
	}()
	os.Exit(status)
}

func docsCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := setupLogging(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		dir := filepath.Join("Documentation", "cli")
		if len(args) > 0 {
			dir = args[0]
		}

		var buf bytes.Buffer
		terminal.DebugCommands(nil).WriteMarkdown(&buf)

		name := "README.md"
		out := buf.Bytes()
		if docsPost {
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
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			name = time.Now().Format("2006-01-02") + "-gouge-command-reference.md"
		}

		path := filepath.Join(dir, name)
		logflags.DocsLogger().Debugf("writing %s", path)
		if err := os.WriteFile(path, out, 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("Written %s\n", path)
		return 0
	}()
	os.Exit(status)
}

// setupLogging configures the logflags package from the persistent flags
// and the configuration file.
func setupLogging() error {
	logflags.SetJSONFormat(conf.JSONLog)
	return logflags.Setup(log, logOutput, logDest)
}

// connect sets up a terminal over a JSON-RPC connection. clientConn is used
// when it is not nil, otherwise a connection to addr is established.
func connect(addr string, clientConn net.Conn) int {
	if err := setupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	var client *rpc2.RPCClient
	if clientConn != nil {
		client = rpc2.NewClientFromConn(clientConn)
	} else {
		var err error
		client, err = rpc2.NewClient(addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
	}
	return runTerminal(client)
}

func runTerminal(client service.Client) int {
	if commandPath != "" {
		conf.CommandPath = commandPath
	}
	term := terminal.New(client, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}

// waitForDisconnectSignal is a blocking function that waits for either
// a SIGINT (Ctrl-C) signal from the OS or for disconnectChan to be closed
// by the server when the last client disconnects.
func waitForDisconnectSignal(disconnectChan chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	if runtime.GOOS == "windows" {
		// On windows Ctrl-C sent to the process group is delivered to
		// every member. Ignore it so that a client running in the same
		// console does not take the server down with it.
		go func() {
			for {
				select {
				case <-ch:
				}
			}
		}()
		select {
		case <-disconnectChan:
		}
	} else {
		select {
		case <-ch:
		case <-disconnectChan:
		}
	}
}
