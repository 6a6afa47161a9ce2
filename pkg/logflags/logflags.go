// Package logflags maps the -log-output flag to component loggers.
package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var rpc = false
var dap = false
var script = false
var terminal = false
var docs = false
var snapshot = false

var logOut io.WriteCloser
var jsonFormat = false

// SetJSONFormat switches between the line oriented text format and one JSON
// document per entry. It must be called before any logger is created.
func SetJSONFormat(enable bool) {
	jsonFormat = enable
}

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New()
	if jsonFormat {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = textFormatterInstance
	}
	if logOut != nil {
		logger.Out = logOut
	}
	logger.Level = level
	return &logrusLogger{logger.WithFields(logrus.Fields(fields))}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

// Any returns true if any logging is enabled.
func Any() bool {
	return rpc || dap || script || terminal || docs || snapshot
}

// RPC returns true if JSON-RPC traffic should be logged.
func RPC() bool {
	return rpc
}

// RPCLogger returns a logger for JSON-RPC traffic.
func RPCLogger() Logger {
	return makeFlaggableLogger(rpc, Fields{"layer": "rpc"})
}

// DAP returns true if the DAP connection should be logged.
func DAP() bool {
	return dap
}

// DAPLogger returns a logger for the DAP connection.
func DAPLogger() Logger {
	return makeFlaggableLogger(dap, Fields{"layer": "dap"})
}

// Script returns true if the script host should log.
func Script() bool {
	return script
}

// ScriptLogger returns a logger for the script host.
func ScriptLogger() Logger {
	return makeFlaggableLogger(script, Fields{"layer": "script"})
}

// Terminal returns true if the terminal package should log.
func Terminal() bool {
	return terminal
}

// TerminalLogger returns a logger for the terminal package.
func TerminalLogger() Logger {
	return makeFlaggableLogger(terminal, Fields{"layer": "terminal"})
}

// Docs returns true if documentation generation should log.
func Docs() bool {
	return docs
}

// DocsLogger returns a logger for documentation generation.
func DocsLogger() Logger {
	return makeFlaggableLogger(docs, Fields{"layer": "docs"})
}

// Snapshot returns true if snapshot record and replay should log.
func Snapshot() bool {
	return snapshot
}

// SnapshotLogger returns a logger for snapshot record and replay.
func SnapshotLogger() Logger {
	return makeFlaggableLogger(snapshot, Fields{"layer": "snapshot"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets component flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor
// or file path it specifies.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "gouge-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if logOut != nil {
		log.SetOutput(logOut)
	}
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "rpc"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		// If adding another value update the log help topic in
		// cmds.
		switch logcmd {
		case "rpc":
			rpc = true
		case "dap":
			dap = true
		case "script":
			script = true
		case "terminal":
			terminal = true
		case "docs":
			docs = true
		case "snapshot":
			snapshot = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'gouge help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// WriteAPIListeningMessage writes the "API server listening at" message in
// serve mode. The message goes to the log destination when one is
// configured, to standard output otherwise.
func WriteAPIListeningMessage(addr net.Addr) {
	writeListeningMessage("API", addr)
}

func writeListeningMessage(server string, addr net.Addr) {
	msg := fmt.Sprintf("%s server listening at: %s", server, addr)
	if logOut != nil {
		fmt.Fprintln(logOut, msg)
		return
	}
	fmt.Println(msg)
}

var textFormatterInstance = &textFormatter{}

// textFormatter formats one log entry per line with sorted fields, it is
// simpler and faster than logrus.TextFormatter.
type textFormatter struct{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}
	b.WriteString(entry.Time.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(entry.Level.String())
	b.WriteByte(' ')
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for i, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		stringVal, ok := entry.Data[key].(string)
		if !ok {
			stringVal = fmt.Sprint(entry.Data[key])
		}
		if f.needsQuoting(stringVal) {
			fmt.Fprintf(b, "%q", stringVal)
		} else {
			b.WriteString(stringVal)
		}
		if i != len(keys)-1 {
			b.WriteByte(',')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *textFormatter) needsQuoting(text string) bool {
	for _, ch := range text {
		if !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_' || ch == '/' || ch == '@' || ch == '^' || ch == '+') {
			return true
		}
	}
	return false
}
