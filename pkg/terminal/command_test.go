package terminal

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gouge/gouge/pkg/config"
	"github.com/go-gouge/gouge/pkg/logflags"
	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
	"github.com/go-gouge/gouge/service/rpc2"
	"github.com/go-gouge/gouge/service/rpccommon"
	"github.com/go-gouge/gouge/service/snapshot"
)

func TestMain(m *testing.M) {
	var logConf string
	flag.StringVar(&logConf, "log", "", "configures logging")
	flag.Parse()
	logflags.Setup(logConf != "", logConf, "")
	os.Exit(m.Run())
}

type FakeTerminal struct {
	*Term
	t testing.TB
}

const logCommandOutput = false

func (ft *FakeTerminal) Exec(cmdstr string) (outstr string, err error) {
	outfh, err := os.CreateTemp("", "cmdtestout")
	if err != nil {
		ft.t.Fatalf("could not create temporary file: %v", err)
	}

	stdout, stderr, termstdout := os.Stdout, os.Stderr, ft.Term.stdout.pw.w
	os.Stdout, os.Stderr, ft.Term.stdout.pw.w = outfh, outfh, outfh
	defer func() {
		os.Stdout, os.Stderr, ft.Term.stdout.pw.w = stdout, stderr, termstdout
		outfh.Close()
		outbs, err1 := os.ReadFile(outfh.Name())
		if err1 != nil {
			ft.t.Fatalf("could not read temporary output file: %v", err1)
		}
		outstr = string(outbs)
		if logCommandOutput {
			ft.t.Logf("command %q -> %q", cmdstr, outstr)
		}
		os.Remove(outfh.Name())
	}()
	err = ft.cmds.Call(cmdstr, ft.Term)
	return
}

func (ft *FakeTerminal) ExecStarlark(starlarkProgram string) (outstr string, err error) {
	outfh, err := os.CreateTemp("", "cmdtestout")
	if err != nil {
		ft.t.Fatalf("could not create temporary file: %v", err)
	}

	stdout, stderr, termstdout := os.Stdout, os.Stderr, ft.Term.stdout.pw.w
	os.Stdout, os.Stderr, ft.Term.stdout.pw.w = outfh, outfh, outfh
	defer func() {
		os.Stdout, os.Stderr, ft.Term.stdout.pw.w = stdout, stderr, termstdout
		outfh.Close()
		outbs, err1 := os.ReadFile(outfh.Name())
		if err1 != nil {
			ft.t.Fatalf("could not read temporary output file: %v", err1)
		}
		outstr = string(outbs)
		if logCommandOutput {
			ft.t.Logf("command %q -> %q", starlarkProgram, outstr)
		}
		os.Remove(outfh.Name())
	}()
	_, err = ft.Term.starlarkEnv.Execute("<stdin>", starlarkProgram, "main", nil)
	return
}

func (ft *FakeTerminal) MustExec(cmdstr string) string {
	outstr, err := ft.Exec(cmdstr)
	if err != nil {
		ft.t.Errorf("output of %q: %q", cmdstr, outstr)
		ft.t.Fatalf("Error executing <%s>: %v", cmdstr, err)
	}
	return outstr
}

func (ft *FakeTerminal) MustExecStarlark(starlarkProgram string) string {
	outstr, err := ft.ExecStarlark(starlarkProgram)
	if err != nil {
		ft.t.Errorf("output of %q: %q", starlarkProgram, outstr)
		ft.t.Fatalf("Error executing <%s>: %v", starlarkProgram, err)
	}
	return outstr
}

func (ft *FakeTerminal) AssertExec(cmdstr, tgt string) {
	out := ft.MustExec(cmdstr)
	if out != tgt {
		ft.t.Fatalf("Error executing %q, expected %q got %q", cmdstr, tgt, out)
	}
}

func (ft *FakeTerminal) AssertExecError(cmdstr, tgterr string) {
	_, err := ft.Exec(cmdstr)
	if err == nil {
		ft.t.Fatalf("Expected error executing %q", cmdstr)
	}
	if err.Error() != tgterr {
		ft.t.Fatalf("Expected error %q executing %q, got error %q", tgterr, cmdstr, err.Error())
	}
}

func findFixturesDir() string {
	parent := ".."
	fixturesDir := "_fixtures"
	for depth := 0; depth < 10; depth++ {
		if _, err := os.Stat(fixturesDir); err == nil {
			break
		}
		fixturesDir = filepath.Join(parent, fixturesDir)
	}
	return fixturesDir
}

func withTestTerminal(name string, t testing.TB, fn func(*FakeTerminal)) {
	os.Setenv("TERM", "dumb")
	snap, err := snapshot.Open(filepath.Join(findFixturesDir(), name))
	if err != nil {
		t.Fatalf("could not open snapshot: %v", err)
	}
	listener, clientConn := service.ListenerPipe()
	defer listener.Close()
	server := rpccommon.NewServer(&service.Config{
		Listener: listener,
		Backend:  snapshot.NewBackend(snap),
	})
	if err := server.Run(); err != nil {
		t.Fatal(err)
	}
	client := rpc2.NewClientFromConn(clientConn)
	defer client.Disconnect()

	ft := &FakeTerminal{
		t:    t,
		Term: New(client, &config.Config{}),
	}
	fn(ft)
}

func TestCommandDefault(t *testing.T) {
	var (
		cmds = Commands{}
		cmd  = cmds.Find("non-existent-command")
	)

	err := cmd.cmdFn(nil, callContext{}, "")
	if err == nil {
		t.Fatal("cmd did not default")
	}

	if err.Error() != "command not available" {
		t.Fatal("wrong command output")
	}
}

func TestCommandReplayWithoutPreviousCommand(t *testing.T) {
	var (
		cmds = DebugCommands(nil)
		cmd  = cmds.Find("")
		err  = cmd.cmdFn(nil, callContext{}, "")
	)

	if err != nil {
		t.Error("Null command not returned", err)
	}
}

func TestExecuteFile(t *testing.T) {
	markCount := 0
	sweepCount := 0
	c := &Commands{
		client: nil,
		cmds: []command{
			{aliases: []string{"mark"}, cmdFn: func(t *Term, ctx callContext, args string) error {
				markCount++
				return nil
			}},
			{aliases: []string{"sweep"}, cmdFn: func(t *Term, ctx callContext, args string) error {
				sweepCount++
				return nil
			}},
		},
	}

	err := c.executeFile(nil, filepath.Join(findFixturesDir(), "cmdfile"))
	if err != nil {
		t.Fatalf("executeFile: %v", err)
	}

	if markCount != 2 || sweepCount != 1 {
		t.Fatalf("Wrong counts mark: %d sweep: %d\n", markCount, sweepCount)
	}
}

func TestCommandState(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.AssertExec("state", "Target orderd (pid 4242), stop #7\n"+
			"Stopped at: breakpoint payload hit\n"+
			"Thread 4243 at /src/orderd/handler.go:42 main.handleOrder (0x4a1b20)\n"+
			"Goroutine 19 - User: /src/orderd/handler.go:42 main.handleOrder (0x4a1b20) (thread 4243)\n")
	})
}

func TestCommandBreakpoints(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.AssertExec("breakpoints", "Breakpoint payload at 0x4a1b20 for main.handleOrder() /src/orderd/handler.go:42 (3)\n"+
			"Breakpoint 2 at 0x4a2100 for main.flushMetrics() /src/orderd/main.go:57 (0) (disabled)\n")
	})
}

func TestCommandGoroutines(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		userLocs := "  Goroutine 1 - User: /src/orderd/main.go:24 main.main (0x4a2000)\n" +
			"* Goroutine 19 - User: /src/orderd/handler.go:42 main.handleOrder (0x4a1b20) (thread 4243)\n" +
			"[2 goroutines]\n"
		term.AssertExec("goroutines", userLocs)
		term.AssertExec("goroutines -u", userLocs)
		term.AssertExec("goroutines -r", "  Goroutine 1 - Runtime: /usr/local/go/src/runtime/proc.go:402 runtime.gopark (0x4388a0)\n"+
			"* Goroutine 19 - Runtime: /src/orderd/handler.go:42 main.handleOrder (0x4a1b20) (thread 4243)\n"+
			"[2 goroutines]\n")
		term.AssertExec("goroutines -s", "  Goroutine 1 - Start: /src/orderd/main.go:12 main.main (0x4a1800)\n"+
			"* Goroutine 19 - Start: /src/orderd/main.go:30 main.serve (0x4a1900) (thread 4243)\n"+
			"[2 goroutines]\n")
		term.AssertExecError("goroutines -x", "wrong argument: '-x'")
	})
}

func TestCommandSourcesAndFuncs(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.AssertExec("sources", "/src/orderd/handler.go\n/src/orderd/main.go\n/usr/local/go/src/runtime/proc.go\n")
		term.AssertExec("sources handler", "/src/orderd/handler.go\n")
		term.AssertExec("funcs main", "main.flushMetrics\nmain.handleOrder\nmain.main\nmain.serve\n")
		term.AssertExec("funcs gopark", "runtime.gopark\n")
		_, err := term.Exec("funcs [")
		if err == nil || !strings.Contains(err.Error(), "invalid filter argument") {
			t.Fatalf("wrong error for invalid filter: %v", err)
		}
	})
}

func TestCommandPrint(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.AssertExec("print n", "42\n")
		term.AssertExec("print (n)", "42\n")
		term.AssertExec("print order", "main.Order {ID: 117, Total: 59.9}\n")
		term.AssertExec("print order.Total", "59.9\n")
		term.AssertExec("print optr", "*main.Order {ID: 117, Total: 59.9}\n")
		term.AssertExec("print sig", "[]uint8 len: 8, cap: 8, [123,34,111,107,34,58,49,125]\n")
		term.AssertExec("print sig[0]", "123\n")
		term.AssertExec("print token", "\"eyJzdWIiOiJlZGl0aCIsImFkbWluIjp0cnVlfQ==\"\n")
		term.AssertExec("print body_any", "interface {}(string) \"{\\\"ok\\\":1}\"\n")
		term.AssertExec("print req.Header", "map[string]string [\n\t\"Content-Type\": \"application/json\", \n\t\"X-Request-Id\": \"o-9931\", \n]\n")
		term.AssertExec("print req.Header[\"Content-Type\"]", "\"application/json\"\n")
		term.AssertExec("print req", "main.Request {\n"+
			"\tMethod: \"POST\",\n"+
			"\tPath: \"/api/orders\",\n"+
			"\tHeader: map[string]string [\n"+
			"\t\t\"Content-Type\": \"application/json\", \n"+
			"\t\t\"X-Request-Id\": \"o-9931\", \n"+
			"\t],\n"+
			"\tBody: \"{\\\"order_id\\\":117,\\\"customer\\\":{\\\"id\\\":7,\\\"name\\\":\\\"Edith\\\"},\\\"items\\\":[{\\\"sk...+64 more\",}\n")
		term.AssertExec("print trunc", "\"{\\\"events\\\":[xxxxxxxxxxxxxxxxxxxxx...+4064 more\"\n")
		term.AssertExecError("print", "not enough arguments")
		term.AssertExecError("print nosuch", "\"nosuch\" was not recorded in this snapshot")
		term.AssertExecError("print 1+2", "cannot evaluate \"1 + 2\": expression not supported on a snapshot")
		term.AssertExecError("print order.Weight", "main.Order has no field Weight")
		term.AssertExecError("print sig[8]", "index 8 out of bounds for []uint8 of length 8")
	})
}

const prettyOrderPayload = `{
  "order_id": 117,
  "customer": {
    "id": 7,
    "name": "Edith"
  },
  "items": [
    {
      "sku": "K7",
      "qty": 2
    },
    {
      "sku": "B12",
      "qty": 1
    }
  ],
  "paid": true,
  "note": null
}
`

func TestCommandPjson(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.AssertExec("pjson req.Body", prettyOrderPayload)
		term.AssertExec("pjson -c req.Body", `{"order_id":117,"customer":{"id":7,"name":"Edith"},"items":[{"sku":"K7","qty":2},{"sku":"B12","qty":1}],"paid":true,"note":null}`+"\n")
		term.AssertExec("pjson -c -k req.Body", `{"customer":{"id":7,"name":"Edith"},"items":[{"qty":2,"sku":"K7"},{"qty":1,"sku":"B12"}],"note":null,"order_id":117,"paid":true}`+"\n")
		term.AssertExec("pjson -c -d 1 req.Body", `{"order_id":117,"customer":{...},"items":[...],"paid":true,"note":null}`+"\n")
		term.AssertExec("pjson -c resp.Body", `{"id":117,"status":"created"}`+"\n")
		term.AssertExec("pjson -c sig", `{"ok":1}`+"\n")
		term.AssertExec("pjson -c body_any", `{"ok":1}`+"\n")
		term.AssertExec("pjson -r sig", `{"ok":1}`+"\n")
		term.AssertExec("pjson -b token", "{\n  \"sub\": \"edith\",\n  \"admin\": true\n}\n")
	})
}

func TestCommandPjsonErrors(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		usage := "pjson [-c|--compact] [-k|--sort-keys] [-r|--raw] [-b|--base64] [-d|--depth n] <expr>"
		term.AssertExecError("pjson", "not enough arguments, usage: "+usage)
		term.AssertExecError("pjson req.Body extra", "too many arguments, usage: "+usage)
		term.AssertExecError("pjson -q req.Body", "unknown shorthand flag: 'q' in -q, usage: "+usage)
		term.AssertExecError("pjson -d x req.Body", "invalid depth \"x\"")
		term.AssertExecError("pjson trunc", "payload truncated: loaded 32 of 4096 bytes (raise max-string-len and retry)")
		term.AssertExecError("pjson n", "cannot extract payload from value of type int (kind int)")
		term.AssertExecError("pjson req", "cannot extract payload from value of type main.Request (kind struct)")
		term.AssertExecError("pjson req.Method", "payload of req.Method is not valid JSON: invalid character 'P' looking for beginning of value")
		term.AssertExecError("pjson -b sig", "payload is not valid base64")
	})
}

func TestCommandWhatis(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.AssertExec("whatis req", "main.Request\n")
		term.AssertExec("whatis sig", "[]uint8\n")
		term.AssertExec("whatis optr", "*main.Order\n")
		term.AssertExec("whatis req.Header[\"Content-Type\"]", "string\n")
		term.AssertExecError("whatis", "not enough arguments")
		term.AssertExecError("whatis nosuch", "\"nosuch\" was not recorded in this snapshot")
	})
}

func TestCommandExamineMemory(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		out := term.MustExec("x -count 8 0x20000")
		for _, cell := range []string{"0x20000:", "0x7b", "0x22", "0x6f", "0x6b", "0x3a", "0x31", "0x7d"} {
			if !strings.Contains(out, cell) {
				t.Fatalf("missing %q in examinemem output: %q", cell, out)
			}
		}
		out = term.MustExec("x -fmt dec -size 8 0x40d000")
		if !strings.Contains(out, "000000000000000000000117") {
			t.Fatalf("wrong decimal examinemem output: %q", out)
		}
		out = term.MustExec("x -fmt bin -count 2 0x20000")
		if !strings.Contains(out, "01111011") || !strings.Contains(out, "00100010") {
			t.Fatalf("wrong binary examinemem output: %q", out)
		}

		// Expressions evaluating to slices, pointers and integers work as addresses.
		out = term.MustExec("x sig")
		if !strings.Contains(out, "0x20000:") || !strings.Contains(out, "0x7b") {
			t.Fatalf("wrong examinemem output for slice expression: %q", out)
		}
		out = term.MustExec("x optr")
		if !strings.Contains(out, "0x40d000:") || !strings.Contains(out, "0x75") {
			t.Fatalf("wrong examinemem output for pointer expression: %q", out)
		}
		term.AssertExecError("x n", "memory at 0x2a was not recorded")

		term.AssertExecError("x", "no address specified")
		term.AssertExecError("x -count 600 -size 2 0x20000", "read memory range (count*size) must be less than or equal to 1000 bytes")
		term.AssertExecError("x -fmt xyz 0x20000", "\"xyz\" is not a valid format")
		term.AssertExecError("x -count 0 0x20000", "count/len must be a positive integer")
		term.AssertExecError("x -size 9 0x20000", "size must be a positive integer (<=8)")
		term.AssertExecError("x req", "can not convert \"req\" to address")
		term.AssertExecError("x -count 17 0x20000", "memory at 0x20000 was not recorded")
	})
}

func TestCommandSnapshot(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		path := filepath.Join(t.TempDir(), "restop.yaml")
		out := term.MustExec("snapshot " + path + " req n")
		if !strings.Contains(out, "written to "+path) || !strings.Contains(out, "(2 variables, 0 memory ranges)") {
			t.Fatalf("wrong output for snapshot: %q", out)
		}

		snap, err := snapshot.Open(path)
		if err != nil {
			t.Fatalf("could not reopen snapshot: %v", err)
		}
		if snap.ID == "9f4b1b6e-32a2-4c95-a1cd-d20a0d3fd58b" {
			t.Fatal("snapshot did not get a new identity")
		}
		if snap.Target != "orderd" || snap.Pid != 4242 {
			t.Fatalf("wrong target in snapshot: %s (pid %d)", snap.Target, snap.Pid)
		}
		if len(snap.Variables) != 2 {
			t.Fatalf("wrong number of variables in snapshot: %d", len(snap.Variables))
		}
		v := snap.FindVariable(api.EvalScope{GoroutineID: -1}, "req")
		if v == nil {
			t.Fatal("req was not recorded in the snapshot")
		}
		if len(v.Children) != 4 || v.Children[3].Value != `{"order_id":117,"customer":{"id":7,"name":"Edith"},"items":[{"sku":"K7","qty":2},{"sku":"B12","qty":1}],"paid":true,"note":null}` {
			t.Fatalf("req was not recorded with the full payload: %#v", v)
		}

		term.AssertExecError("snapshot", "not enough arguments, usage: snapshot <file> [expr ...]")
		term.AssertExecError("snapshot "+path+" nosuch", "recording \"nosuch\": \"nosuch\" was not recorded in this snapshot")
	})
}

func TestConfig(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		out := term.MustExec("config -list")
		for _, param := range []string{"max-string-len", "max-array-values", "max-variable-recurse", "indent", "sort-keys", "short-types"} {
			if !strings.Contains(out, param) {
				t.Fatalf("parameter %q missing from config -list output: %q", param, out)
			}
		}
		term.AssertExecError("config", "wrong number of arguments to \"config\"")
		term.AssertExecError("config nonexistent 10", "\"nonexistent\" is not a configuration parameter")

		term.MustExec("config max-string-len 10")
		term.AssertExec("print trunc", "\"{\\\"events\\\":...+4086 more\"\n")
		term.AssertExecError("pjson trunc", "payload truncated: loaded 10 of 4096 bytes (raise max-string-len and retry)")
		term.MustExec("config max-string-len 64")
		term.AssertExec("print trunc", "\"{\\\"events\\\":[xxxxxxxxxxxxxxxxxxxxx...+4064 more\"\n")

		term.MustExec("config max-variable-recurse 0")
		term.AssertExec("print order", "main.Order {ID: 117, Total: 59.9}\n")
		out = term.MustExec("print req")
		if !strings.Contains(out, "Header: map[string]string [...]") {
			t.Fatalf("nested map not elided with max-variable-recurse 0: %q", out)
		}
	})
}

func TestConfigShortTypes(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.AssertExec("whatis hdr", "github.com/example/wire/frame.Header\n")
		term.AssertExec("print hdr", "github.com/example/wire/frame.Header {Seq: 9931}\n")

		term.MustExec("config short-types true")
		term.AssertExec("whatis hdr", "frame.Header\n")
		term.AssertExec("print hdr", "frame.Header {Seq: 9931}\n")

		term.MustExec("config short-types false")
		term.AssertExec("whatis hdr", "github.com/example/wire/frame.Header\n")
	})
}

func TestConfigAlias(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.MustExec("config alias print blah")
		term.AssertExec("blah n", "42\n")
		term.MustExec("config alias blah")
		term.AssertExecError("blah n", "command not available")
	})
}

func TestTranscript(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		path := filepath.Join(t.TempDir(), "transcript.out")
		term.MustExec("transcript " + path)
		term.AssertExec("print order", "main.Order {ID: 117, Total: 59.9}\n")
		term.MustExec("transcript -off")
		bs, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(bs) != "main.Order {ID: 117, Total: 59.9}\n" {
			t.Fatalf("wrong transcript contents: %q", string(bs))
		}

		// -x sends output only to the file, -t truncates it first.
		term.MustExec("transcript -t -x " + path)
		term.AssertExec("print n", "")
		term.MustExec("transcript -off")
		bs, err = os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(bs) != "42\n" {
			t.Fatalf("wrong transcript contents: %q", string(bs))
		}

		term.AssertExecError("transcript", "no output file specified")
		term.AssertExecError("transcript -off "+path, "-off option specified with an output file")
		term.AssertExecError("transcript -q", "unrecognized option \"-q\"")
	})
}

func TestCommandDocs(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		path := filepath.Join(t.TempDir(), "reference.md")
		term.AssertExec("docs "+path, "Written "+path+"\n")
		buf, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		out := string(buf)
		for _, want := range []string{"# Commands", "## pjson", "Aliases: pj", "Command | Description\n"} {
			if !strings.Contains(out, want) {
				t.Fatalf("missing %q in generated documentation", want)
			}
		}

		term.AssertExec("docs -post "+path, "Written "+path+"\n")
		buf, err = os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(buf), "---\n") || !strings.Contains(string(buf), "layout: post") {
			t.Fatalf("missing front matter in generated post: %q", string(buf[:80]))
		}

		term.AssertExecError("docs", "wrong number of arguments: docs [-post] <path>")
	})
}

func TestCommandSource(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		term.AssertExec("source "+filepath.Join(findFixturesDir(), "stopreport.star"), "orderd 4242\n{\"ok\":1}\n")
		term.AssertExecError("source", "wrong number of arguments: source <filename>")
	})
}

func TestHelp(t *testing.T) {
	withTestTerminal("ordersnap.yaml", t, func(term *FakeTerminal) {
		out := term.MustExec("help")
		for _, cmd := range term.cmds.cmds {
			if !strings.Contains(out, cmd.aliases[0]) {
				t.Fatalf("command %q missing from help output", cmd.aliases[0])
			}
		}
		for _, group := range commandGroupDescriptions {
			if !strings.Contains(out, group.description+":") {
				t.Fatalf("group %q missing from help output", group.description)
			}
		}

		stateCmd := term.cmds.Find("state")
		term.AssertExec("help state", stateCmd.helpMsg+"\n")
		term.AssertExecError("help nonexistent", "command not available")
	})
}
