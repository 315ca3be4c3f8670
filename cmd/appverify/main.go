// Command appverify locates a packaged desktop application and verifies
// that it starts.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/deixis/appverify"
	"github.com/deixis/appverify/internal/config"
	avmcp "github.com/deixis/appverify/internal/mcp"
	"github.com/deixis/appverify/internal/report"
	"github.com/deixis/appverify/internal/workflow"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// errFailed reports a failure that has already been explained on stderr.
var errFailed = errors.New("failed")

func main() {
	log.SetFlags(0)
	log.SetPrefix("appverify: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "locate":
		err = locateMain(args)
	case "verify":
		err = verifyMain(args)
	case "check":
		err = checkMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(appverify.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "appverify: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if errors.Is(err, errFailed) {
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: appverify <command> [flags] [args]

Commands:
  locate      Print the path of the packaged executable
  verify      Launch an executable and wait for it to occupy its port
  check       Locate the executable, then verify it
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "appverify <command> -h" for command-specific flags.`)
}

// --- locate ---

func locateMain(args []string) error {
	fs := flag.NewFlagSet("locate", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output the run record as JSON")
	platformFlag := fs.String("platform", "", "target platform (windows, darwin, linux); defaults to the host")
	verboseFlag := fs.Bool("v", false, "verbose output")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(*verboseFlag, false)
	if err != nil {
		return err
	}
	if *platformFlag != "" {
		eng.Platform = *platformFlag
	}

	res, err := eng.Locate(ctx)
	if res == nil {
		return fmt.Errorf("locate: %w", err)
	}
	if *jsonFlag {
		if err := writeJSON(res.Record); err != nil {
			return err
		}
	}
	if err != nil {
		log.Print(err)
		return errFailed
	}
	if !*jsonFlag {
		fmt.Println(res.Candidate.Path)
	}
	return nil
}

// --- verify ---

type verifyFlags struct {
	opts    workflow.VerifyOptions
	json    bool
	verbose bool
}

func (f *verifyFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&f.opts.Port, "port", 0, "loopback port the application binds (default from config, 9138)")
	fs.DurationVar(&f.opts.Timeout, "timeout", 0, "overall deadline (default from config, 30s)")
	fs.DurationVar(&f.opts.PollInterval, "interval", 0, "port probe interval (default from config, 1s)")
	fs.BoolVar(&f.json, "json", false, "output the run record as JSON")
	fs.BoolVar(&f.verbose, "v", false, "verbose output")
}

func verifyMain(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var f verifyFlags
	f.register(fs)
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		log.Print("verify: executable path required")
		fs.Usage()
		return errFailed
	}
	f.opts.Args = fs.Args()[1:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(f.verbose, false)
	if err != nil {
		return err
	}
	return runVerify(ctx, eng, fs.Arg(0), &f)
}

// --- check ---

func checkMain(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	var f verifyFlags
	f.register(fs)
	platformFlag := fs.String("platform", "", "target platform (windows, darwin, linux); defaults to the host")
	_ = fs.Parse(args)
	f.opts.Args = fs.Args()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(f.verbose, false)
	if err != nil {
		return err
	}
	if *platformFlag != "" {
		eng.Platform = *platformFlag
	}

	found, err := eng.Locate(ctx)
	if found == nil {
		return fmt.Errorf("locate: %w", err)
	}
	if err != nil {
		if f.json {
			_ = writeJSON(found.Record)
		}
		log.Print(err)
		return errFailed
	}
	log.Printf("found %s", found.Candidate.Path)
	return runVerify(ctx, eng, found.Candidate.Path, &f)
}

func runVerify(ctx context.Context, eng *workflow.Engine, path string, f *verifyFlags) error {
	log.Printf("verifying %s", path)
	res := eng.Verify(ctx, path, f.opts)

	if f.json {
		if err := writeJSON(res.Record); err != nil {
			return err
		}
	}
	log.Print(res.Result.Message())
	if !res.Result.OK() {
		return errFailed
	}
	return nil
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(avmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(false, true)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	eng.Diagnostics = nil

	server := avmcp.NewServer(eng, eng.Store)
	if *httpAddr != "" {
		return serveHTTP(ctx, server, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

// newEngine builds the engine for the working directory.
func newEngine(verbose, serving bool) (*workflow.Engine, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	eng := workflow.New(loaded, recordStore(serving))
	eng.Diagnostics = os.Stderr
	if verbose {
		eng.Log = log.Default()
	}
	return eng, nil
}

// recordStore keeps records in memory only, unless serving or
// APPVERIFY_RECORD_DIR is set.
func recordStore(serving bool) *report.LRUStore {
	dir := os.Getenv(config.EnvRecordDir)
	if dir == "" && !serving {
		return report.NewLRUStore(16, nil)
	}
	return report.NewLRUStore(16, report.NewDiskStore(dir))
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
