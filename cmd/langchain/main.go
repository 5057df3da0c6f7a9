package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/billvsme/langchain/internal/eventbus"
	"github.com/billvsme/langchain/internal/otel"
	"github.com/billvsme/langchain/internal/remote"
	"github.com/billvsme/langchain/internal/runnable"
)

const rootUsage = `langchain — call-time configurable runnables over gRPC

USAGE:
  langchain <command> [flags]

COMMANDS:
  invoke           Invoke the manifest's chain once (or stream)
  batch            Invoke the chain over a JSON array of inputs
  specs            List the chain's configurable axes
  proto            Print the RunnableService wire contract (.proto)
  help             Show help for any command
`

const invokeUsage = `invoke FLAGS:
  -manifest <file>                    Chain manifest (required)
  -input <json|@file|->               Input object (default: {})
  -set <key=value>                    Configurable override, value parsed as
                                      JSON when possible. Repeatable
  -run-name <name>                    Label for events and traces
  -stream                             Stream output chunks instead of one result
  -transport.max-conns-per-endpoint N Max TCP conns per endpoint (default: 2)
  -transport.rpc-timeout <duration>   RPC timeout, e.g. 3s (default: 3s)
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: langchain)
`

const batchUsage = `batch FLAGS:
  -manifest <file>                    Chain manifest (required)
  -input <json|@file|->               JSON array of input objects (required)
  -set <key=value>                    Configurable override applied to every
                                      item. Repeatable
  -run-name <name>                    Label for events and traces
  -max-concurrency <n>                Bound parallel dispatch (default: unbounded)
  -return-exceptions                  Report per-item failures instead of aborting
  -async                              Use cooperative scheduling
  -transport.max-conns-per-endpoint N Max TCP conns per endpoint (default: 2)
  -transport.rpc-timeout <duration>   RPC timeout, e.g. 3s (default: 3s)
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: langchain)
`

const specsUsage = `specs FLAGS:
  -manifest <file>  Chain manifest (required)
`

const protoUsage = `proto FLAGS:
  -out <file>  Write the .proto source to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("langchain", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "invoke":
		return cmdInvoke(cmdArgs)
	case "batch":
		return cmdBatch(cmdArgs)
	case "specs":
		return cmdSpecs(cmdArgs)
	case "proto":
		return cmdProto(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "invoke":
		fmt.Print(invokeUsage)
	case "batch":
		fmt.Print(batchUsage)
	case "specs":
		fmt.Print(specsUsage)
	case "proto":
		fmt.Print(protoUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// setFlag collects repeatable key=value configurable overrides. Values are
// parsed as JSON when they round-trip, else kept as strings.
type setFlag struct {
	m map[string]any
}

func (s *setFlag) String() string { return "" }

func (s *setFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return fmt.Errorf("invalid override %q, want key=value", v)
	}
	if s.m == nil {
		s.m = map[string]any{}
	}
	var parsed any
	if err := json.Unmarshal([]byte(parts[1]), &parsed); err != nil {
		parsed = parts[1]
	}
	s.m[strings.TrimSpace(parts[0])] = parsed
	return nil
}

type callFlags struct {
	manifest   string
	input      string
	runName    string
	overrides  setFlag
	maxConns   int
	rpcTimeout time.Duration

	otelEndpoint string
	otelService  string
}

func (c *callFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.manifest, "manifest", "", "Chain manifest")
	fs.StringVar(&c.input, "input", "{}", "Input JSON")
	fs.StringVar(&c.runName, "run-name", "", "Label for events and traces")
	fs.Var(&c.overrides, "set", "Configurable override")
	fs.IntVar(&c.maxConns, "transport.max-conns-per-endpoint", 2, "Max conns per endpoint")
	fs.DurationVar(&c.rpcTimeout, "transport.rpc-timeout", 3*time.Second, "RPC timeout")
	fs.StringVar(&c.otelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&c.otelService, "otel.service", "langchain", "OpenTelemetry service name")
}

func (c *callFlags) config() *runnable.Config {
	cfg := &runnable.Config{RunName: c.runName}
	if len(c.overrides.m) > 0 {
		cfg.Configurable = c.overrides.m
	}
	return cfg
}

// setup builds the chain and wires telemetry. The returned shutdown closes
// both.
func (c *callFlags) setup(usage string) (*Chain, func(), error) {
	if c.manifest == "" {
		fmt.Fprint(os.Stderr, usage)
		return nil, nil, fmt.Errorf("-manifest is required")
	}
	m, err := LoadManifest(c.manifest)
	if err != nil {
		return nil, nil, err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(c.otelEndpoint, c.otelService)
	if err != nil {
		return nil, nil, fmt.Errorf("otel setup: %w", err)
	}

	trOpts := []remote.Option{remote.WithMaxConnsPerEndpoint(c.maxConns)}
	if c.rpcTimeout > 0 {
		trOpts = append(trOpts, remote.WithRPCTimeout(c.rpcTimeout))
	}
	chain, err := BuildChain(m, trOpts...)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, err
	}
	cleanup := func() {
		_ = chain.Close()
		_ = shutdown(context.Background())
	}
	return chain, cleanup, nil
}

func cmdInvoke(args []string) error {
	var cf callFlags
	stream := false
	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf.register(fs)
	fs.BoolVar(&stream, "stream", stream, "Stream output chunks")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, invokeUsage)
		return err
	}

	data, err := readInput(cf.input)
	if err != nil {
		return err
	}
	input := &structpb.Struct{}
	if err := protojson.Unmarshal(data, input); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	chain, cleanup, err := cf.setup(invokeUsage)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if stream {
		s, err := chain.Stream(ctx, input, cf.config())
		if err != nil {
			return err
		}
		defer s.Close()
		for s.Next() {
			if err := printJSON(s.Current()); err != nil {
				return err
			}
		}
		return s.Err()
	}

	out, err := chain.Invoke(ctx, input, cf.config())
	if err != nil {
		return err
	}
	return printJSON(out)
}

func cmdBatch(args []string) error {
	var cf callFlags
	maxConcurrency := 0
	returnExceptions := false
	async := false
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf.register(fs)
	fs.IntVar(&maxConcurrency, "max-concurrency", maxConcurrency, "Bound parallel dispatch")
	fs.BoolVar(&returnExceptions, "return-exceptions", returnExceptions, "Report per-item failures")
	fs.BoolVar(&async, "async", async, "Use cooperative scheduling")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, batchUsage)
		return err
	}

	data, err := readInput(cf.input)
	if err != nil {
		return err
	}
	list := &structpb.ListValue{}
	if err := protojson.Unmarshal(data, list); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	inputs := make([]*structpb.Struct, len(list.Values))
	for i, v := range list.Values {
		s := v.GetStructValue()
		if s == nil {
			return fmt.Errorf("parse input: item %d is not an object", i)
		}
		inputs[i] = s
	}

	chain, cleanup, err := cf.setup(batchUsage)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cf.config()
	cfg.MaxConcurrency = maxConcurrency
	opts := runnable.BatchOptions{ReturnExceptions: returnExceptions}

	ctx := context.Background()
	var results []runnable.Result[*structpb.Struct]
	if async {
		results, err = chain.ABatch(ctx, inputs, []*runnable.Config{cfg}, opts)
	} else {
		results, err = chain.Batch(ctx, inputs, []*runnable.Config{cfg}, opts)
	}
	if err != nil {
		return err
	}

	out := &structpb.ListValue{Values: make([]*structpb.Value, len(results))}
	for i, r := range results {
		if r.Err != nil {
			out.Values[i] = structpb.NewStructValue(&structpb.Struct{
				Fields: map[string]*structpb.Value{
					"error": structpb.NewStringValue(r.Err.Error()),
				},
			})
			continue
		}
		out.Values[i] = structpb.NewStructValue(r.Value)
	}
	return printJSON(out)
}

func cmdSpecs(args []string) error {
	manifest := ""
	fs := flag.NewFlagSet("specs", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&manifest, "manifest", manifest, "Chain manifest")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, specsUsage)
		return err
	}
	if manifest == "" {
		fmt.Fprint(os.Stderr, specsUsage)
		return fmt.Errorf("-manifest is required")
	}
	m, err := LoadManifest(manifest)
	if err != nil {
		return err
	}
	chain, err := BuildChain(m)
	if err != nil {
		return err
	}
	defer chain.Close()

	return writeSpecs(os.Stdout, chain.ConfigSpecs())
}

func writeSpecs(w io.Writer, specs []runnable.FieldSpec) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tDEFAULT\tDESCRIPTION")
	for _, s := range specs {
		def := ""
		if s.Default != nil {
			def = fmt.Sprintf("%v", s.Default)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Annotation, def, s.Description)
	}
	return tw.Flush()
}

func cmdProto(args []string) error {
	out := ""
	fs := flag.NewFlagSet("proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&out, "out", out, "Write the .proto source to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, protoUsage)
		return err
	}

	desc, err := remote.BuildDescriptors()
	if err != nil {
		return err
	}
	if out == "" {
		return remote.Render(desc, os.Stdout)
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return remote.Render(desc, f)
}

// readInput resolves the -input flag: "-" reads stdin, "@path" reads a
// file, anything else is literal JSON.
func readInput(v string) ([]byte, error) {
	switch {
	case v == "-":
		return io.ReadAll(os.Stdin)
	case strings.HasPrefix(v, "@"):
		return os.ReadFile(v[1:])
	default:
		return []byte(v), nil
	}
}

func printJSON(m proto.Message) error {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
