package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/observability"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/queue"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/pkg/weighlink"
)

const defaultConfig = "./configs/weighlink.yaml"

func main() {
	logger := observability.NewLogger("info", "console", os.Stderr)
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:], os.Stdout)
	case "drain":
		err = drainCommand(os.Args[2:], os.Stdout)
	case "inspect":
		err = inspectCommand(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		printUsage(os.Stderr)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		logger.Fatal().Err(err).Str("cmd", cmd).Msg("weighlink failed")
	}
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", defaultConfig, "Path to gateway configuration file")
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := weighlink.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := weighlink.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	s := cfg.Sources
	fmt.Fprintf(w, "config %s ok: sink=%s queue=%s serial=%d ble=%d opcua=%t nats=%d http=%t\n",
		*cfgPath, cfg.Sink.Kind, cfg.Queue.Path,
		len(s.Serial), len(s.BLE), s.OPCUA.Endpoint != "", len(s.NATS), s.HTTP.Addr != "")
	for _, p := range cfg.SourceProblems() {
		fmt.Fprintf(w, "warning: %v (source will not start)\n", p)
	}
	return nil
}

// drainCommand replays the queue once against the configured sink without starting sources.
func drainCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("drain", flag.ExitOnError)
	cfgPath := configFlag(fs)
	timeout := fs.Duration("timeout", 5*time.Minute, "Give up after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := weighlink.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	gw, err := weighlink.NewGateway(cfg)
	if errors.Is(err, queue.ErrQueueLocked) {
		return fmt.Errorf("queue %s is owned by a running gateway, stop it or let it drain: %w", cfg.Queue.Path, err)
	}
	if err != nil {
		return err
	}
	defer gw.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	res, err := gw.Drain(ctx)
	fmt.Fprintf(w, "drain %s: queued=%d delivered=%d cleared=%t\n", res.ID, res.Queued, res.Delivered, res.Cleared)
	if errors.Is(err, weighlink.ErrSinkUnavailable) {
		return fmt.Errorf("sink %q could not be opened: %w", cfg.Sink.Kind, err)
	}
	return err
}

// inspectCommand prints the records waiting in the queue file.
func inspectCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	cfgPath := configFlag(fs)
	asJSON := fs.Bool("json", false, "Print one JSON object per record")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := weighlink.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	recs, err := queue.ReadFile(cfg.Queue.Path)
	if err != nil {
		return err
	}
	return printRecords(w, recs, *asJSON)
}

func printRecords(w io.Writer, recs []*weighlink.Record, asJSON bool) error {
	if asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		for _, r := range recs {
			row := map[string]any{
				"ts_utc":   r.TimestampText(),
				"value":    r.ValueText(),
				"raw":      r.Raw,
				"metadata": r.Metadata,
			}
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TS_UTC\tVALUE\tRAW\tMETADATA")
	for _, r := range recs {
		meta, err := r.Metadata.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%q\t%s\n", r.TimestampText(), r.ValueText(), r.Raw, meta)
	}
	fmt.Fprintf(tw, "\n%d record(s) queued\n", len(recs))
	return tw.Flush()
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `WeighLink gateway

Usage:
  weighlink <command> [flags]

Commands:
  run        Start the gateway using the provided config
  validate   Load and validate a config file without starting anything
  drain      Replay the local queue to the configured sink once and exit
  inspect    Print the records waiting in the local queue

Examples:
  weighlink run -config %[1]s
  weighlink validate -config %[1]s
  weighlink drain -config %[1]s -timeout 2m
  weighlink inspect -config %[1]s -json
`, defaultConfig)
}
