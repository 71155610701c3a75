// cmd/tools/render-batch/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"render-workers/internal/common/config"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
	"render-workers/internal/render/orchestrator"
	"render-workers/internal/render/pipeline"
	"render-workers/internal/render/readiness"
)

type result struct {
	RecordID string   `json:"recordId"`
	Ready    bool     `json:"ready"`
	Status   string   `json:"status,omitempty"`
	VideoURL string   `json:"videoUrl,omitempty"`
	Attempts int      `json:"attempts,omitempty"`
	Category string   `json:"category,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Missing  []string `json:"missing,omitempty"`
	Pending  []string `json:"pending,omitempty"`
	Rejected []string `json:"rejected,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)

	checkFile := checkCmd.String("file", "", "File with one record id per line (default: arguments)")
	renderFile := renderCmd.String("file", "", "File with one record id per line (default: arguments)")
	parallelism := renderCmd.Int("parallelism", 0, "Records rendered at once (default: orchestrator.batch_parallelism)")

	if len(os.Args) < 2 {
		help()
		return 1
	}

	var (
		ids []string
		err error
	)
	switch os.Args[1] {
	case "check":
		checkCmd.Parse(os.Args[2:])
		ids, err = recordIDs(*checkFile, checkCmd.Args())
	case "render":
		renderCmd.Parse(os.Args[2:])
		ids, err = recordIDs(*renderFile, renderCmd.Args())
	default:
		help()
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading record ids: %v\n", err)
		return 1
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one record id is required.")
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, err := pipeline.Open(ctx, cfg, pipeline.Options{Logger: log})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening render pipeline: %v\n", err)
		return 1
	}
	defer pipe.Close()

	var results []result
	switch os.Args[1] {
	case "check":
		results = check(ctx, pipe.Store, pipe.Gate, ids)
	case "render":
		n := *parallelism
		if n <= 0 {
			n = cfg.Orchestrator.BatchParallelism
		}
		results = render(ctx, pipe.Orchestrator, ids, n)
	}

	if err := writeResults(os.Stdout, results); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
		return 1
	}
	return exitCode(results)
}

// recordIDs reads ids from path when set, otherwise from args. Blank lines
// and lines starting with '#' are skipped.
func recordIDs(path string, args []string) ([]string, error) {
	if path == "" {
		return args, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readIDs(f)
}

func readIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func check(ctx context.Context, store orchestrator.RecordStore, gate *readiness.Gate, ids []string) []result {
	results := make([]result, 0, len(ids))
	for _, id := range ids {
		rec, err := store.Get(ctx, id)
		if err != nil {
			results = append(results, result{RecordID: id, Error: err.Error()})
			continue
		}
		report := gate.Evaluate(rec)
		results = append(results, result{
			RecordID: id,
			Ready:    report.Ready,
			Reason:   report.Reason(),
			Missing:  report.Missing,
			Pending:  report.Pending,
			Rejected: report.Rejected,
		})
	}
	return results
}

func render(ctx context.Context, orch *orchestrator.Orchestrator, ids []string, parallelism int) []result {
	batch := orch.RunBatch(ctx, ids, parallelism)
	results := make([]result, 0, len(batch))
	for _, b := range batch {
		results = append(results, fromBatch(b))
	}
	return results
}

func fromBatch(b orchestrator.BatchResult) result {
	if b.Err != nil {
		return result{RecordID: b.RecordID, Error: b.Err.Error()}
	}
	o := b.Outcome
	return result{
		RecordID: b.RecordID,
		Ready:    o.Approved,
		Status:   string(o.Status),
		VideoURL: o.OutputURL,
		Attempts: o.Attempts,
		Category: string(o.Category),
		Reason:   o.Reason,
		Missing:  o.Report.Missing,
		Pending:  o.Report.Pending,
		Rejected: o.Report.Rejected,
	}
}

func writeResults(w io.Writer, results []result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// exitCode is 1 when any record errored, 2 when any record was not ready
// or did not render, 0 otherwise.
func exitCode(results []result) int {
	code := 0
	for _, r := range results {
		switch {
		case r.Error != "":
			return 1
		case !r.Ready:
			code = 2
		case r.Status != "" && r.Status != string(model.StatusDone):
			code = 2
		}
	}
	return code
}

func help() {
	fmt.Println("Usage: render-batch <command> [flags] [record ids...]")
	fmt.Println("\nCommands:")
	fmt.Println("  check   Evaluate readiness of each record without rendering")
	fmt.Println("  render  Render each ready record and write the outcome back")
	fmt.Println("\nOutput is one JSON object per record on stdout.")
}
