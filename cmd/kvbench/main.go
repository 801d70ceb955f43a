package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"kvcore/config"
	"kvcore/engine"
	"kvcore/harness"
	"kvcore/lib/logger"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to backend properties JSON file (optional)")
		variants   = flag.String("variant", "", "Comma separated backend variants to compare (default: all)")
		clients    = flag.Int("clients", 8, "Concurrent clients")
		duration   = flag.Duration("duration", 5*time.Second, "Run length per variant; 0 to bound by -ops")
		ops        = flag.Int("ops", 0, "Operation budget per variant; 0 for unlimited within -duration")
		keys       = flag.Int("keys", 10000, "Distinct keys per value family")
		writeRatio = flag.Float64("write-ratio", 0.2, "Share of mutating operations, 0 to 1")
		seed       = flag.Int64("seed", 1, "Random seed for the operation mix")
		dir        = flag.String("dir", "", "Directory for append logs (default: a temporary directory)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging to stderr")
	)
	flag.Parse()

	props := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		props = *loaded
	}
	if *verbose {
		props.Log.Level = "debug"
	}
	logger.Setup(os.Stderr, &props.Log)

	selected, err := parseVariants(*variants)
	if err != nil {
		fatalf("%v", err)
	}

	logDir := *dir
	if logDir == "" {
		tmp, err := os.MkdirTemp("", "kvbench-")
		if err != nil {
			fatalf("Failed to create log directory: %v", err)
		}
		defer os.RemoveAll(tmp)
		logDir = tmp
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := harness.LoadConfig{
		Clients:    *clients,
		Duration:   *duration,
		Operations: *ops,
		KeySpace:   *keys,
		WriteRatio: *writeRatio,
		Seed:       *seed,
	}

	var reports []*harness.Report
	var names []config.Variant
	for _, variant := range selected {
		if ctx.Err() != nil {
			break
		}
		run := props
		run.Variant = variant
		run.AppendFilename = filepath.Join(logDir, string(variant)+"-"+time.Now().Format("20060102150405")+".aof")

		report, err := benchmark(ctx, &run, cfg)
		if err != nil {
			fatalf("Benchmark of %s failed: %v", variant, err)
		}
		reports = append(reports, report)
		names = append(names, variant)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "variant\tops\terrors\tops/s\tp50\tp90\tp99\tmax\t")
	for i, r := range reports {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\t%v\t%v\t%v\t%v\t\n",
			names[i], r.Operations, r.Errors, r.OpsPerSec,
			r.Latency.P50, r.Latency.P90, r.Latency.P99, r.Latency.Max)
	}
	w.Flush()
}

func benchmark(ctx context.Context, props *config.Properties, cfg harness.LoadConfig) (*harness.Report, error) {
	b, err := engine.New(props)
	if err != nil {
		return nil, err
	}
	report, err := harness.Load(ctx, b, cfg)
	if closeErr := b.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return report, err
}

func parseVariants(list string) ([]config.Variant, error) {
	if strings.TrimSpace(list) == "" {
		return config.Variants(), nil
	}
	var out []config.Variant
	for _, name := range strings.Split(list, ",") {
		v := config.Variant(strings.TrimSpace(name))
		switch v {
		case config.VariantMemory, config.VariantAOF, config.VariantSharded:
			out = append(out, v)
		default:
			return nil, fmt.Errorf("unknown variant %q, want one of %v", name, config.Variants())
		}
	}
	return out, nil
}

func fatalf(format string, v ...any) {
	logger.Errorf(format, v...)
	os.Exit(1)
}
