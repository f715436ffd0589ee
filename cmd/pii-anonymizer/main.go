// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"pii-anonymizer/internal/anonymizer"
	"pii-anonymizer/internal/classifier"
	"pii-anonymizer/internal/config"
	"pii-anonymizer/internal/detector"
	"pii-anonymizer/internal/document"
	"pii-anonymizer/internal/encryption"
	"pii-anonymizer/internal/generator"
	"pii-anonymizer/internal/ledger"
	"pii-anonymizer/internal/observability"
	"pii-anonymizer/internal/version"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// cliFlags holds parsed command line values
type cliFlags struct {
	input       string
	output      string
	mode        string
	documentID  string
	export      string
	configFile  string
	reverse     bool
	debug       bool
	noColor     bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	fs := flag.NewFlagSet("pii-anonymizer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	f := &cliFlags{}
	fs.StringVar(&f.input, "input", "", "Path to the input document (.txt, .docx or .pdf)")
	fs.StringVar(&f.output, "output", "", "Path to the output document (default: next to the input)")
	fs.StringVar(&f.mode, "mode", "", "Anonymization mode: replace, encrypt or blur (default from config)")
	fs.BoolVar(&f.reverse, "reverse", false, "Restore an encrypt-mode document; requires -document-id")
	fs.StringVar(&f.documentID, "document-id", "", "Document id printed when the document was anonymized")
	fs.StringVar(&f.export, "export", "", "Write a JSON audit of the document's ledger entries to this path")
	fs.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML)")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging of every processing step")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return f, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if flags.showVersion {
		fmt.Fprintln(stdout, version.Info())
		return 0
	}

	cfg, err := loadConfiguration(flags.configFile, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if flags.mode != "" {
		cfg.Defaults.Mode = flags.mode
	}
	if flags.debug {
		cfg.Defaults.Debug = true
	}
	if flags.noColor || !isTerminal(stdout) || os.Getenv("NO_COLOR") != "" {
		cfg.Defaults.NoColor = true
	}
	color.NoColor = cfg.Defaults.NoColor

	observer := newObserver(cfg, stderr)

	if err := execute(flags, cfg, observer, stdout); err != nil {
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfiguration loads an explicit config file strictly and a discovered
// one leniently, warning and falling back to defaults.
func loadConfiguration(configFile string, stderr io.Writer) (*config.Config, error) {
	if configFile != "" {
		return config.LoadConfig(configFile)
	}
	cfg, err := config.LoadConfigOrDefault("")
	if err != nil {
		fmt.Fprintf(stderr, "Warning: Error loading config file: %v\n", err)
		fmt.Fprintf(stderr, "Using default configuration\n")
	}
	return cfg, nil
}

func newObserver(cfg *config.Config, stderr io.Writer) *observability.StandardObserver {
	level := observability.ParseLevel(strings.ToLower(cfg.Defaults.Observability))
	if cfg.Defaults.Debug {
		level = observability.ObservabilityDebug
	}
	observer := observability.NewStandardObserver(level, stderr)
	if cfg.Defaults.Debug {
		observer.DebugObserver = observability.NewDebugObserver(stderr)
	}
	return observer
}

func execute(flags *cliFlags, cfg *config.Config, observer *observability.StandardObserver, stdout io.Writer) error {
	if flags.reverse && flags.documentID == "" {
		return fmt.Errorf("-reverse requires -document-id")
	}
	if flags.input == "" && !(flags.export != "" && flags.documentID != "") {
		return fmt.Errorf("-input is required (or -export with -document-id)")
	}

	store, err := ledger.OpenBoltStore(cfg.Storage.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // read-only paths have nothing to flush
	if observer.DebugObserver != nil {
		observer.DebugObserver.LogDetail("main", "ledger: "+store.Path())
	}

	if flags.input == "" {
		return exportAudit(store, flags.documentID, flags.export, stdout)
	}

	doc, err := document.Open(flags.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}

	if flags.reverse {
		return reverseDocument(flags, cfg, store, doc, observer, stdout)
	}
	return anonymizeDocument(flags, cfg, store, doc, observer, stdout)
}

func anonymizeDocument(flags *cliFlags, cfg *config.Config, store ledger.Store, doc document.Document,
	observer *observability.StandardObserver, stdout io.Writer) error {
	mode, err := anonymizer.ParseMode(cfg.Defaults.Mode)
	if err != nil {
		return err
	}

	det, closeDetector, err := buildDetector(cfg, observer)
	if err != nil {
		return err
	}
	defer closeDetector()

	strategy, closeStrategy, err := buildStrategy(mode, cfg, observer)
	if err != nil {
		return err
	}
	defer closeStrategy()

	engine, err := anonymizer.NewEngine(det, strategy, store, anonymizer.WithObserver(observer))
	if err != nil {
		return err
	}

	output := flags.output
	if output == "" {
		output = document.DefaultOutputPath(flags.input, "anonymized", doc.OutputExtension())
	}

	result, err := engine.Process(doc.Units(), flags.input, output)
	if err != nil {
		return err
	}
	if err := doc.Write(output, result.Units); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	bold := color.New(color.FgWhite, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	bold.Fprintf(stdout, "Anonymized %s (%s mode)\n", flags.input, mode)
	printPageCount(stdout, doc)
	fmt.Fprintf(stdout, "  entities found:     %d\n", result.Stats.Found)
	green.Fprintf(stdout, "  entities processed: %d\n", result.Stats.Processed)
	fmt.Fprintf(stdout, "  output:             %s\n", output)
	cyan.Fprintf(stdout, "  document id:        %s\n", result.DocumentID)
	if !mode.Reversible() {
		color.New(color.FgYellow).Fprintf(stdout, "  %s mode cannot be reversed\n", mode)
	}

	if flags.export != "" {
		return exportAudit(store, result.DocumentID, flags.export, stdout)
	}
	return nil
}

func reverseDocument(flags *cliFlags, cfg *config.Config, store ledger.Store, doc document.Document,
	observer *observability.StandardObserver, stdout io.Writer) error {
	provider, err := encryption.NewProviderFromFile(cfg.Storage.KeyPath, observer)
	if err != nil {
		return err
	}
	defer provider.Close() //nolint:errcheck // zeroing the key cannot fail meaningfully

	// Reverse only scans placeholders, so the pattern detector is enough here.
	det, err := detector.NewPatternDetector(nil)
	if err != nil {
		return err
	}

	engine, err := anonymizer.NewEngine(det, anonymizer.NewEncryptStrategy(provider), store,
		anonymizer.WithObserver(observer))
	if err != nil {
		return err
	}

	result, err := engine.Reverse(doc.Units(), flags.documentID)
	if err != nil {
		return err
	}

	output := flags.output
	if output == "" {
		output = document.DefaultOutputPath(flags.input, "restored", doc.OutputExtension())
	}
	if err := doc.Write(output, result.Units); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	color.New(color.FgWhite, color.Bold).Fprintf(stdout, "Restored %s\n", flags.input)
	color.New(color.FgGreen).Fprintf(stdout, "  placeholders restored: %d\n", result.Restored)
	if result.Failures.HasErrors() {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(stdout, "  placeholders left:     %d (unresolved %d, undecryptable %d)\n",
			result.Failures.Count(),
			len(result.Failures.GetErrorsByType(anonymizer.ErrorUnresolved)),
			len(result.Failures.GetErrorsByType(anonymizer.ErrorEncryption)))
		for _, failure := range result.Failures.GetErrors() {
			yellow.Fprintf(stdout, "    - %s\n", failure.Message)
		}
	}
	fmt.Fprintf(stdout, "  output:                %s\n", output)

	if flags.export != "" {
		return exportAudit(store, flags.documentID, flags.export, stdout)
	}
	return nil
}

// buildDetector returns the configured detector and a release function.
func buildDetector(cfg *config.Config, observer *observability.StandardObserver) (detector.Detector, func(), error) {
	noop := func() {}

	switch cfg.Detection.Strategy {
	case config.StrategyModel:
		if !classifier.ModelAvailable(cfg.Model.Dir) {
			return nil, noop, fmt.Errorf("model directory %q is missing model files", cfg.Model.Dir)
		}
		minLengths, err := cfg.MinLengths()
		if err != nil {
			return nil, noop, err
		}
		cls, err := classifier.LoadONNXClassifier(classifier.Options{
			Dir:           cfg.Model.Dir,
			SeqLen:        cfg.Model.SeqLen,
			SharedLibrary: cfg.Model.SharedLibrary,
			LowerCase:     cfg.Model.LowerCase,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("load classifier: %w", err)
		}
		if observer.DebugObserver != nil {
			observer.DebugObserver.LogDetail("main", fmt.Sprintf("model detector loaded from %s", cfg.Model.Dir))
		}
		release := func() {
			if err := cls.Close(); err != nil {
				observer.LogEvent("main", "close_classifier", false, map[string]interface{}{"error": err.Error()})
			}
		}
		return detector.NewModelDetector(cls, detector.NewEntityValidator(minLengths)), release, nil
	default:
		extra, err := cfg.ExtraPatterns()
		if err != nil {
			return nil, noop, err
		}
		det, err := detector.NewPatternDetector(extra)
		if err != nil {
			return nil, noop, err
		}
		return det, noop, nil
	}
}

// buildStrategy returns the strategy for mode and a release function.
func buildStrategy(mode anonymizer.Mode, cfg *config.Config, observer *observability.StandardObserver) (anonymizer.Strategy, func(), error) {
	noop := func() {}

	switch mode {
	case anonymizer.ModeEncrypt:
		provider, err := encryption.NewProviderFromFile(cfg.Storage.KeyPath, observer)
		if err != nil {
			return nil, noop, err
		}
		release := func() { provider.Close() } //nolint:errcheck // zeroing the key cannot fail meaningfully
		return anonymizer.NewEncryptStrategy(provider), release, nil
	case anonymizer.ModeBlur:
		strategy, err := anonymizer.NewBlurStrategy(cfg.Defaults.MaskChar)
		if err != nil {
			return nil, noop, err
		}
		return strategy, noop, nil
	default:
		gen := generator.New(generator.WithYearRange(cfg.Generator.YearMin, cfg.Generator.YearMax))
		return anonymizer.NewReplaceStrategy(gen), noop, nil
	}
}

func exportAudit(store ledger.Store, documentID, path string, stdout io.Writer) error {
	audit, err := ledger.BuildAuditLog(store, documentID)
	if err != nil {
		return fmt.Errorf("build audit log: %w", err)
	}
	audit.ExportedBy = version.Short()
	if err := audit.Save(path); err != nil {
		return fmt.Errorf("save audit log: %w", err)
	}
	fmt.Fprintf(stdout, "  audit log:          %s (%d entries)\n", path, audit.Summary.TotalMappings)
	return nil
}

// pagedDocument is implemented by formats that know their page count (PDF).
type pagedDocument interface {
	Pages() int
}

func printPageCount(w io.Writer, doc document.Document) {
	if paged, ok := doc.(pagedDocument); ok {
		fmt.Fprintf(w, "  pages:              %d\n", paged.Pages())
	}
}

// isTerminal checks if the writer is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
