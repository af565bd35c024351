package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/confix/pkg/config"
	"github.com/ormasoftchile/confix/pkg/markup"
	"github.com/ormasoftchile/confix/pkg/ordered"
	"github.com/ormasoftchile/confix/pkg/prompt"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets any
// variables not already present, so env-enabled references resolve without
// exporting everything by hand. Lines are KEY=VALUE; comments and blanks are
// skipped.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "confix",
	Short: "Directive-driven configuration processor",
	Long:  "confix — evaluate configuration files with variables, imports, loops, switches and parameter sweeps.",
}

var (
	flagContext []string
	flagSet     []string
	flagOutput  string
	flagPrompt  bool
	flagJSON    bool
)

// --- process ---

var processCmd = &cobra.Command{
	Use:   "process [config.yaml]",
	Short: "Evaluate a configuration to a single result",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFile(args[0])
	if err != nil {
		return err
	}
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	out, err := cfg.Process(cmd.Context(), opts)
	if err != nil {
		return err
	}
	return emit(out.Data(), flagOutput)
}

// --- process-all ---

var processAllCmd = &cobra.Command{
	Use:   "process-all [config.yaml]",
	Short: "Evaluate a configuration to one result per sweep branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessAll,
}

var flagOutputDir string

func runProcessAll(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFile(args[0])
	if err != nil {
		return err
	}
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	branches, err := cfg.ProcessAll(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if flagOutputDir == "" {
		for i, b := range branches {
			if i > 0 {
				fmt.Println("---")
			}
			if err := emit(b.Data(), ""); err != nil {
				return err
			}
		}
		return nil
	}
	if err := os.MkdirAll(flagOutputDir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	for i, b := range branches {
		name := filepath.Join(flagOutputDir, fmt.Sprintf("%s_%d%s", base, i, filepath.Ext(args[0])))
		if err := b.SaveTo(name); err != nil {
			return err
		}
		fmt.Println("wrote", name)
	}
	return nil
}

// --- inspect ---

var inspectCmd = &cobra.Command{
	Use:   "inspect [config.yaml]",
	Short: "Report variables, imports and symbols without evaluating",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFile(args[0])
	if err != nil {
		return err
	}
	report, err := cfg.Inspect()
	if err != nil {
		return err
	}
	if flagJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	return emit(report, flagOutput)
}

// --- walk ---

var walkCmd = &cobra.Command{
	Use:   "walk [config.yaml]",
	Short: "List the configuration's leaf values with their paths",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalk,
}

func runWalk(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFile(args[0])
	if err != nil {
		return err
	}
	for _, entry := range cfg.Walk() {
		fmt.Printf("%s: %v\n", entry.Path, entry.Value)
	}
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("confix %s (%s)\n", version, commit)
	},
}

// buildOptions assembles the variable context from --context files merged in
// order and --set overrides applied on top.
func buildOptions() (config.Options, error) {
	merged := config.New(ordered.NewMap())
	for _, path := range flagContext {
		part, err := config.FromFile(path)
		if err != nil {
			return config.Options{}, err
		}
		merged.DeepUpdate(part)
	}
	for _, kv := range flagSet {
		key, raw, found := strings.Cut(kv, "=")
		if !found {
			return config.Options{}, fmt.Errorf("--set %q: expected key=value", kv)
		}
		value, err := markup.Decode([]byte(raw))
		if err != nil {
			value = raw
		}
		merged.DeepSet(key, value)
	}
	opts := config.Options{Vars: merged.Data()}
	if flagPrompt {
		opts.Prompter = prompt.New()
	}
	return opts, nil
}

// emit writes a structure to stdout as YAML, or to a file in the format its
// extension names.
func emit(v any, output string) error {
	if output == "" {
		data, err := markup.Encode(v, ".yml")
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	}
	return markup.Dump(v, output)
}

func init() {
	for _, c := range []*cobra.Command{processCmd, processAllCmd} {
		c.Flags().StringArrayVarP(&flagContext, "context", "c", nil, "context file (YAML/JSON), repeatable; later files win")
		c.Flags().StringArrayVar(&flagSet, "set", nil, "context override key=value, repeatable")
		c.Flags().BoolVar(&flagPrompt, "prompt", false, "ask interactively for missing variables")
	}
	processCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output file (format from extension)")
	processAllCmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "write one file per branch into this directory")
	inspectCmd.Flags().BoolVar(&flagJSON, "json", false, "print the report as JSON")

	rootCmd.AddCommand(processCmd, processAllCmd, inspectCmd, walkCmd, versionCmd)
}
