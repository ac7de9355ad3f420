package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/uireg/internal/analyzer"
	"github.com/vango-dev/uireg/internal/config"
	"github.com/vango-dev/uireg/internal/deps"
	"github.com/vango-dev/uireg/internal/errors"
)

func analyzeCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		demoFile string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Show what the registry sees in a component file",
		Long: `Parse a component file and print its exported components, its
imports and the npm dependencies they imply.

With --demo, the demo file is analysed too and its imports are classified
against the component: external packages, internal registry imports and
self-imports that must be removed before previewing.

Examples:
  uireg analyze Button.tsx
  uireg analyze Button.tsx --demo demo.tsx --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runAnalyze(cmd.OutOrStdout(), cfg, args[0], demoFile, asJSON)
		},
	}

	cmd.Flags().StringVarP(&demoFile, "demo", "d", "", "Demo file to classify against the component")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis as JSON")

	return cmd
}

type analysis struct {
	Component      analyzer.Result      `json:"component"`
	Dependencies   deps.Manifest        `json:"dependencies"`
	Demo           *analyzer.Result     `json:"demo,omitempty"`
	DemoComponent  string               `json:"demoComponent,omitempty"`
	Classification *deps.Classification `json:"classification,omitempty"`
}

func runAnalyze(out io.Writer, cfg *config.Config, codeFile, demoFile string, asJSON bool) error {
	a := analyzer.New(analyzer.WithVersions(analyzer.StaticVersions(cfg.Versions.Declared)))

	code, err := readSource(codeFile)
	if err != nil {
		return err
	}
	res := analysis{Component: a.Analyze(code)}
	res.Dependencies = res.Component.Dependencies()
	if res.Component.Empty() {
		return errors.New("E305").WithDetailf("%s has no exported component or does not parse", codeFile)
	}

	if demoFile != "" {
		demo, err := readSource(demoFile)
		if err != nil {
			return err
		}
		d := a.Analyze(demo)
		res.Demo = &d
		res.DemoComponent, _ = d.EntryComponent()
		c := deps.Classify(res.Component.Exports, res.Component.Imports, d.Imports)
		res.Classification = &c
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printAnalysis(out, res)
	return nil
}

func printAnalysis(out io.Writer, res analysis) {
	fmt.Fprintf(out, "Exports:      %s\n", strings.Join(res.Component.Exports, ", "))
	if res.Component.DefaultExport != "" {
		fmt.Fprintf(out, "Default:      %s\n", res.Component.DefaultExport)
	}
	fmt.Fprintln(out, "Dependencies:")
	printManifest(out, res.Dependencies)

	if res.Classification == nil {
		return
	}
	c := res.Classification
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Demo renders: %s\n", res.DemoComponent)
	fmt.Fprintln(out, "External:")
	printManifest(out, c.External)
	if len(c.Internal) > 0 {
		fmt.Fprintln(out, "Internal:")
		for _, spec := range c.Internal {
			fmt.Fprintf(out, "  %s\n", spec)
		}
	}
	if len(c.SelfImports) > 0 {
		fmt.Fprintln(out, "Self-imports (remove before previewing):")
		for _, imp := range c.SelfImports {
			fmt.Fprintf(out, "  %s\n", imp.Statement)
		}
	}
}

func printManifest(out io.Writer, m deps.Manifest) {
	if len(m) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	names := m.Packages()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s@%s\n", name, m[name])
	}
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New("E360").WithDetail(path).Wrap(err)
	}
	return string(data), nil
}
