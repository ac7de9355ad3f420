package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/uireg/internal/analyzer"
	"github.com/vango-dev/uireg/internal/config"
	"github.com/vango-dev/uireg/internal/deps"
	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/preview"
	"github.com/vango-dev/uireg/internal/submission"
)

func previewCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		internal   []string
		removeSelf bool
	)

	cmd := &cobra.Command{
		Use:   "preview <code> <demo>",
		Short: "Print the sandbox configuration for a component and demo",
		Long: `Assemble the live preview of a component and print it as a sandbox
configuration (JSON).

Internal imports must be mapped to registry components with --internal.
Demos that import the component itself are refused unless
--remove-self-imports is given.

Examples:
  uireg preview Button.tsx demo.tsx
  uireg preview Card.tsx demo.tsx --internal @/lib/utils=ada/utils`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			entered, err := parseInternal(internal)
			if err != nil {
				return err
			}
			return runPreview(cmd.OutOrStdout(), cfg, args[0], args[1], entered, removeSelf)
		},
	}

	cmd.Flags().StringArrayVarP(&internal, "internal", "i", nil, "Map an internal import to a component (specifier=username/slug)")
	cmd.Flags().BoolVar(&removeSelf, "remove-self-imports", false, "Remove demo imports of the component itself")

	return cmd
}

func parseInternal(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		spec, ref, ok := strings.Cut(pair, "=")
		if !ok || spec == "" || ref == "" {
			return nil, errors.New("E306").WithField("internal").
				WithDetailf("%q is not specifier=username/slug", pair)
		}
		out[spec] = ref
	}
	return out, nil
}

func runPreview(out io.Writer, cfg *config.Config, codeFile, demoFile string, entered map[string]string, removeSelf bool) error {
	code, err := readSource(codeFile)
	if err != nil {
		return err
	}
	demo, err := readSource(demoFile)
	if err != nil {
		return err
	}

	a := analyzer.New(analyzer.WithVersions(analyzer.StaticVersions(cfg.Versions.Declared)))
	in := submission.Inputs{
		Code:     code,
		Demo:     demo,
		Primary:  a.Analyze(code),
		Entered:  entered,
		Baseline: deps.Manifest(cfg.Preview.Baseline),
	}
	in.DemoAnalysis = a.Analyze(demo)

	snap := submission.Derive(in)
	if removeSelf && len(snap.SelfImports) > 0 {
		in.Demo = deps.RemoveImports(demo, snap.SelfImports)
		in.DemoAnalysis = a.Analyze(in.Demo)
		snap = submission.Derive(in)
	}

	if snap.Bundle == nil {
		for _, p := range snap.FieldErrors {
			errorMsg("%s: %s %s", p.Code, p.Message, p.Detail)
		}
		return errors.New("E342").WithDetailf("The form stops at %s", snap.State)
	}

	data, err := json.MarshalIndent(preview.Sandpack(snap.Bundle, cfg.Preview.ExternalResources), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
