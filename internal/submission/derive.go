package submission

import (
	"strings"

	"github.com/vango-dev/uireg/internal/analyzer"
	"github.com/vango-dev/uireg/internal/deps"
	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/preview"
	"github.com/vango-dev/uireg/internal/store"
)

// Details are the descriptive fields of the final form step.
type Details struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Public          bool     `json:"isPublic"`
	PreviewUploadID string   `json:"previewUploadId,omitempty"`
	License         string   `json:"license,omitempty"`
	WebsiteURL      string   `json:"websiteUrl,omitempty"`
}

// SlugStatus is the slug field and the state of its availability check.
type SlugStatus struct {
	Value string `json:"value"`

	// ManuallyEdited is set once the user types a slug; from then on the
	// slug no longer follows the name.
	ManuallyEdited bool `json:"manuallyEdited"`

	Checking  bool   `json:"checking"`
	Checked   bool   `json:"checked"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Inputs is everything the form state is derived from. The analyses must
// belong to Code and Demo.
type Inputs struct {
	Code string
	Demo string

	Primary      analyzer.Result
	DemoAnalysis analyzer.Result

	// Entered holds the slugs typed for internal specifiers. Entries for
	// specifiers that are no longer imported are ignored.
	Entered map[string]string

	Details Details
	Slug    SlugStatus

	// Baseline overrides the preview's default runtime packages.
	Baseline deps.Manifest
}

// Snapshot is the observable state of a submission.
type Snapshot struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
	State   State  `json:"state"`

	Code string `json:"code"`
	Demo string `json:"demo"`

	Exports       []string          `json:"exports"`
	DemoComponent string            `json:"demoComponent,omitempty"`
	SelfImports   []analyzer.Import `json:"selfImports"`
	External      deps.Manifest     `json:"external"`
	Internal      map[string]string `json:"internal"`
	MissingSlugs  []string          `json:"missingSlugs,omitempty"`

	PreviewReady bool            `json:"previewReady"`
	Bundle       *preview.Bundle `json:"bundle,omitempty"`

	Details Details    `json:"details"`
	Slug    SlugStatus `json:"slug"`

	// FieldErrors block submitting; each names its field.
	FieldErrors []errors.Payload `json:"fieldErrors,omitempty"`

	// SubmitError is the failure of the last submit, if it failed.
	SubmitError *errors.Payload `json:"submitError,omitempty"`

	// Warnings are problems that did not stop a submit.
	Warnings []errors.Payload `json:"warnings,omitempty"`

	Record   *store.Component `json:"record,omitempty"`
	ViewPath string           `json:"viewPath,omitempty"`

	classification deps.Classification
}

// Derive computes the form state from in. It is pure: the same inputs
// always give the same snapshot, and nothing outside in is consulted.
func Derive(in Inputs) Snapshot {
	c := deps.Classify(in.Primary.Exports, in.Primary.Imports, in.DemoAnalysis.Imports)
	internal := deps.InternalMap(c, in.Entered)
	missing := deps.MissingSlugs(internal)
	demoComponent, _ := in.DemoAnalysis.EntryComponent()

	snap := Snapshot{
		Code:           in.Code,
		Demo:           in.Demo,
		Exports:        nonNil(in.Primary.Exports),
		DemoComponent:  demoComponent,
		SelfImports:    c.SelfImports,
		External:       c.External,
		Internal:       internal,
		MissingSlugs:   missing,
		Details:        in.Details,
		Slug:           in.Slug,
		classification: c,
	}
	if snap.SelfImports == nil {
		snap.SelfImports = []analyzer.Import{}
	}
	snap.Details.Tags = append([]string(nil), in.Details.Tags...)

	demoBlank := strings.TrimSpace(in.Demo) == ""
	switch {
	case len(in.Primary.Exports) == 0:
		snap.State = EnteringCode
	case demoBlank:
		snap.State = EnteringDemo
	case len(c.SelfImports) > 0:
		snap.State = ResolvingImports
	case len(missing) > 0:
		snap.State = ResolvingInternalDeps
	default:
		snap.State = EnteringDetails
	}

	if snap.State == EnteringDetails {
		bundle, ok := preview.Assemble(preview.Input{
			Code:            in.Code,
			Demo:            in.Demo,
			PrimaryExports:  in.Primary.Exports,
			PrimaryDefault:  in.Primary.DefaultExport,
			DemoComponent:   demoComponent,
			DemoDefault:     in.DemoAnalysis.DefaultExport,
			Internal:        internal,
			SelfImports:     len(c.SelfImports),
			PrimaryExternal: c.PrimaryExternal,
			DemoExternal:    c.DemoExternal,
			Baseline:        in.Baseline,
		})
		snap.PreviewReady = ok
		snap.Bundle = bundle
	}

	// The name defaults to the first export until the user types one.
	if snap.PreviewReady && strings.TrimSpace(snap.Details.Name) == "" {
		snap.Details.Name = FormatComponentName(in.Primary.Exports[0])
	}

	snap.FieldErrors = fieldErrors(in, snap)
	return snap
}

func fieldErrors(in Inputs, snap Snapshot) []errors.Payload {
	var errs []*errors.RegistryError

	switch {
	case strings.TrimSpace(in.Code) == "":
		errs = append(errs, errors.New("E300").WithField("code").
			WithDetail("Component code is required"))
	case len(in.Primary.Exports) == 0:
		errs = append(errs, errors.New("E305").WithField("code"))
	case strings.TrimSpace(in.Demo) == "":
		errs = append(errs, errors.New("E300").WithField("demo").
			WithDetail("Demo code is required"))
	}

	for _, imp := range snap.SelfImports {
		errs = append(errs, errors.New("E301").WithField("demo").WithDetail(imp.Statement))
	}
	for _, spec := range snap.MissingSlugs {
		errs = append(errs, errors.New("E302").WithField("internal").WithDetail(spec))
	}

	// Detail fields are only judged once the user can see them.
	if snap.PreviewReady {
		d := snap.Details
		for _, re := range []*errors.RegistryError{
			validate("name", d.Name, nameValidators...),
			validate("slug", snap.Slug.Value, slugValidators...),
			validate("description", d.Description, descriptionValidators...),
			validate("license", d.License, licenseValidators...),
			validate("websiteUrl", d.WebsiteURL, websiteValidators...),
			ValidateTags(d.Tags),
		} {
			if re != nil {
				errs = append(errs, re)
			}
		}
		if snap.Slug.Checked && !snap.Slug.Available {
			errs = append(errs, errors.New("E303").WithField("slug").
				WithDetailf("You already have a component at %q", snap.Slug.Value))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	out := make([]errors.Payload, len(errs))
	for i, re := range errs {
		out[i] = re.Payload()
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
