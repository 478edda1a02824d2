// Package pipeline drives the fetch → build → layout → mount flow and the
// step replay of a match.
//
// The pipeline is the single place where matcher responses turn into
// mounted graphs. It is used by the render and replay commands as well as by
// the live view server, so every entry point shows the same behavior.
//
// # Architecture
//
// Two independent flows share one [State]:
//
//  1. Text change: validate → store → fetch graph → build → mount
//  2. Step change: clamp → fetch step → apply replay state to both roles
//
// A text change resets the match; a step change never refetches graphs.
// Each flow is guarded by a [fetch.Guard], so only the newest response of a
// stream is applied.
//
// # Usage
//
//	runner := pipeline.NewRunner(client, host, pipeline.Options{Logger: logger})
//	if err := runner.SetText(ctx, replay.RoleCode, code); err != nil {
//	    return err
//	}
//	if err := runner.SetText(ctx, replay.RolePattern, pattern); err != nil {
//	    return err
//	}
//	if err := runner.StartMatch(ctx); err != nil {
//	    return err
//	}
//	err := runner.Next(ctx)
package pipeline

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pdaviz/pkg/core/build"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/graph"
	"github.com/matzehuels/pdaviz/pkg/matcher"
)

// Format constants for output formats.
const (
	FormatPNG  = graph.FormatPNG
	FormatSVG  = graph.FormatSVG
	FormatHTML = graph.FormatHTML
	FormatJSON = graph.FormatJSON
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatPNG:  true,
	FormatSVG:  true,
	FormatHTML: true,
	FormatJSON: true,
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: png, svg, html, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// Matcher is the part of the matcher service the pipeline uses.
// [*matcher.Client] implements it.
type Matcher interface {
	FetchGraph(ctx context.Context, role replay.Role, code string) ([]*build.Payload, error)
	Match(ctx context.Context, code, pattern string) (*matcher.MatchResult, error)
	Step(ctx context.Context, step int) (*matcher.Step, error)
	Validate(ctx context.Context, text, lang string) (*matcher.Validation, error)
}

var _ Matcher = (*matcher.Client)(nil)

// Options configures a [Runner].
type Options struct {
	// Langs maps each role to the language passed to the validate
	// endpoint. Missing roles use matcher.LangCode and matcher.LangPattern.
	Langs map[replay.Role]string

	// SkipValidation stores text without asking the matcher to validate it.
	SkipValidation bool

	// Notify receives every failure that is reported to the user: transport
	// and backend failures and rejected payloads. Stale responses are never
	// reported.
	Notify func(kind string, err error)

	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	langs := map[replay.Role]string{
		replay.RoleCode:    matcher.LangCode,
		replay.RolePattern: matcher.LangPattern,
	}
	for role, lang := range o.Langs {
		if lang != "" {
			langs[role] = lang
		}
	}
	o.Langs = langs
	if o.Notify == nil {
		o.Notify = func(string, error) {}
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}
