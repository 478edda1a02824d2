// Package pkg provides the libraries behind pdaviz, a visualizer for
// pattern matching with pushdown automata.
//
// # Overview
//
// A matcher backend parses Python code into syntax trees and pytterns
// patterns into pushdown automata, and replays a match step by step. pdaviz
// turns its JSON into laid-out, colored graphs and keeps them in sync with
// the replay. The pkg directory is organized into four main areas:
//
//  1. [core] - Domain logic (graph model, builders, layout, collapse, replay)
//  2. [viz] - Mounted graph instances per role, viewport and export
//  3. [pipeline] - Orchestration (validate → fetch → build → mount, step replay)
//  4. [graph] - Serializable frames of a laid-out instance
//
// # Architecture
//
// The typical data flow through pdaviz:
//
//	Code / pattern text
//	         ↓
//	    [matcher] package (validate, fetch graph JSON, match, step)
//	         ↓
//	    [core/build] package (tree and automaton payloads → model.Graph)
//	         ↓
//	    [core/layout] package (tree grid or layered automaton placement)
//	         ↓
//	    [viz] package (instances, collapse, replay colors, camera)
//	         ↓
//	    PNG/SVG/HTML/JSON output, HTTP and websocket views
//
// # Quick Start
//
//	client, _ := matcher.New("http://localhost:5000")
//	host := viz.NewHost(viz.Options{})
//	runner := pipeline.NewRunner(client, host, pipeline.Options{})
//
//	result, err := runner.Render(ctx, replay.RoleCode, code, pipeline.RenderOptions{
//	    Formats: []string{"svg"},
//	})
//
// # Main Packages
//
// ## Core Domain Logic
//
// [core/model] - Directed graph of typed nodes with parent/child links,
// conditions and automaton labels.
//
// [core/build] - Decodes matcher payloads into graphs, splitting a response
// into labeled sub-graphs.
//
// [core/layout] - Tree and automaton placement, fan-out handling and the
// optional Graphviz placer.
//
// [core/collapse] - Folding of tree sub-graphs behind their root.
//
// [core/replay] - Match state, role colors and camera follow.
//
// ## Infrastructure
//
// [cache] - Rendered artifact cache with file, Redis and MongoDB backends.
//
// [session] - Persisted replay positions for the replay command.
//
// [server] - chi routes and websocket push for live views.
//
// [watch] - Debounced source file watching.
//
// [observability] - Hooks and Prometheus metrics.
//
// [core]: github.com/matzehuels/pdaviz/pkg/core
// [viz]: github.com/matzehuels/pdaviz/pkg/viz
// [pipeline]: github.com/matzehuels/pdaviz/pkg/pipeline
// [graph]: github.com/matzehuels/pdaviz/pkg/graph
// [matcher]: github.com/matzehuels/pdaviz/pkg/matcher
// [core/model]: github.com/matzehuels/pdaviz/pkg/core/model
// [core/build]: github.com/matzehuels/pdaviz/pkg/core/build
// [core/layout]: github.com/matzehuels/pdaviz/pkg/core/layout
// [core/collapse]: github.com/matzehuels/pdaviz/pkg/core/collapse
// [core/replay]: github.com/matzehuels/pdaviz/pkg/core/replay
// [cache]: github.com/matzehuels/pdaviz/pkg/cache
// [session]: github.com/matzehuels/pdaviz/pkg/session
// [server]: github.com/matzehuels/pdaviz/pkg/server
// [watch]: github.com/matzehuels/pdaviz/pkg/watch
// [observability]: github.com/matzehuels/pdaviz/pkg/observability
package pkg
