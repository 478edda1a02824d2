package nodelink

import (
	"context"

	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/graph"
)

// Render produces the given export format for a frame. JSON is the frame
// itself; the other formats go through [ToDOT] or [RenderHTML].
func Render(ctx context.Context, f *graph.Frame, format string, opts Options) ([]byte, error) {
	switch format {
	case graph.FormatJSON:
		return graph.MarshalFrame(f)
	case graph.FormatHTML:
		return RenderHTML(f, opts)
	case graph.FormatSVG:
		return RenderSVG(ctx, ToDOT(f, opts))
	case graph.FormatPNG:
		return RenderPNG(ctx, ToDOT(f, opts))
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
	}
}
