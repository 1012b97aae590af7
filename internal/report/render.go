package report

import (
	"fmt"
	"strings"
)

// ArtifactKind tells the delivery side how to send an Artifact.
type ArtifactKind int

const (
	ArtifactImage ArtifactKind = iota
	ArtifactDocument
)

// Artifact is a rendered chart.
type Artifact struct {
	Kind     ArtifactKind
	Filename string
	MIME     string
	Data     []byte
}

// Renderer turns a ChartSpec into bytes.
type Renderer interface {
	Render(spec ChartSpec) (Artifact, error)
}

// NewRenderer returns the renderer for a configured output format
// ("png" or "html").
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "png":
		return PNGRenderer{}, nil
	case "html":
		return HTMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("report: unknown chart format %q (use png or html)", format)
	}
}

func artifactName(spec ChartSpec, ext string) string {
	name := "rank_" + string(spec.Mode)
	if !spec.End.IsZero() {
		name += "_" + spec.End.Format("20060102")
	}
	return name + "." + ext
}
