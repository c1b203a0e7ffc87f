// Package render turns a cleaned table and its aggregate into artifacts:
// delimited and workbook exports, and charts drawn by a ports.ChartBackend.
package render

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bft-labs/reportship/internal/aggregate"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/ports"
	"github.com/bft-labs/reportship/pkg/log"
)

// Kind selects what a Spec produces.
type Kind string

const (
	KindCSV     Kind = "csv"
	KindXLSX    Kind = "xlsx"
	KindPie     Kind = "pie"
	KindBar     Kind = "bar"
	KindCount   Kind = "count"
	KindBox     Kind = "box"
	KindLine    Kind = "line"
	KindHeatmap Kind = "heatmap"
)

// Source selects the table a csv export reads.
type Source string

const (
	SourceAggregate Source = "aggregate"
	SourceTable     Source = "table"
)

// Spec describes one artifact.
type Spec struct {
	// Name is the artifact base name; the extension is added from Kind.
	Name    string
	Kind    Kind
	Columns []string
	Title   string
	Source  Source
}

func (s Spec) artifactName(ext string) string {
	name := s.Name
	if name == "" {
		name = string(s.Kind)
	}
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}
	return name + ext
}

// Outcome reports what happened to one spec.
type Outcome struct {
	Spec     string
	Artifact string
	Err      error
}

// OK reports whether the spec produced an artifact.
func (o Outcome) OK() bool { return o.Err == nil }

// Result holds every artifact produced and one outcome per spec, in spec order.
type Result struct {
	Artifacts []domain.Artifact
	Outcomes  []Outcome
}

// Failures returns the outcomes that produced no artifact.
func (r Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

var errNoBackend = errors.New("render: no chart backend configured")

// Renderer evaluates render specs. It holds no per-run state.
type Renderer struct {
	backend ports.ChartBackend
	logger  log.Logger
}

// New creates a Renderer. A nil logger discards output.
func New(backend ports.ChartBackend, logger log.Logger) *Renderer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Renderer{backend: backend, logger: logger}
}

// Render evaluates every spec independently. A failing spec yields a failed
// Outcome and never prevents the others from rendering. A spec whose
// artifact name repeats an earlier one fails; the first keeps the name.
// agg may be nil when no spec reads the aggregate.
func (r *Renderer) Render(table *domain.Table, agg *aggregate.Table, specs []Spec) Result {
	var res Result
	names := make(map[string]string, len(specs))
	for _, spec := range specs {
		art, err := r.renderOne(table, agg, spec)
		label := spec.Name
		if label == "" {
			label = string(spec.Kind)
		}
		if err == nil {
			if prev, dup := names[filepath.Base(art.Name)]; dup {
				err = fmt.Errorf("%w: artifact name %q already produced by spec %q",
					domain.ErrInvalidConfig, art.Name, prev)
			} else {
				names[filepath.Base(art.Name)] = label
			}
		}
		if err != nil {
			r.logger.Warn("render spec failed",
				log.String("spec", label),
				log.String("kind", string(spec.Kind)),
				log.Err(err),
			)
			res.Outcomes = append(res.Outcomes, Outcome{Spec: label, Err: err})
			continue
		}
		r.logger.Debug("rendered artifact",
			log.String("spec", label),
			log.String("artifact", art.Name),
			log.Int("bytes", len(art.Data)),
		)
		res.Artifacts = append(res.Artifacts, art)
		res.Outcomes = append(res.Outcomes, Outcome{Spec: label, Artifact: art.Name})
	}
	return res
}

func (r *Renderer) renderOne(table *domain.Table, agg *aggregate.Table, spec Spec) (domain.Artifact, error) {
	switch spec.Kind {
	case KindCSV:
		data, err := exportCSV(table, agg, spec.Source)
		if err != nil {
			return domain.Artifact{}, err
		}
		return domain.Artifact{Name: spec.artifactName(".csv"), MIME: domain.MIMECSV, Data: data}, nil
	case KindXLSX:
		data, err := exportWorkbook(table, agg)
		if err != nil {
			return domain.Artifact{}, err
		}
		return domain.Artifact{Name: spec.artifactName(".xlsx"), MIME: domain.MIMEXLSX, Data: data}, nil
	}

	chart, err := prepareChart(table, spec)
	if err != nil {
		return domain.Artifact{}, err
	}
	if r.backend == nil {
		return domain.Artifact{}, errNoBackend
	}
	data, mime, err := r.backend.Draw(chart)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("render %s: draw: %w", spec.Kind, err)
	}
	ext := ".png"
	if mime != domain.MIMEPNG {
		ext = ".bin"
	}
	return domain.Artifact{Name: spec.artifactName(ext), MIME: mime, Data: data}, nil
}
