package app

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"obsnote/adapters/excel"
	"obsnote/domain/comparison"
	"obsnote/domain/core"
	"obsnote/domain/logpattern"
	"obsnote/domain/paragraph"
	"obsnote/internal/charts"
	"obsnote/internal/errors"
	"obsnote/internal/report"
	"obsnote/internal/state"
	"obsnote/ports"
)

// Report formats
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatCharts   = "charts"
	FormatXLSX     = "xlsx"
)

// ParagraphService serves persisted outputs and the live state of
// paragraphs.
type ParagraphService struct {
	repo   ports.ParagraphOutputRepository
	states *state.Store
}

// NewParagraphService creates a paragraph service
func NewParagraphService(repo ports.ParagraphOutputRepository, states *state.Store) *ParagraphService {
	return &ParagraphService{repo: repo, states: states}
}

// Output returns the persisted output of a paragraph
func (s *ParagraphService) Output(ctx context.Context, id core.ParagraphID) (*paragraph.Output, error) {
	output, err := s.repo.Get(ctx, id)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, errors.WithCode(errors.CodeNotFound, err)
		}
		return nil, errors.DatabaseError("failed to load paragraph output", err)
	}
	return output, nil
}

// State returns the live state of a paragraph. An idle paragraph with a
// persisted output is restored from it so a reopened notebook renders the
// last result without running again.
func (s *ParagraphService) State(ctx context.Context, id core.ParagraphID) (state.AnalysisState, error) {
	current := s.states.Get(id)
	if current.Status != state.StatusIdle {
		return current, nil
	}

	output, err := s.repo.Get(ctx, id)
	if err != nil {
		if core.IsNotFoundError(err) {
			return current, nil
		}
		return current, errors.DatabaseError("failed to load paragraph output", err)
	}
	logrus.WithField("paragraph_id", id).Debug("restoring paragraph state from persisted output")
	return s.states.Restore(output), nil
}

// Delete resets the live state, dropping any run still in flight, and
// removes the persisted output.
func (s *ParagraphService) Delete(ctx context.Context, id core.ParagraphID) error {
	s.states.Reset(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.DatabaseError("failed to delete paragraph output", err)
	}
	return nil
}

// Report renders the persisted output in format and returns its content type
func (s *ParagraphService) Report(ctx context.Context, id core.ParagraphID, format string, w io.Writer) (string, error) {
	output, err := s.Output(ctx, id)
	if err != nil {
		return "", err
	}

	switch output.Kind {
	case paragraph.OutputBubbleUp:
		var result comparison.Result
		if err := output.Decode(&result); err != nil {
			return "", errors.Wrap(err, "failed to decode bubble-up output")
		}
		return renderComparison(w, id, format, &result)
	case paragraph.OutputLogPattern:
		var result logpattern.AnalysisResult
		if err := output.Decode(&result); err != nil {
			return "", errors.Wrap(err, "failed to decode log pattern output")
		}
		return renderLogPattern(w, format, &result)
	}
	return "", errors.InternalError(fmt.Sprintf("unknown output kind %q", output.Kind))
}

func renderComparison(w io.Writer, id core.ParagraphID, format string, result *comparison.Result) (string, error) {
	switch format {
	case FormatMarkdown, "":
		_, err := io.WriteString(w, report.ComparisonMarkdown(result))
		return "text/markdown; charset=utf-8", err
	case FormatHTML:
		_, err := w.Write(report.HTML(report.ComparisonMarkdown(result)))
		return "text/html; charset=utf-8", err
	case FormatCharts:
		// render into a buffer so a failed page leaves w untouched
		var buf bytes.Buffer
		if err := charts.RenderPage(&buf, "Bubble-up "+id.String(), result.Summaries); err != nil {
			return "", errors.Wrap(err, "failed to render charts")
		}
		_, err := buf.WriteTo(w)
		return "text/html; charset=utf-8", err
	case FormatXLSX:
		var buf bytes.Buffer
		if err := excel.WriteComparison(&buf, result); err != nil {
			return "", errors.Wrap(err, "failed to write workbook")
		}
		_, err := buf.WriteTo(w)
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	}
	return "", unsupportedFormat(format, paragraph.OutputBubbleUp)
}

func renderLogPattern(w io.Writer, format string, result *logpattern.AnalysisResult) (string, error) {
	switch format {
	case FormatMarkdown, "":
		_, err := io.WriteString(w, report.LogPatternMarkdown(result))
		return "text/markdown; charset=utf-8", err
	case FormatHTML:
		_, err := w.Write(report.HTML(report.LogPatternMarkdown(result)))
		return "text/html; charset=utf-8", err
	}
	return "", unsupportedFormat(format, paragraph.OutputLogPattern)
}

func unsupportedFormat(format string, kind paragraph.OutputKind) error {
	return errors.InvalidInput(fmt.Sprintf("format %q is not available for %s output", format, kind))
}
