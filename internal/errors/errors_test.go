package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorCodes(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name string
		err  *AppError
		code string
	}{
		{"config", ConfigInvalid("bad level"), CodeConfigInvalid},
		{"simulation", SimulationError("drawing counts", cause), CodeSimulationError},
		{"fit", FitError("Poisson", cause), CodeFitError},
		{"gof", GofError("NB size=0.5", cause), CodeGofError},
		{"plot", PlotError("histograms", cause), CodePlotError},
		{"report", ReportError("rendering report", cause), CodeReportError},
		{"archive", ArchiveError("saving run", cause), CodeArchiveError},
		{"not found", NotFound("run"), CodeNotFound},
		{"invalid input", InvalidInput("zero replications"), CodeInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.code, GetCode(tc.err))
			assert.True(t, IsAppError(tc.err))
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestWrapPreservesCode(t *testing.T) {
	inner := FitError("Poisson", stderrors.New("singular design"))

	wrapped := Wrap(inner, "pipeline stage failed")
	assert.Equal(t, CodeFitError, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "pipeline stage failed")
	assert.Contains(t, wrapped.Error(), "singular design")

	// errors.Is reaches the original through the chain
	assert.True(t, stderrors.Is(wrapped, inner))
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(stderrors.New("disk full"), "writing report")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "writing report")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))
	assert.Nil(t, WithCode(CodeFitError, nil))
}

func TestWrapf(t *testing.T) {
	err := Wrapf(stderrors.New("no such table"), "loading run %s", "abc123")
	assert.Contains(t, err.Error(), "loading run abc123")
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeArchiveError, fmt.Errorf("locked"))
	assert.Equal(t, CodeArchiveError, GetCode(err))

	recoded := WithCode(CodeNotFound, FitError("Poisson", nil))
	assert.Equal(t, CodeNotFound, GetCode(recoded))
}

func TestGetCodeUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
	assert.False(t, IsAppError(stderrors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := SimulationError("generating dataset", cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}
