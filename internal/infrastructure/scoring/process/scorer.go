package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/kirillkom/docverify/internal/core/domain"
)

const waitDelay = 5 * time.Second

type Options struct {
	// Zero disables the internal deadline; the caller's context still applies.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Scorer launches one scoring process per call: `command args... <path>`.
// The process writes a single JSON report to stdout.
type Scorer struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

func New(command string, args []string, options Options) (*Scorer, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("scorer command is required")
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		command: command,
		args:    append([]string(nil), args...),
		timeout: options.Timeout,
		logger:  logger,
	}, nil
}

// wireReport mirrors the scorer's stdout. ForgeryProbability is a pointer so
// a missing field is distinguishable from zero.
type wireReport struct {
	ForgeryProbability *float64       `json:"forgery_probability"`
	TextAnalysis       map[string]any `json:"text_analysis"`
	IsAuthentic        *bool          `json:"is_authentic"`
	AnomalyScore       *float64       `json:"anomaly_score"`
	ConfidenceScore    *float64       `json:"confidence_score"`
	RiskLevel          string         `json:"risk_level"`
	Recommendation     string         `json:"recommendation"`
	Details            []any          `json:"details"`

	Error  string `json:"error"`
	Status string `json:"status"`
}

func (s *Scorer) Score(ctx context.Context, path string) (domain.ScoreReport, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), s.args...), path)
	cmd := exec.CommandContext(ctx, s.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Bounds the wait for orphaned children still holding the output pipes.
	cmd.WaitDelay = waitDelay

	started := time.Now()
	runErr := cmd.Run()
	s.logger.Debug("scorer_finished",
		"path", path,
		"duration_ms", time.Since(started).Milliseconds(),
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
	)

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ScoreReport{}, fmt.Errorf("scorer interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return domain.ScoreReport{}, &domain.ScoringProcessError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return domain.ScoreReport{}, &domain.ScoringProcessError{
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String() + "\n" + runErr.Error()),
		}
	}

	return parseReport(stdout.Bytes())
}

func parseReport(raw []byte) (domain.ScoreReport, error) {
	var wire wireReport
	if err := json.Unmarshal(bytes.TrimSpace(raw), &wire); err != nil {
		return domain.ScoreReport{}, domain.WrapError(domain.ErrScoringParse, "decode scorer output", err)
	}
	if wire.Error != "" || strings.EqualFold(wire.Status, "failed") {
		return domain.ScoreReport{}, domain.WrapError(domain.ErrScoringParse, "scorer reported failure", errors.New(wire.Error))
	}
	if wire.ForgeryProbability == nil {
		return domain.ScoreReport{}, domain.WrapError(domain.ErrScoringParse, "decode scorer output", errors.New("forgery_probability missing"))
	}

	report := domain.ScoreReport{
		ForgeryProbability: *wire.ForgeryProbability,
		TextAnalysis:       wire.TextAnalysis,
		IsAuthentic:        wire.IsAuthentic,
		AnomalyScore:       wire.AnomalyScore,
		ConfidenceScore:    wire.ConfidenceScore,
		RiskLevel:          wire.RiskLevel,
		Recommendation:     wire.Recommendation,
	}
	if report.TextAnalysis == nil {
		report.TextAnalysis = map[string]any{}
	}
	for _, d := range wire.Details {
		if text, ok := d.(string); ok {
			report.Details = append(report.Details, text)
			continue
		}
		report.Details = append(report.Details, fmt.Sprint(d))
	}

	if err := report.Validate(); err != nil {
		return domain.ScoreReport{}, domain.WrapError(domain.ErrScoringParse, "validate scorer output", err)
	}
	return report, nil
}
