// Package pipeline reconciles input tables to a model's feature schema,
// runs inference and renders the results.
package pipeline

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"companystatus/frame"
	"companystatus/ml"
)

// EchoPolicy selects which table the Prediction column is attached to.
type EchoPolicy string

const (
	// EchoOriginal shows the user's own columns, including ones the model ignores.
	EchoOriginal EchoPolicy = "original"
	// EchoReconciled shows the columns the model actually saw.
	EchoReconciled EchoPolicy = "reconciled"
)

type Options struct {
	Schema SchemaOptions
	Echo   EchoPolicy
}

// Result 单次预测结果
type Result struct {
	Reconciled  *frame.Table
	Display     *frame.Table
	Predictions []string
	CSV         []byte
}

// Pipeline is built once per process around a loaded model and shared by
// every request. It holds no mutable state.
type Pipeline struct {
	schema     *Schema
	reconciler *Reconciler
	engine     *Engine
	quality    *QualityChecker
	echo       EchoPolicy
	logger     *zap.Logger
}

// New derives the feature schema from model and wires the pipeline stages.
func New(model ml.Model, opts Options, logger *zap.Logger) (*Pipeline, error) {
	echo := opts.Echo
	switch echo {
	case "":
		echo = EchoOriginal
	case EchoOriginal, EchoReconciled:
	default:
		return nil, fmt.Errorf("unknown echo policy %q", echo)
	}

	schema, err := NewSchema(model.FeatureNames(), opts.Schema)
	if err != nil {
		return nil, err
	}

	if want, got := sorted(model.CategoricalFeatures()), sorted(schema.Categorical()); !slices.Equal(want, got) {
		logger.Warn("schema categorical features differ from the model's; predictions will fail",
			zap.Strings("model", want),
			zap.Strings("schema", got),
		)
	}

	return &Pipeline{
		schema:     schema,
		reconciler: NewReconciler(schema),
		engine:     NewEngine(model),
		quality:    NewQualityChecker(schema, DefaultMaxIssues),
		echo:       echo,
		logger:     logger,
	}, nil
}

func (p *Pipeline) Schema() *Schema {
	return p.schema
}

// Check reports problems in input that would make Run fail or degrade its
// predictions. It does not modify input.
func (p *Pipeline) Check(input *frame.Table) *QualityReport {
	return p.quality.Check(input)
}

// Run reconciles input, predicts every row and attaches the labels to the
// display table. A batch either succeeds as a whole or fails.
func (p *Pipeline) Run(input *frame.Table) (*Result, error) {
	start := time.Now()

	reconciled, err := p.reconciler.Reconcile(input)
	if err != nil {
		return nil, err
	}
	predictions, err := p.engine.Predict(reconciled, p.schema.Categorical())
	if err != nil {
		return nil, err
	}

	display := input
	if p.echo == EchoReconciled {
		display = reconciled
	}
	out, csv, err := AttachAndExport(display, predictions)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("pipeline run",
		zap.Int("rows", input.Len()),
		zap.Int("input_columns", len(input.Columns())),
		zap.Duration("duration", time.Since(start)),
	)

	return &Result{
		Reconciled:  reconciled,
		Display:     out,
		Predictions: predictions,
		CSV:         csv,
	}, nil
}

func sorted(names []string) []string {
	out := slices.Clone(names)
	slices.Sort(out)
	return out
}
