package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"companystatus/frame"
)

var (
	inputPath  string
	outputPath string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict every row of a CSV file and write the result as CSV",
	Long: `Reads companies from --input, fills missing defaults, aligns the columns
to the model and writes the input with an extra Prediction column to --output
("-" for standard output).`,
	RunE: runPredict,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "List the features the model expects",
	RunE:  runSchema,
}

func init() {
	predictCmd.Flags().StringVarP(&inputPath, "input", "i", "", "CSV file with one company per row")
	predictCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Destination CSV file")
	_ = predictCmd.MarkFlagRequired("input")
}

func runPredict(cmd *cobra.Command, args []string) error {
	_, logger, _, p, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	in, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	input, err := frame.ReadCSV(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}

	if report := p.Check(input); !report.OK() {
		logger.Warn("input has blocking quality issues",
			zap.Int("blocking", report.Blocking),
			zap.Any("counts", report.Counts),
		)
	}

	result, err := p.Run(input)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputPath != "-" && outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if _, err := out.Write(result.CSV); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}

	logger.Info("predictions written",
		zap.Int("rows", len(result.Predictions)),
		zap.String("output", outputPath),
	)
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	_, logger, _, p, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	schema := p.Schema()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "FEATURE\tKIND\tDEFAULT\tDESCRIPTION\n")
	for _, f := range schema.Features() {
		def, _ := schema.Default(f.Name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, f.Kind, def, f.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d features: %d categorical, %d numeric\n",
		len(schema.Features()), len(schema.Categorical()), len(schema.Numeric()))
	return nil
}
