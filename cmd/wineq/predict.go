package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"winequality/ml"
)

var labelColors = map[ml.QualityLabel]*color.Color{
	ml.QualityLow:    color.New(color.FgRed, color.Bold),
	ml.QualityMedium: color.New(color.FgYellow, color.Bold),
	ml.QualityHigh:   color.New(color.FgGreen, color.Bold),
}

func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

func predictCmd() *cobra.Command {
	var modelPath, modelType string
	schema := ml.WineSchema()
	values := make(map[string]*float64, schema.Len())

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify one wine sample",
		Long: `Classify one wine sample. Every measurement has its own flag and
defaults to the value the web form starts with.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := ml.OpenStore(modelPath, modelType)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}

			input := make(map[string]float64, len(values))
			for name, v := range values {
				input[name] = *v
			}
			collector := ml.NewFeatureCollector(schema)
			if err := collector.ApplyValues(input); err != nil {
				for _, fe := range ml.FieldErrors(err) {
					fmt.Fprintf(cmd.ErrOrStderr(), "--%s: %v\n", flagName(fe.Field), fe.Err)
				}
				return fmt.Errorf("invalid measurements")
			}
			vector, err := collector.Collect()
			if err != nil {
				return err
			}

			label, code, err := ml.NewPredictor(store.Classifier()).Classify(vector)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, "Predicted quality: ")
			labelColors[label].Fprint(out, string(label))
			fmt.Fprintf(out, " (class %d)\n", int(code))
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "./models/wine_quality_model.json", "path to the model artifact")
	cmd.Flags().StringVar(&modelType, "model-type", ml.ModelTypeRandomForest, "model type (random_forest, decision_tree)")
	for _, f := range schema.Fields() {
		usage := fmt.Sprintf("%s [%g, %g]", f.Label, f.Min, f.Max)
		values[f.Name] = cmd.Flags().Float64(flagName(f.Name), f.Default, usage)
	}
	return cmd
}
