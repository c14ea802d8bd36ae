package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"winequality/ml"
)

func inspectCmd() *cobra.Command {
	var modelPath, modelType string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the model artifact and the input schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := ml.OpenStore(modelPath, modelType)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			info := store.Info()

			p := message.NewPrinter(language.English)
			out := cmd.OutOrStdout()
			p.Fprintf(out, "Model:    %s %s\n", info.Type, info.Version)
			p.Fprintf(out, "Path:     %s\n", info.Path)
			p.Fprintf(out, "Checksum: %s\n", info.Checksum)
			p.Fprintf(out, "Trees:    %d (%d nodes, depth %d)\n", info.Trees, info.Nodes, info.Depth)
			p.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tFIELD\tLABEL\tMIN\tMAX\tDEFAULT\tTYPE")
			for i, f := range ml.WineSchema().Fields() {
				kind := "real"
				if f.Integer {
					kind = "integer"
				}
				p.Fprintf(tw, "%d\t%s\t%s\t%v\t%v\t%v\t%s\n", i, f.Name, f.Label, f.Min, f.Max, f.Default, kind)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "./models/wine_quality_model.json", "path to the model artifact")
	cmd.Flags().StringVar(&modelType, "model-type", ml.ModelTypeRandomForest, "model type (random_forest, decision_tree)")
	return cmd
}
