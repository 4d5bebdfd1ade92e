package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ownlingo/phrasebatch/translator/providers"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the available models",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, model := range providers.AvailableModels() {
				provider, _ := providers.ProviderFor(model)
				fmt.Fprintf(out, "%-28s %s\n", model, provider)
			}
		},
	}
}
