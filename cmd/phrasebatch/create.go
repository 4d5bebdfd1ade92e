package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ownlingo/phrasebatch/project"
)

func newCreateCmd() *cobra.Command {
	var (
		csvPath       string
		baseLanguage  string
		keyColumn     string
		ignoreColumns []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or update a project from a CSV file",
		Long: `Create a project in the --project directory from an existing CSV.

Every header column except the key column and the ignored columns is taken
as a language. The CSV is copied into the project and one directory per
language holds its progress file.

Example:
  phrasebatch create -p projects/app --csv strings.csv --base-lang en --key key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, existed, err := project.Create(project.CreateOptions{
				Dir:           projectDir,
				CSV:           csvPath,
				BaseLanguage:  baseLanguage,
				KeyColumn:     keyColumn,
				IgnoreColumns: ignoreColumns,
			})
			if err != nil {
				return err
			}

			action := "created"
			if existed {
				action = "updated"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project %q %s at %s\n", p.Config.Name, action, p.Dir)
			fmt.Fprintf(out, "Languages detected: %s\n", strings.Join(p.Config.Languages, ", "))
			fmt.Fprintf(out, "Base language: %s\n", p.Config.BaseLanguage)
			fmt.Fprintf(out, "Using %q as translation key column\n", p.Config.KeyColumn)
			return nil
		},
	}

	cmd.Flags().StringVarP(&csvPath, "csv", "c", "", "Path to the CSV file (required)")
	cmd.Flags().StringVarP(&baseLanguage, "base-lang", "b", "", "Base language code (required)")
	cmd.Flags().StringVarP(&keyColumn, "key", "k", "", "Column holding the translation keys (required)")
	cmd.Flags().StringSliceVarP(&ignoreColumns, "ignore-columns", "i", []string{project.DefaultContext}, "Columns that are not languages")
	_ = cmd.MarkFlagRequired("csv")
	_ = cmd.MarkFlagRequired("base-lang")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}
