package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-insight/internal/classification"
	"github.com/Veraticus/spice-insight/internal/cli"
	"github.com/Veraticus/spice-insight/internal/model"
)

func categoriesCmd() *cobra.Command {
	var showKeywords bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the category taxonomy",
		Long: `List every category a transaction can be assigned. With --keywords,
also show the description vocabulary that selects each category, in the
order it is tried.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCategories(cmd, showKeywords)
		},
	}

	cmd.Flags().BoolVarP(&showKeywords, "keywords", "k", false, "show the keywords for each category")

	return cmd
}

func printCategories(cmd *cobra.Command, showKeywords bool) error {
	keywords := make(map[model.Category][]string)
	for _, set := range classification.DefaultKeywordTable() {
		keywords[set.Category] = set.Keywords
	}

	var b strings.Builder
	b.WriteString(cli.FormatTitle("Categories"))
	b.WriteString("\n")

	for _, category := range model.Taxonomy() {
		fmt.Fprintf(&b, "  %s\n", cli.BoldStyle.Render(string(category)))
		if !showKeywords {
			continue
		}
		switch {
		case category == model.CategoryIncome:
			b.WriteString(cli.SubtleStyle.Render("      any inflow not matched as a transfer") + "\n")
		case category == model.CategoryOther:
			b.WriteString(cli.SubtleStyle.Render("      anything nothing else matched") + "\n")
		case len(keywords[category]) > 0:
			b.WriteString(cli.SubtleStyle.Render("      "+strings.Join(keywords[category], ", ")) + "\n")
		}
	}

	_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}
