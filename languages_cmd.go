package main

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/subvoice/internal/langs"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var languagesCmd = &cobra.Command{
	Use:     "languages [query]",
	Aliases: []string{"langs"},
	Short:   "List target languages",
	Long:    paragraph(fmt.Sprintf("\n%s the target languages, or the ones matching a fuzzy query.", keyword("List"))),
	Example: paragraph("subvoice languages\nsubvoice languages portu"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list := langs.Supported()
		if len(args) == 1 {
			list = langs.Search(args[0])
			if len(list) == 0 {
				return fmt.Errorf("no language matches %q", args[0])
			}
		}
		current := ""
		if store, err := loadSettings(); err == nil {
			current = store.Config().TargetLanguage
		}
		fmt.Fprint(cmd.OutOrStdout(), languageTable(list, current))
		return nil
	},
}

// languageTable renders one language per line with codes aligned, marking
// the current one.
func languageTable(list []langs.Language, current string) string {
	codeWidth := 0
	for _, l := range list {
		codeWidth = max(codeWidth, runewidth.StringWidth(l.Code))
	}

	var b strings.Builder
	for _, l := range list {
		mark := "  "
		if l.Code == current {
			mark = "* "
		}
		b.WriteString(mark)
		b.WriteString(keyword(l.Code))
		b.WriteString(strings.Repeat(" ", codeWidth-runewidth.StringWidth(l.Code)+2))
		b.WriteString(l.Name)
		b.WriteString("\n")
	}
	return b.String()
}
