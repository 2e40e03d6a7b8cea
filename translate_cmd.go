package main

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

var (
	translateTo   string
	translateCopy bool
)

var translateCmd = &cobra.Command{
	Use:     "translate <text>",
	Short:   "Translate text into the target language",
	Long:    paragraph(fmt.Sprintf("\n%s text with the same endpoint used for captions.", keyword("Translate"))),
	Example: paragraph("subvoice translate \"where is the station\" --to de\necho hello | subvoice translate - --copy"),
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := speechInput("", args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if text == "" {
			return errors.New("nothing to translate")
		}
		lang, err := targetLanguage(translateTo)
		if err != nil {
			return err
		}

		out, err := newService().Translate(cmd.Context(), text, lang)
		if err != nil {
			return fmt.Errorf("unable to translate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), wordwrap.String(out, width))

		if translateCopy {
			if err := clipboard.WriteAll(out); err != nil {
				return fmt.Errorf("unable to copy to clipboard: %w", err)
			}
			log.Debug("translation copied", "length", len(out))
			fmt.Fprintln(cmd.ErrOrStderr(), faint("copied to clipboard"))
		}
		return nil
	},
}

func init() {
	translateCmd.Flags().StringVar(&translateTo, "to", "", "target language (default from settings)")
	translateCmd.Flags().BoolVarP(&translateCopy, "copy", "c", false, "copy the translation to the clipboard")
}
