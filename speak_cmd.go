package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/audio"
	"github.com/dgnsrekt/subvoice/internal/langs"
	"github.com/dgnsrekt/subvoice/internal/pipeline"
	"github.com/dgnsrekt/subvoice/internal/queue"
	"github.com/dgnsrekt/subvoice/internal/settings"
	"github.com/dgnsrekt/subvoice/internal/textutil"
	"github.com/mitchellh/go-homedir"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

// maxSpeakInput bounds how much text goes into one translation request.
const maxSpeakInput = 500

var (
	speakFile string
	speakTo   string
)

var speakCmd = &cobra.Command{
	Use:   "speak [text]",
	Short: "Translate text and speak it aloud",
	Long: paragraph(fmt.Sprintf("\n%s text, or a markdown file, into the target language and play it on this machine.",
		keyword("Translate and speak"))),
	Example: paragraph("subvoice speak \"good morning\" --to fr\nsubvoice speak --file notes.md"),
	RunE:    runSpeak,
}

// targetLanguage returns the language given on the command line, or the
// configured one.
func targetLanguage(flag string) (string, error) {
	lang := flag
	if lang == "" {
		store, err := loadSettings()
		if err != nil {
			return "", err
		}
		lang = store.Config().TargetLanguage
	}
	if err := langs.Valid(lang); err != nil {
		if l, ok := langs.Suggest(lang); ok {
			return "", fmt.Errorf("%w (did you mean %s?)", err, l)
		}
		return "", err
	}
	return lang, nil
}

// speechInput returns the text to speak: the file, when given, with its
// markdown stripped, otherwise the arguments.
func speechInput(file string, args []string, stdin io.Reader) (string, error) {
	switch {
	case file != "":
		path, err := homedir.Expand(file)
		if err != nil {
			return "", fmt.Errorf("unable to expand path: %w", err)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("unable to read file: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".mdown", ".mkd", ".mkdn":
			return textutil.PlainText(string(b)), nil
		default:
			return textutil.CollapseSpace(string(b)), nil
		}
	case len(args) == 1 && args[0] == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read from stdin: %w", err)
		}
		return textutil.CollapseSpace(string(b)), nil
	default:
		return textutil.CollapseSpace(strings.Join(args, " ")), nil
	}
}

// localPlayback plays queued chunks on this machine and counts the ones that
// have finished, whether played, skipped or discarded.
type localPlayback struct {
	queue    *queue.Queue
	finished chan queue.Event
	closing  chan struct{}
}

func newLocalPlayback(player audio.Player, store *settings.Store) *localPlayback {
	lp := &localPlayback{
		finished: make(chan queue.Event, 64),
		closing:  make(chan struct{}),
	}
	cfg := queueConfig()
	cfg.OnEvent = func(ev queue.Event) {
		select {
		case lp.finished <- ev:
		case <-lp.closing:
		}
	}
	levels := queue.LevelsFunc(func() (float64, float64) {
		c := store.Config()
		return c.VolumeLevel(), c.PlaybackRate()
	})
	lp.queue = queue.New(player, levels, cfg)
	return lp
}

// wait blocks until n chunks have finished or ctx is done.
func (lp *localPlayback) wait(ctx context.Context, n int, w io.Writer) error {
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-lp.finished:
			if ev.Kind == queue.EventDiscarded {
				fmt.Fprintln(w, errorStyle("could not play: ")+ev.Text)
			}
		}
	}
	return nil
}

func (lp *localPlayback) Close() error {
	close(lp.closing)
	return lp.queue.Close()
}

func runSpeak(cmd *cobra.Command, args []string) error {
	if speakFile == "" && len(args) == 0 {
		return errors.New("nothing to speak: pass text or --file")
	}
	text, err := speechInput(speakFile, args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if text == "" {
		return errors.New("nothing to speak")
	}
	lang, err := targetLanguage(speakTo)
	if err != nil {
		return err
	}
	store, err := loadSettings()
	if err != nil {
		return err
	}

	player, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = player.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lp := newLocalPlayback(player, store)
	defer func() { _ = lp.Close() }()

	out := cmd.OutOrStdout()
	svc := newService()
	var enqueued int
	var failures []error
	orch := pipeline.New(pipeline.Options{
		Translator:  svc,
		Synthesizer: svc,
		Sink:        lp.queue,
		Settings: func() settings.Config {
			c := store.Config()
			c.TargetLanguage = lang
			c.IsEnabled = true
			return c
		},
		OnFailure: func(text string, err error) {
			failures = append(failures, err)
			log.Warn("could not speak text", "text", text, "error", err)
		},
		OnEvent: func(ev pipeline.Event) {
			switch ev.Kind {
			case pipeline.EventTranslated:
				fmt.Fprintln(out, wordwrap.String(ev.Translation, width))
			case pipeline.EventEnqueued:
				enqueued++
			}
		},
	})

	for _, part := range pipeline.Chunk(text, maxSpeakInput) {
		if ctx.Err() != nil {
			break
		}
		orch.Process(ctx, strings.TrimSpace(part))
	}

	if err := lp.wait(ctx, enqueued, out); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if enqueued == 0 && len(failures) > 0 {
		return fmt.Errorf("unable to speak: %w", errors.Join(failures...))
	}
	return nil
}

func init() {
	speakCmd.Flags().StringVarP(&speakFile, "file", "f", "", "read text from a file (markdown is stripped)")
	speakCmd.Flags().StringVar(&speakTo, "to", "", "target language (default from settings)")
}
