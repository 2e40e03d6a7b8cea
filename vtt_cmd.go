package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dgnsrekt/subvoice/internal/session"
	"github.com/dgnsrekt/subvoice/internal/vtt"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/muesli/gitcha"
	"github.com/spf13/cobra"
)

var (
	vttStart time.Duration
	vttTo    string
)

var subtitleExtensions = []string{"*.vtt"}

var vttCmd = &cobra.Command{
	Use:   "vtt <file|dir>",
	Short: "Speak a subtitle file in the target language",
	Long: paragraph(fmt.Sprintf("\n%s every cue of a WebVTT file up front, then speak each one as the clock reaches it. Given a directory, list the subtitle files in it.",
		keyword("Translate"))),
	Example: paragraph("subvoice vtt lecture.vtt --start 2m30s\nsubvoice vtt ~/courses"),
	Args:    cobra.ExactArgs(1),
	RunE:    runVTT,
}

// subtitleFile is a .vtt file found in a directory.
type subtitleFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// findSubtitleFiles lists the .vtt files under dir, honoring .gitignore.
func findSubtitleFiles(dir string) ([]subtitleFile, error) {
	ch, err := gitcha.FindFilesExcept(dir, subtitleExtensions, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to search %s: %w", dir, err)
	}

	var files []subtitleFile
	for res := range ch {
		f := subtitleFile{Path: res.Path}
		if res.Info != nil {
			f.Size = res.Info.Size()
			f.ModTime = res.Info.ModTime()
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func listSubtitleFiles(dir string, files []subtitleFile, now time.Time) string {
	var b strings.Builder
	for _, f := range files {
		rel, err := filepath.Rel(dir, f.Path)
		if err != nil {
			rel = f.Path
		}
		fmt.Fprintf(&b, "%s  %s\n", keyword(rel),
			faint(humanize.Bytes(uint64(max(f.Size, 0)))+", "+humanize.RelTime(f.ModTime, now, "ago", "from now"))) //nolint:gosec
	}
	return b.String()
}

func readCues(path string) ([]vtt.Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cues, err := vtt.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", filepath.Base(path), err)
	}
	if len(cues) == 0 {
		return nil, errors.New("no cues found")
	}
	return cues, nil
}

func runVTT(cmd *cobra.Command, args []string) error {
	path, err := homedir.Expand(args[0])
	if err != nil {
		return fmt.Errorf("unable to expand path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("unable to stat file: %w", err)
	}

	out := cmd.OutOrStdout()
	if info.IsDir() {
		files, err := findSubtitleFiles(path)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no subtitle files in %s", path)
		}
		fmt.Fprint(out, listSubtitleFiles(path, files, time.Now()))
		return nil
	}

	cues, err := readCues(path)
	if err != nil {
		return err
	}
	lang, err := targetLanguage(vttTo)
	if err != nil {
		return err
	}
	store, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, faint(fmt.Sprintf("preparing %d cues in %s…", len(cues), lang)))
	prepared, err := session.PrepareCues(ctx, newService(), cues, lang)
	if err != nil {
		return fmt.Errorf("unable to prepare cues: %w", err)
	}

	player, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = player.Close() }()

	lp := newLocalPlayback(player, store)
	defer func() { _ = lp.Close() }()

	var enqueued int
	syncer := vtt.NewSyncer(cues, func(cue vtt.Cue) {
		chunk, ok := prepared[cue.Index]
		if !ok {
			return
		}
		fmt.Fprintf(out, "%s %s\n", faint(cue.Start.Truncate(time.Second).String()), chunk.Text)
		if err := lp.queue.Enqueue(chunk); err == nil {
			enqueued++
		}
	})

	if err := syncer.RunClock(ctx, vttStart, 0); err != nil {
		// interrupted
		return nil
	}
	if err := lp.wait(ctx, enqueued, out); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func init() {
	vttCmd.Flags().DurationVar(&vttStart, "start", 0, "position to start from")
	vttCmd.Flags().StringVar(&vttTo, "to", "", "target language (default from settings)")
}
