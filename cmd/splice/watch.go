package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Regenerate source every time a script or project file changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write source to this file instead of stdout")
}

func runWatch(cmd *cobra.Command, args []string) (err error) {
	ctx, tr := commandContext(cmd, "watch")
	defer func() { tr.Finish("err", err) }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := args[0]

	regenerate := func() {
		g, err := build(ctx, path)
		if err != nil {
			tr.Printw("regenerate", "path", path, "err", err)
			return
		}

		code, err := render(g, nil)
		if err == nil {
			err = writeOutput(cmd.OutOrStdout(), outputPath, code)
		}
		if err != nil {
			tr.Printw("write output", "path", outputPath, "err", err)
		}
	}

	regenerate()

	return watchFile(ctx, path, cfg.Watch.Debounce, regenerate)
}

// watchFile calls onChange once per burst of writes to path, after debounce
// has passed without another event. It returns when ctx is done.
//
// The parent directory is watched rather than the file so editors that save
// by rename are still seen.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new watcher")
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrap(err, "watch %v", filepath.Dir(abs))
	}

	tr := tlog.SpanFromContext(ctx)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			tr.Printw("watch error", "err", err)
		case <-timer.C:
			onChange()
		}
	}
}
