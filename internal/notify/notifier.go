package notify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
	"git.home.luguber.info/inful/stepd/internal/logfields"
)

// Notifier shows a notification somewhere.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Show(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, n.Text,
		slog.String("title", n.Title),
		slog.Bool("ongoing", n.Ongoing),
		logfields.DailySteps(n.Snapshot.DailySteps),
		logfields.LastDate(n.Snapshot.LastRecordedDate.String()))
	return nil
}

// FileNotifier keeps the notification text in a one-line file for status
// bars. The file is replaced atomically.
type FileNotifier struct {
	Path string
}

func (f FileNotifier) Show(_ context.Context, n Notification) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return notifyErr(err, "file", "create status directory")
	}
	tmp, err := os.CreateTemp(dir, ".status-*.tmp")
	if err != nil {
		return notifyErr(err, "file", "create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(n.Text + "\n"); err != nil {
		_ = tmp.Close()
		return notifyErr(err, "file", "write status file")
	}
	if err := tmp.Close(); err != nil {
		return notifyErr(err, "file", "close status file")
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return notifyErr(err, "file", "replace status file")
	}
	return nil
}

// Publisher is satisfied by broker.Client.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// NATSNotifier publishes notifications as JSON for remote UIs.
type NATSNotifier struct {
	Publisher Publisher
	Subject   string
}

func (n NATSNotifier) Show(_ context.Context, note Notification) error {
	if err := n.Publisher.PublishJSON(n.Subject, note); err != nil {
		return notifyErr(err, "nats", "publish notification").WithContext("subject", n.Subject)
	}
	return nil
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Show(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Show(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func notifyErr(err error, sink, op string) *ferrors.ClassifiedError {
	return ferrors.WrapError(err, ferrors.CategoryRuntime, op).
		WithContext("sink", sink).
		Warning().
		Build()
}
