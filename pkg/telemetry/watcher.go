package telemetry

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/telemetry/pkg/config"
)

// WatchEndpointFile watches a settings file and hot-swaps the metrics
// destination whenever a write changes the configured endpoint. Reload
// failures are logged and the previous destination keeps serving. The
// returned function stops the watcher.
func (t *Telemetry) WatchEndpointFile(ctx context.Context, path string) (func(), error) {
	if t.metrics == nil {
		return nil, ErrSignalNotEnabled
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ewrap.Wrapf(err, "resolve watch path %q", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ewrap.Wrap(err, "create endpoint watcher")
	}

	// Watch the directory: editors and config managers typically replace
	// the file, and a watch on the old inode would go stale.
	err = watcher.Add(filepath.Dir(abs))
	if err != nil {
		closeErr := watcher.Close()
		if closeErr != nil {
			t.logger.Error(ctx, closeErr, "close endpoint watcher after add failure")
		}

		return nil, ewrap.Wrapf(err, "watch %q", filepath.Dir(abs))
	}

	ctx, cancel := context.WithCancel(ctx)

	go t.watchLoop(ctx, watcher, abs)

	return cancel, nil
}

func (t *Telemetry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer func() {
		closeErr := watcher.Close()
		if closeErr != nil {
			t.logger.Error(ctx, closeErr, "close endpoint watcher")
		}
	}()

	var lastEndpoint string

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Name != target {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			t.logger.Info(ctx, "endpoint file change detected", attribute.String("path", target))
			t.reloadEndpoint(ctx, target, &lastEndpoint)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			t.logger.Error(ctx, err, "endpoint watcher error")
		}
	}
}

// reloadEndpoint re-reads the settings file and swaps the metrics endpoint
// when it differs from the last one applied.
func (t *Telemetry) reloadEndpoint(ctx context.Context, path string, lastEndpoint *string) {
	dict, err := config.FromFile(path)
	if err != nil {
		t.logger.Error(ctx, err, "reload endpoint file", attribute.String("path", path))

		return
	}

	endpoint, _ := dict[config.SettingMetricsEndpoint].(string)
	if endpoint == "" {
		endpoint, _ = dict[config.SettingDefaultEndpoint].(string)
	}

	if endpoint == "" {
		t.logger.Warn(ctx, "endpoint file holds no metrics or default endpoint",
			attribute.String("path", path))

		return
	}

	if endpoint == *lastEndpoint {
		return
	}

	token, _ := dict[config.SettingMetricsAuthToken].(string)

	swapped, err := t.ChangeMetricsEndpoint(ctx, endpoint, token)
	if err != nil {
		t.logger.Error(ctx, err, "swap metrics endpoint from file",
			attribute.String("endpoint", endpoint))

		return
	}

	if swapped {
		*lastEndpoint = endpoint

		t.logger.Info(ctx, "metrics endpoint reloaded",
			attribute.String("endpoint", t.metrics.shim.Endpoint()))
	}
}
