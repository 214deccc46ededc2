package settings

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

// File is the YAML settings document. Only fields present in the file are
// written to the store.
type File struct {
	Gateway struct {
		URL       string          `yaml:"url"`
		Token     string          `yaml:"token"`
		AuthStyle string          `yaml:"auth_style"`
		Endpoint  *string         `yaml:"endpoint"`
		Fields    *model.FieldMap `yaml:"fields"`
	} `yaml:"gateway"`
	EnabledStatuses []string          `yaml:"enabled_statuses"`
	Templates       map[string]string `yaml:"templates"`
	RateLimit       struct {
		Max           int `yaml:"max"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"rate_limit"`
}

func ParseFile(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}
	if f.Gateway.AuthStyle != "" {
		if _, err := model.ParseAuthStyle(f.Gateway.AuthStyle); err != nil {
			return nil, fmt.Errorf("parse settings file: %w", err)
		}
	}
	return &f, nil
}

func (f *File) values() (map[string]string, error) {
	out := make(map[string]string)
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}

	set(KeyGatewayURL, f.Gateway.URL)
	set(KeyGatewayToken, f.Gateway.Token)
	set(KeyGatewayAuthStyle, strings.ToLower(f.Gateway.AuthStyle))
	if f.Gateway.Endpoint != nil {
		out[KeyGatewayEndpoint] = strings.TrimSpace(*f.Gateway.Endpoint)
	}
	if f.Gateway.Fields != nil && !f.Gateway.Fields.IsZero() {
		b, err := json.Marshal(f.Gateway.Fields)
		if err != nil {
			return nil, err
		}
		out[KeyGatewayFields] = string(b)
	}
	if f.EnabledStatuses != nil {
		out[KeyEnabledStatuses] = strings.Join(f.EnabledStatuses, ",")
	}
	for name, tmpl := range f.Templates {
		out[TemplateKey(name)] = tmpl
	}
	if f.RateLimit.Max > 0 {
		out[KeyRateLimitMax] = strconv.Itoa(f.RateLimit.Max)
	}
	if f.RateLimit.WindowSeconds > 0 {
		out[KeyRateLimitWindow] = strconv.Itoa(f.RateLimit.WindowSeconds)
	}
	return out, nil
}

// invalidateDiscovery drops the stored endpoint and field map when the file
// moves the gateway to another base URL without naming them itself.
func (fs *FileSource) invalidateDiscovery(ctx context.Context, f *File, values map[string]string) error {
	url, ok := values[KeyGatewayURL]
	if !ok {
		return nil
	}
	current, err := fs.settings.get(ctx, KeyGatewayURL)
	if err != nil {
		return err
	}
	if current == url {
		return nil
	}
	if f.Gateway.Endpoint == nil {
		values[KeyGatewayEndpoint] = ""
	}
	if f.Gateway.Fields == nil || f.Gateway.Fields.IsZero() {
		values[KeyGatewayFields] = ""
	}
	return nil
}

const watchDebounce = 250 * time.Millisecond

// FileSource applies a YAML settings file to the store and re-applies it
// whenever the file changes.
type FileSource struct {
	path     string
	settings *Settings
	log      *zap.Logger

	mu       sync.Mutex
	lastHash [sha256.Size]byte
}

func NewFileSource(path string, s *Settings, log *zap.Logger) *FileSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileSource{path: path, settings: s, log: log}
}

// Apply reads the file and writes it to the store. It reports false when the
// content is unchanged since the last successful Apply.
func (fs *FileSource) Apply(ctx context.Context) (bool, error) {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		return false, fmt.Errorf("read settings file: %w", err)
	}

	h := sha256.Sum256(b)
	fs.mu.Lock()
	unchanged := h == fs.lastHash
	fs.mu.Unlock()
	if unchanged {
		return false, nil
	}

	f, err := ParseFile(b)
	if err != nil {
		return false, err
	}
	values, err := f.values()
	if err != nil {
		return false, err
	}
	if err := fs.invalidateDiscovery(ctx, f, values); err != nil {
		return false, err
	}
	if err := fs.settings.store.SetMany(ctx, values); err != nil {
		return false, fmt.Errorf("apply settings file: %w", err)
	}

	fs.mu.Lock()
	fs.lastHash = h
	fs.mu.Unlock()

	fs.log.Info("settings file applied", zap.String("path", fs.path), zap.Int("keys", len(values)))
	return true, nil
}

// Watch blocks until ctx is done, calling onChange after every change of the
// file that was applied successfully.
func (fs *FileSource) Watch(ctx context.Context, onChange func(context.Context)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	defer w.Close()

	// Editors often replace the file, so watch the directory.
	dir := filepath.Dir(fs.path)
	file := filepath.Base(fs.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("settings watcher: add %s: %w", dir, err)
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		changed, err := fs.Apply(ctx)
		if err != nil {
			fs.log.Warn("settings file reload failed", zap.String("path", fs.path), zap.Error(err))
			return
		}
		if changed && onChange != nil {
			onChange(ctx)
		}
	}
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	fs.log.Debug("settings watcher started", zap.String("path", fs.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fs.log.Warn("settings watcher error", zap.String("path", fs.path), zap.Error(err))
		}
	}
}
