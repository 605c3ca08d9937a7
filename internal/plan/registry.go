package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"stacker/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed plans.schema.json
var schemaJSON string

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func planSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("plans.schema.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("plans.schema.json")
	})
	return schemaCompiled, schemaErr
}

// FileConfig maps the plans file.
type FileConfig struct {
	Plans []Plan `yaml:"plans"`
}

// Snapshot is an immutable view of the loaded plans.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Plans    map[string]Plan
}

type ChangeListener func(Snapshot)

// Registry serves plans from a YAML file and reloads them when it changes.
// A reload that fails validation keeps the previous snapshot.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry loads path without watching it.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("plan registry requires path")
	}
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch reloads the registry whenever the file changes on disk.
func (r *Registry) Watch() error {
	v := viper.New()
	v.SetConfigFile(r.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read plan file failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.Reload(); err != nil {
			logger.Errorf("plan reload failed (%s), keeping previous plans: %v", evt.Op, err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	r.v = v
	return nil
}

func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Plan returns a private copy of the plan with id.
func (r *Registry) Plan(id string) (Plan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Plans[strings.TrimSpace(id)]
	if !ok {
		return Plan{}, false
	}
	return p.Clone(), true
}

// All returns every plan sorted by id.
func (r *Registry) All() []Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plan, 0, len(r.snapshot.Plans))
	for _, p := range r.snapshot.Plans {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EnabledIDs lists the ids of enabled plans, sorted.
func (r *Registry) EnabledIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.snapshot.Plans))
	for id, p := range r.snapshot.Plans {
		if p.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Reload re-reads the file and swaps the snapshot when it is valid.
func (r *Registry) Reload() error {
	plans, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	byID := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Plans:    byID,
	}
	r.mu.Unlock()
	logger.Infof("Plan registry loaded %d plans from %s", len(byID), filepath.Base(r.path))
	return nil
}

// LoadFile reads, schema-checks, decodes and validates a plans file.
func LoadFile(path string) ([]Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file failed: %w", err)
	}
	return Parse(raw)
}

// Parse is LoadFile for in-memory content.
func Parse(raw []byte) ([]Plan, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse plan file failed: %w", err)
	}
	seen := make(map[string]bool, len(cfg.Plans))
	out := make([]Plan, 0, len(cfg.Plans))
	for i, p := range cfg.Plans {
		p = p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("plans[%d]: %w", i, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("plans[%d]: duplicate plan id %q", i, p.ID)
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

func validateSchema(raw []byte) error {
	schema, err := planSchema()
	if err != nil {
		return fmt.Errorf("plan schema compile failed: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("parse plan file failed: %w", err)
	}
	if generic == nil {
		generic = map[string]any{}
	}
	data, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("plan file is not representable as json: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("plan file is not representable as json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("plan file does not match schema: %w", err)
	}
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("plan listener")
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Plans:    make(map[string]Plan, len(src.Plans)),
	}
	for id, p := range src.Plans {
		dst.Plans[id] = p.Clone()
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
