package stationcfg

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Recognized document keys and the canonical GUI wiring. A gui type equal to
// the generic alias (any casing) normalizes to DefaultGUIType.
const (
	DefaultGUIType = "stationctl.gui.instruments.GenericInstrument"
	GenericAlias   = "generic"

	instrumentsKey = "instruments"
	guiKey         = "gui"
	guiTypeKey     = "type"
	guiKwargsKey   = "kwargs"
)

var ErrBadDocument = errors.New("stationcfg: bad station document")

// NullFieldError reports a recognized field explicitly set to null. A null
// is never read as "use the default"; it fails the whole split.
type NullFieldError struct {
	Instrument string
	Field      string
}

func (e *NullFieldError) Error() string {
	return fmt.Sprintf("stationcfg: instrument %q: field %q cannot be null", e.Instrument, e.Field)
}

// ServerField is one server-owned setting popped out of each instrument
// entry.
type ServerField struct {
	Name    string
	Default any
}

// GUIDescriptor tells the GUI how to render one instrument.
type GUIDescriptor struct {
	Type   string         `json:"type" yaml:"type"`
	Kwargs map[string]any `json:"kwargs" yaml:"kwargs"`
}

// Options fixes the recognized fields and their defaults.
type Options struct {
	ServerFields []ServerField
	DefaultGUI   GUIDescriptor
	GenericAlias string
	// TempDir overrides where the residual document lands. Empty uses the
	// system temp dir.
	TempDir string
}

func DefaultOptions() Options {
	return Options{
		ServerFields: []ServerField{{Name: "initialize", Default: true}},
		DefaultGUI:   GUIDescriptor{Type: DefaultGUIType, Kwargs: map[string]any{}},
		GenericAlias: GenericAlias,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ServerFields == nil {
		o.ServerFields = def.ServerFields
	}
	if o.DefaultGUI.Type == "" {
		o.DefaultGUI.Type = def.DefaultGUI.Type
	}
	if o.DefaultGUI.Kwargs == nil {
		o.DefaultGUI.Kwargs = map[string]any{}
	}
	if o.GenericAlias == "" {
		o.GenericAlias = def.GenericAlias
	}
	return o
}

// SplitResult carries the three derived views plus the residual document
// artifact. The residual file must outlive its downstream consumer; the
// caller owns invoking Cleanup, the splitter never removes it on its own.
type SplitResult struct {
	ServerConfig map[string]map[string]any
	GUIConfig    map[string]GUIDescriptor
	FullConfig   map[string]map[string]any
	StationPath  string
	Cleanup      func() error
}

// SplitFile reads the document at path and splits it.
func SplitFile(path string, opts Options) (*SplitResult, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read station document %s", path)
	}
	res, err := Split(doc, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "split station document %s", path)
	}
	return res, nil
}

// Split pops the recognized server and gui fields out of every instrument
// entry and derives the three views. The surgery happens at the YAML node
// level so the residual document keeps everything it does not pop, which
// then lands in a temp file for consumers that accept only a file path.
func Split(doc []byte, opts Options) (*SplitResult, error) {
	opts = opts.withDefaults()

	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, errors.Wrap(err, "stationcfg: parse station document")
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.Wrap(ErrBadDocument, "empty document")
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, errors.Wrap(ErrBadDocument, "top level is not a mapping")
	}
	instruments := mapValue(top, instrumentsKey)
	if instruments == nil || isNull(instruments) {
		return nil, errors.Wrap(ErrBadDocument, `missing "instruments" section`)
	}
	if instruments.Kind != yaml.MappingNode {
		return nil, errors.Wrap(ErrBadDocument, `"instruments" is not a mapping`)
	}

	out := &SplitResult{
		ServerConfig: make(map[string]map[string]any),
		GUIConfig:    make(map[string]GUIDescriptor),
		FullConfig:   make(map[string]map[string]any),
	}

	for i := 0; i+1 < len(instruments.Content); i += 2 {
		name := instruments.Content[i].Value
		settings := instruments.Content[i+1]
		if settings.Kind != yaml.MappingNode {
			return nil, errors.Wrapf(ErrBadDocument, "instrument %q settings are not a mapping", name)
		}

		server, err := popServerFields(name, settings, opts.ServerFields)
		if err != nil {
			return nil, err
		}
		gui, err := popGUI(name, settings, opts)
		if err != nil {
			return nil, err
		}

		residual := make(map[string]any)
		if err := settings.Decode(&residual); err != nil {
			return nil, errors.Wrapf(err, "stationcfg: instrument %q residual fields", name)
		}

		// Merge order: gui, then residual, then server fields win.
		full := make(map[string]any, len(residual)+len(server)+1)
		full[guiKey] = gui
		for k, v := range residual {
			full[k] = v
		}
		for k, v := range server {
			full[k] = v
		}

		out.ServerConfig[name] = server
		out.GUIConfig[name] = gui
		out.FullConfig[name] = full
	}

	path, cleanup, err := writeResidual(&root, opts.TempDir)
	if err != nil {
		return nil, err
	}
	out.StationPath = path
	out.Cleanup = cleanup
	return out, nil
}

func popServerFields(instrument string, settings *yaml.Node, fields []ServerField) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		node, ok := popMapValue(settings, field.Name)
		if !ok {
			out[field.Name] = field.Default
			continue
		}
		if isNull(node) {
			return nil, &NullFieldError{Instrument: instrument, Field: field.Name}
		}
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, errors.Wrapf(err, "stationcfg: instrument %q field %q", instrument, field.Name)
		}
		out[field.Name] = value
	}
	return out, nil
}

func popGUI(instrument string, settings *yaml.Node, opts Options) (GUIDescriptor, error) {
	desc := GUIDescriptor{Type: opts.DefaultGUI.Type, Kwargs: cloneKwargs(opts.DefaultGUI.Kwargs)}

	node, ok := popMapValue(settings, guiKey)
	if !ok {
		return desc, nil
	}
	if isNull(node) {
		return GUIDescriptor{}, &NullFieldError{Instrument: instrument, Field: guiKey}
	}
	if node.Kind != yaml.MappingNode {
		return GUIDescriptor{}, errors.Wrapf(ErrBadDocument, "instrument %q gui is not a mapping", instrument)
	}

	if typeNode, ok := popMapValue(node, guiTypeKey); ok {
		if isNull(typeNode) {
			return GUIDescriptor{}, &NullFieldError{Instrument: instrument, Field: guiKey + "." + guiTypeKey}
		}
		var raw string
		if err := typeNode.Decode(&raw); err != nil {
			return GUIDescriptor{}, errors.Wrapf(err, "stationcfg: instrument %q gui type", instrument)
		}
		if strings.EqualFold(raw, opts.GenericAlias) {
			desc.Type = opts.DefaultGUI.Type
		} else {
			desc.Type = raw
		}
	}

	if kwargsNode, ok := popMapValue(node, guiKwargsKey); ok {
		if isNull(kwargsNode) {
			return GUIDescriptor{}, &NullFieldError{Instrument: instrument, Field: guiKey + "." + guiKwargsKey}
		}
		kwargs := make(map[string]any)
		if err := kwargsNode.Decode(&kwargs); err != nil {
			return GUIDescriptor{}, errors.Wrapf(err, "stationcfg: instrument %q gui kwargs", instrument)
		}
		for k, v := range kwargs {
			desc.Kwargs[k] = v
		}
	}

	// Anything else inside gui passes through as keyword arguments.
	extra := make(map[string]any)
	if err := node.Decode(&extra); err != nil {
		return GUIDescriptor{}, errors.Wrapf(err, "stationcfg: instrument %q gui fields", instrument)
	}
	for k, v := range extra {
		desc.Kwargs[k] = v
	}
	return desc, nil
}

// writeResidual serializes the popped document into a temp file and hands
// back its path with a remover.
func writeResidual(doc *yaml.Node, dir string) (string, func() error, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", nil, errors.Wrap(err, "stationcfg: encode residual document")
	}
	if err := enc.Close(); err != nil {
		return "", nil, errors.Wrap(err, "stationcfg: encode residual document")
	}

	f, err := os.CreateTemp(dir, "station-*.yaml")
	if err != nil {
		return "", nil, errors.Wrap(err, "stationcfg: create residual file")
	}
	path := f.Name()
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, errors.Wrapf(err, "stationcfg: write residual file %s", path)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, errors.Wrapf(err, "stationcfg: close residual file %s", path)
	}
	return path, func() error { return os.Remove(path) }, nil
}

func mapValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// popMapValue removes the key/value pair from a mapping node and returns the
// value node.
func popMapValue(node *yaml.Node, key string) (*yaml.Node, bool) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			value := node.Content[i+1]
			node.Content = append(node.Content[:i], node.Content[i+2:]...)
			return value, true
		}
	}
	return nil, false
}

func isNull(node *yaml.Node) bool {
	return node.Tag == "!!null"
}

func cloneKwargs(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
