package file

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/pelletier/go-toml/v2"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a settings file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, oops.Errorf("unsupported settings file extension %q (use .json, .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// encode writes values as a flat document: one entry per key.
func encode(f Format, values map[string]any) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(values, "", "  ")
	case FormatYAML:
		return yaml.Marshal(values)
	case FormatTOML:
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(values); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, oops.Errorf("unknown format %d", f)
	}
}

// decode reads a document. Nested tables are flattened into delimited keys,
// so hand written files may group keys by category.
func decode(f Format, data []byte) (map[string]any, error) {
	raw := make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}

	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		err = oops.Errorf("unknown format %d", f)
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(raw))
	flatten("", raw, settings.CurrentConfig().Delimiter, out)
	return out, nil
}

func flatten(prefix string, in map[string]any, delimiter string, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + delimiter + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, delimiter, out)
			continue
		}
		if v == nil {
			continue
		}
		out[key] = v
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// ReadValues reads the settings file at path. A missing file yields an empty
// map and fs.ErrNotExist.
func ReadValues(path string) (map[string]any, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, err
	}
	if err != nil {
		return nil, oops.Wrapf(err, "reading settings file %s", path)
	}
	values, err := decode(format, data)
	if err != nil {
		return nil, oops.Wrapf(err, "decoding %s settings file %s", format, path)
	}
	return values, nil
}

// WriteValues replaces the settings file at path. The document is written to
// a temporary file in the same directory and renamed into place.
func WriteValues(path string, values map[string]any, perm os.FileMode) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := encode(format, values)
	if err != nil {
		return oops.Wrapf(err, "encoding %s settings file %s", format, path)
	}
	return WriteAtomic(path, data, perm)
}

// WriteAtomic writes data to a temporary file next to path and renames it into
// place.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return oops.Wrapf(err, "creating directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return oops.Wrapf(err, "creating temporary file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after the rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return oops.Wrapf(err, "writing %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return oops.Wrapf(err, "syncing %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return oops.Wrapf(err, "closing %s", tmpName)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return oops.Wrapf(err, "setting permissions of %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return oops.Wrapf(err, "replacing %s", path)
	}
	return nil
}
