package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/httpmock/httpmock/pkg/mock"
	"github.com/httpmock/httpmock/pkg/recording"
)

// mockFileGlobs are the patterns expanded inside the static mock directory.
var mockFileGlobs = []string{"**/*.yaml", "**/*.yml", "**/*.json"}

// LoadStaticMocks reads every mock definition file under dir. YAML files use
// the recording document form (mocks: [{when, then}]); JSON files hold a
// single definition or an array of them. Files are loaded in sorted path
// order so mock IDs are deterministic.
func LoadStaticMocks(dir string) ([]*mock.Definition, error) {
	root := os.DirFS(dir)
	var paths []string
	for _, pattern := range mockFileGlobs {
		matches, err := doublestar.Glob(root, pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	var defs []*mock.Definition
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("reading mock file %s: %w", p, err)
		}
		fileDefs, err := parseMockFile(p, data)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

func parseMockFile(path string, data []byte) ([]*mock.Definition, error) {
	if strings.HasSuffix(path, ".json") {
		var many []*mock.Definition
		if err := json.Unmarshal(data, &many); err == nil {
			return many, nil
		}
		var one mock.Definition
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("parsing mock file %s: %w", path, err)
		}
		return []*mock.Definition{&one}, nil
	}

	defs, err := recording.Load(data)
	if err != nil {
		return nil, fmt.Errorf("parsing mock file %s: %w", path, err)
	}
	return defs, nil
}
