package schemasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/VicerInfoTech/TIF-AI/internal/schema"
)

// DirSource reads schema artifacts from <root>/<databaseID>/*.yaml on the
// local filesystem.
type DirSource struct {
	Root string
}

// NewDirSource returns a source rooted at the given directory.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

// LoadDescription reads the artifact directory for one database. Table files
// are processed in lexical filename order so repeated loads see an identical
// description.
func (s *DirSource) LoadDescription(ctx context.Context, databaseID string) (schema.Description, error) {
	dir := filepath.Join(s.Root, filepath.Clean(databaseID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return schema.Description{}, fmt.Errorf("read schema directory %q: %w", dir, err)
	}

	desc := schema.Description{DatabaseID: databaseID}
	var tableFiles []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		if entry.Name() == indexFileName {
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return schema.Description{}, fmt.Errorf("read %s: %w", indexFileName, err)
			}
			var index indexDoc
			if err := yaml.Unmarshal(data, &index); err != nil {
				return schema.Description{}, fmt.Errorf("decode %s: %w", indexFileName, err)
			}
			desc.Version = index.Version
			continue
		}
		tableFiles = append(tableFiles, entry.Name())
	}
	sort.Strings(tableFiles)

	for _, name := range tableFiles {
		if err := ctx.Err(); err != nil {
			return schema.Description{}, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return schema.Description{}, fmt.Errorf("read table artifact %q: %w", name, err)
		}
		table, err := decodeTable(data)
		if err != nil {
			return schema.Description{}, fmt.Errorf("artifact %q: %w", name, err)
		}
		desc.Tables = append(desc.Tables, table)
	}
	return desc, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
