package schemasource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/VicerInfoTech/TIF-AI/internal/schema"
	"github.com/VicerInfoTech/TIF-AI/internal/storage"
)

// WriteDir writes a description as an artifact directory readable by
// DirSource: one YAML file per table plus the index file.
func WriteDir(root string, desc schema.Description) error {
	dir := filepath.Join(root, filepath.Clean(desc.DatabaseID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schema directory %q: %w", dir, err)
	}

	index := indexDoc{Database: desc.DatabaseID, Version: desc.Version}
	for _, table := range desc.Tables {
		data, err := encodeTable(table)
		if err != nil {
			return fmt.Errorf("encode table %q: %w", table.Name, err)
		}
		name := artifactFileName(table.Name)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write table artifact %q: %w", name, err)
		}
		index.Tables = append(index.Tables, table.Name)
	}

	indexData, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode %s: %w", indexFileName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, indexFileName), indexData, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", indexFileName, err)
	}
	return nil
}

// WriteObjectStore uploads a description under the database identifier
// prefix, readable by ObjectSource.
func WriteObjectStore(ctx context.Context, store storage.ObjectStore, desc schema.Description) error {
	prefix := strings.Trim(desc.DatabaseID, "/")

	index := indexDoc{Database: desc.DatabaseID, Version: desc.Version}
	for _, table := range desc.Tables {
		data, err := encodeTable(table)
		if err != nil {
			return fmt.Errorf("encode table %q: %w", table.Name, err)
		}
		key := path.Join(prefix, artifactFileName(table.Name))
		if _, err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/yaml"}); err != nil {
			return err
		}
		index.Tables = append(index.Tables, table.Name)
	}

	indexData, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode %s: %w", indexFileName, err)
	}
	key := path.Join(prefix, indexFileName)
	if _, err := store.Put(ctx, key, bytes.NewReader(indexData), int64(len(indexData)), storage.PutOptions{ContentType: "application/yaml"}); err != nil {
		return err
	}
	return nil
}

func artifactFileName(tableName string) string {
	name := strings.ToLower(strings.TrimSpace(tableName))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	return name + ".yaml"
}
