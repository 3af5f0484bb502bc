package schemasource

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/VicerInfoTech/TIF-AI/internal/schema"
	"github.com/VicerInfoTech/TIF-AI/internal/storage"
)

// ObjectSource reads schema artifacts from an object store, one database per
// key prefix. The store's List is sorted, which gives the same deterministic
// artifact order as DirSource.
type ObjectSource struct {
	Store storage.ObjectStore
}

// NewObjectSource wraps an object store.
func NewObjectSource(store storage.ObjectStore) *ObjectSource {
	return &ObjectSource{Store: store}
}

func (s *ObjectSource) LoadDescription(ctx context.Context, databaseID string) (schema.Description, error) {
	prefix := strings.Trim(databaseID, "/") + "/"
	infos, err := s.Store.List(ctx, prefix)
	if err != nil {
		return schema.Description{}, err
	}
	if len(infos) == 0 {
		return schema.Description{}, fmt.Errorf("no schema artifacts under %q", prefix)
	}

	desc := schema.Description{DatabaseID: databaseID}
	for _, info := range infos {
		if !isYAMLFile(info.Key) {
			continue
		}
		data, err := s.readObject(ctx, info.Key)
		if err != nil {
			return schema.Description{}, err
		}
		if path.Base(info.Key) == indexFileName {
			var index indexDoc
			if err := yaml.Unmarshal(data, &index); err != nil {
				return schema.Description{}, fmt.Errorf("decode %s: %w", indexFileName, err)
			}
			desc.Version = index.Version
			continue
		}
		table, err := decodeTable(data)
		if err != nil {
			return schema.Description{}, fmt.Errorf("artifact %q: %w", info.Key, err)
		}
		desc.Tables = append(desc.Tables, table)
	}
	return desc, nil
}

func (s *ObjectSource) readObject(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return data, nil
}
