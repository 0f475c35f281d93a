package metadata

import (
	"encoding/json"
	"os"

	bimerrors "bimdex/internal/errors"
	"bimdex/internal/logging"
)

// Fetcher reads raw metadata payloads from disk
type Fetcher struct {
	logger *logging.Logger
}

// NewFetcher creates a metadata fetcher
func NewFetcher(logger *logging.Logger) *Fetcher {
	return &Fetcher{logger: logger}
}

// Fetch reads and decodes the metadata payload at path. An empty path
// means "no metadata" and returns nil without error; downstream parsing
// treats the nil payload as a valid empty record set.
func (f *Fetcher) Fetch(path string) (interface{}, error) {
	if path == "" {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, bimerrors.New(bimerrors.MetadataInvalid, "cannot read metadata payload", err)
	}

	var raw interface{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, bimerrors.New(bimerrors.MetadataInvalid, "cannot parse metadata payload", err)
	}

	f.logger.Debug("metadata payload fetched", map[string]interface{}{
		"path":  path,
		"bytes": len(content),
	})

	return raw, nil
}
