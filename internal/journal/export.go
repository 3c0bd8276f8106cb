// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package journal

import (
	"context"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fsconvert/pkg/types"
)

// exportDoc is the top-level document written by ExportYAML.
type exportDoc struct {
	Conversions []types.HistoryEntry `yaml:"conversions"`
}

// ExportYAML writes the entries selected by opts to w as a YAML document.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts ListOptions) error {
	entries, err := s.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exportDoc{Conversions: entries}); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}
