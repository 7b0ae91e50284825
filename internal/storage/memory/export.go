// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	v1 "github.com/molsim/dockenergy/internal/storage/memory/export/v1"
	"github.com/molsim/dockenergy/pkg/core"
)

// exportJSON writes one session trace to OutputDir, gzipped when
// CompressOutput is set. Callers hold b.mu.
func (b *Backend) exportJSON(rec *SessionRecord) error {
	path, err := WriteExport(b.cfg.OutputDir, &v1.SessionData{Session: rec.Session, Samples: rec.Samples}, b.cfg.CompressOutput)
	if err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

// ExportFileName names the export file of a session.
func ExportFileName(s core.SessionRecord, compress bool) string {
	id := s.UUID
	if len(id) > 8 {
		id = id[:8]
	}
	timestamp := s.StartedAt.Format("20060102_150405")

	if compress {
		return fmt.Sprintf("session_%s_%s.json.gz", timestamp, id)
	}
	return fmt.Sprintf("session_%s_%s.json", timestamp, id)
}

// WriteExport builds the v1 export of data and writes it into dir. It
// returns the path of the written file.
func WriteExport(dir string, data *v1.SessionData, compress bool) (string, error) {
	export := v1.Build(data)
	outputPath := filepath.Join(dir, ExportFileName(data.Session, compress))

	// Ensure output directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if compress {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return "", err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return "", err
		}
	}
	return outputPath, nil
}

func writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
