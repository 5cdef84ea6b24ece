package adventure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"gopkg.in/yaml.v3"
)

// Load reads and validates one adventure file. Any failure is returned, so an
// explicitly named file that cannot be used stops the caller.
func Load(path string) (*Adventure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeAdventureInvalid, "read adventure", map[string]string{"source": path}, err)
	}
	adv, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeAdventureInvalid, fmt.Sprintf("parse adventure %s", path), map[string]string{"source": path}, err)
	}
	adv.Source = path
	if err := adv.Validate(); err != nil {
		return nil, err
	}
	return adv, nil
}

// Parse decodes an adventure document. ext selects YAML for ".yaml" and
// ".yml"; anything else is read as JSON. Unknown JSON fields are rejected.
func Parse(data []byte, ext string) (*Adventure, error) {
	adv := &Adventure{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(adv); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("document is empty")
			}
			return nil, err
		}
	default:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(adv); err != nil {
			return nil, err
		}
		var extra json.RawMessage
		if err := decoder.Decode(&extra); err != io.EOF {
			return nil, fmt.Errorf("unexpected data after adventure object")
		}
	}
	return adv, nil
}

// IsAdventureFile reports whether path has an adventure file extension.
func IsAdventureFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadDir loads every adventure file directly inside dir, in name order.
// Files that fail to load are skipped with a warning on logger.
func LoadDir(dir string, logger *log.Logger) ([]*Adventure, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read adventure dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var adventures []*Adventure
	for _, entry := range entries {
		if entry.IsDir() || !IsAdventureFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		adv, err := Load(path)
		if err != nil {
			logger.Printf("skip adventure %s: %v", path, err)
			continue
		}
		adventures = append(adventures, adv)
	}
	return adventures, nil
}

// LoadPath loads an adventure from a file, or the first valid adventure of a
// directory.
func LoadPath(path string, logger *log.Logger) (*Adventure, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeAdventureInvalid, "open adventure", map[string]string{"source": path}, err)
	}
	if !info.IsDir() {
		return Load(path)
	}
	adventures, err := LoadDir(path, logger)
	if err != nil {
		return nil, err
	}
	if len(adventures) == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeAdventureInvalid, fmt.Sprintf("no valid adventure in %s", path), map[string]string{"source": path})
	}
	return adventures[0], nil
}
