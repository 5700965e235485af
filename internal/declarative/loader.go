package declarative

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// Load reads a stack from path, which is either a single Stack file or a
// directory laid out as described by LoadDirectory.
func Load(path string) (*DesiredState, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions is Load with caller-provided loading options.
func LoadWithOptions(path string, opts LoadOptions) (*DesiredState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stack config: %w", err)
	}
	if info.IsDir() {
		return LoadDirectoryWithOptions(path, opts)
	}
	return LoadFileWithOptions(path, opts)
}

// LoadFile reads a single file holding a Stack document.
func LoadFile(path string) (*DesiredState, error) {
	return LoadFileWithOptions(path, LoadOptions{})
}

// LoadFileWithOptions reads a single Stack file using caller-provided options.
func LoadFileWithOptions(path string, opts LoadOptions) (*DesiredState, error) {
	var doc StackDoc
	found, err := loadYAMLFile(path, &doc, opts)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("stack config: %s does not exist", path)
	}
	if err := validateDocument(path, doc.APIVersion, doc.Kind, KindNameStack); err != nil {
		return nil, err
	}
	state := &DesiredState{Name: doc.Metadata.Name}
	state.addStack(doc.Spec, path)
	return state, nil
}

// LoadDirectory reads a stack directory:
//
//	stack.yaml            optional Stack document
//	sources/*.yaml        SourceList documents
//	transformations/*.yaml TransformationList documents
//	dashboards/*.yaml     DashboardList documents
//
// Files within a section are read in lexical order and their entries are
// appended in that order. Missing sections are fine.
func LoadDirectory(dir string) (*DesiredState, error) {
	return LoadDirectoryWithOptions(dir, LoadOptions{})
}

// LoadDirectoryWithOptions reads a stack directory using caller-provided options.
func LoadDirectoryWithOptions(dir string, opts LoadOptions) (*DesiredState, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config directory: %s is not a directory", dir)
	}

	state := &DesiredState{Name: filepath.Base(dir)}

	// 1. stack.yaml
	stackPath := filepath.Join(dir, "stack.yaml")
	var stackDoc StackDoc
	if found, err := loadYAMLFile(stackPath, &stackDoc, opts); err != nil {
		return nil, err
	} else if found {
		if err := validateDocument(stackPath, stackDoc.APIVersion, stackDoc.Kind, KindNameStack); err != nil {
			return nil, err
		}
		if stackDoc.Metadata.Name != "" {
			state.Name = stackDoc.Metadata.Name
		}
		state.addStack(stackDoc.Spec, stackPath)
	}

	// 2. sources/
	err = eachYAMLFile(filepath.Join(dir, "sources"), func(path string) error {
		var doc SourceListDoc
		if _, err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, KindNameSourceList); err != nil {
			return err
		}
		state.addSources(doc.Sources, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 3. transformations/
	err = eachYAMLFile(filepath.Join(dir, "transformations"), func(path string) error {
		var doc TransformationListDoc
		if _, err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, KindNameTransformationList); err != nil {
			return err
		}
		state.addTransformations(doc.Transformations, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 4. dashboards/
	err = eachYAMLFile(filepath.Join(dir, "dashboards"), func(path string) error {
		var doc DashboardListDoc
		if _, err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, KindNameDashboardList); err != nil {
			return err
		}
		state.addDashboards(doc.Dashboards, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// eachYAMLFile calls fn for every .yaml/.yml file in dir, in lexical order.
// A missing dir is not an error.
func eachYAMLFile(dir string, fn func(path string) error) error {
	if !dirExists(dir) {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := fn(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// loadYAMLFile reads and unmarshals a YAML file into the given target.
// Returns (false, nil) if file doesn't exist (optional files).
// Returns (false, err) on read/parse errors.
// Returns (true, nil) on success.
func loadYAMLFile(path string, target interface{}, opts LoadOptions) (bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified config files
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if opts.AllowUnknownFields {
		if err := yaml.Unmarshal(data, target); err != nil {
			return false, fmt.Errorf("parse %s: %w", path, err)
		}
		return true, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path string, apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return fmt.Errorf("%s: unexpected kind %q (expected %q)", path, kind, expectedKind)
	}
	return nil
}

// dirExists returns true if path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
