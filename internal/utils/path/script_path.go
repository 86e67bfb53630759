// Package pathutils resolves experiment script references.
package pathutils

import "path/filepath"

// ResolveScriptPath resolves scriptReference against the directory containing the configuration file.
// The result is cleaned of redundant separators and dot segments; existence is not checked.
// Absolute script references are returned cleaned and unchanged otherwise.
func ResolveScriptPath(configurationFilePath string, scriptReference string) string {
	if filepath.IsAbs(scriptReference) {
		return filepath.Clean(scriptReference)
	}
	configurationDirectory := filepath.Dir(configurationFilePath)
	return filepath.Clean(filepath.Join(configurationDirectory, scriptReference))
}
