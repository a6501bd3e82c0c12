package config

// Tintfile represents the structure of the tint.yaml configuration file.
type Tintfile struct {
	Version    string            `yaml:"version"`
	Root       string            `yaml:"root"`
	Entries    []EntryDTO        `yaml:"entries"`
	LoadPaths  []string          `yaml:"loadPaths"`
	Compiler   []string          `yaml:"compiler"`
	DebounceMS int               `yaml:"debounceMs"`
	Env        map[string]string `yaml:"env"`
}

// EntryDTO represents one entry point definition in the configuration.
type EntryDTO struct {
	Source string `yaml:"source"`
	Output string `yaml:"output"`
}
