// Copyright (C) 2017 ScyllaDB

package cfgutil

import (
	"fmt"
	"os"

	"go.uber.org/config"
)

// ParseYAML attempts to load and parse the files given by files and store
// the contents of the files in the struct given by target.
// It will overwrite any conflicting keys by the keys in the subsequent files.
// Missing files will not cause an error but will just be skipped.
// References of the form ${NAME} or ${NAME:default} are expanded from the environment.
func ParseYAML(target interface{}, files ...string) error {
	opts := []config.YAMLOption{
		config.Expand(os.LookupEnv),
	}
	for _, f := range files {
		if fileExists(f) {
			opts = append(opts, config.File(f))
		}
	}
	cfg, err := config.NewYAML(opts...)
	if err != nil {
		return fmt.Errorf("can't load config: %w", err)
	}
	if err := cfg.Get(config.Root).Populate(target); err != nil {
		return err
	}
	return nil
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
