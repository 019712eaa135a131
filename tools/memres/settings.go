package main

import "fmt"
import "os"

import s "github.com/bnclabs/gosettings"
import "gopkg.in/yaml.v3"

// loadsettings read a yaml file into flat settings, nested mappings
// are joined with ".", like:
//
//	policy: accounting
//	budget: 1024
//	arena:
//	  capacity: 65536
func loadsettings(filename string) (s.Settings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("settings %q: %v", filename, err)
	}
	setts := make(s.Settings)
	flatten("", doc, setts)
	return setts, nil
}

func flatten(prefix string, doc map[string]interface{}, setts s.Settings) {
	for key, value := range doc {
		switch val := value.(type) {
		case map[string]interface{}:
			flatten(prefix+key+".", val, setts)
		case int:
			setts[prefix+key] = int64(val)
		default:
			setts[prefix+key] = val
		}
	}
}
