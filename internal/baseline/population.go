package baseline

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed population_baseline.json
var populationJSON []byte

// LoadPopulation reads population statistics from path, or the embedded
// reference set when path is empty. Keys starting with an underscore are
// treated as comments.
func LoadPopulation(path string) (Metrics, error) {
	data := populationJSON
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read population baseline: %w", err)
		}
		data = raw
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode population baseline: %w", err)
	}
	out := make(Metrics, len(raw))
	for name, value := range raw {
		if strings.HasPrefix(name, "_") {
			continue
		}
		var stat Stat
		if err := json.Unmarshal(value, &stat); err != nil {
			return nil, fmt.Errorf("decode population baseline metric %q: %w", name, err)
		}
		out[name] = stat
	}
	return out, nil
}
