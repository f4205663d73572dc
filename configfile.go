package papergen

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPaperConfig reads a PaperConfig from a YAML file and cross-checks the
// declared total against the section sums. Per-section quota problems are the
// allocator's business; only whole-config contradictions fail here, before
// any generation spend.
func LoadPaperConfig(path string) (PaperConfig, error) {
	var config PaperConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read paper config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse paper config: %w", err)
	}

	if err := CheckPaperConfig(config); err != nil {
		return config, err
	}

	// Topics can name image files on disk; load them here so the engine
	// itself never touches the filesystem for visual context.
	for si := range config.Sections {
		for ti := range config.Sections[si].Topics {
			v := config.Sections[si].Topics[ti].Visual
			if v == nil {
				continue
			}
			for _, p := range v.ImagePaths {
				img, err := os.ReadFile(p)
				if err != nil {
					return config, fmt.Errorf("failed to read visual context image %s: %w", p, err)
				}
				v.Images = append(v.Images, img)
			}
		}
	}

	return config, nil
}

// CheckPaperConfig validates the config-level invariants: a name, at least
// one section, and a declared total (when present) matching the section sums.
func CheckPaperConfig(config PaperConfig) error {
	if config.Name == "" {
		return fmt.Errorf("paper config has no name")
	}
	if len(config.Sections) == 0 {
		return fmt.Errorf("paper config has no sections")
	}
	if config.TotalQuestions > 0 {
		sum := 0
		for _, s := range config.Sections {
			sum += s.QuestionCount
		}
		if sum != config.TotalQuestions {
			return fmt.Errorf("section question counts sum to %d, declared total is %d",
				sum, config.TotalQuestions)
		}
	}
	return nil
}
