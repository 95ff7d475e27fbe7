package operators

import (
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Settings carries the filter field settings relevant for operator
// resolution.
type Settings struct {
	OperatorConfiguration []OperatorConfiguration `mapstructure:"operatorConfiguration"`
}

// ParseSettings reads settings JSON, either wrapped as {"customData": {...}}
// or given directly. Empty input yields nil settings.
func ParseSettings(data []byte) (*Settings, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if custom, ok := raw["customData"].(map[string]any); ok {
		raw = custom
	}

	var settings Settings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		Result:           &settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}
