package playcord

import (
	"reflect"
	"testing"

	"tools.zach/dev/playcord/internal/config"
)

func TestDefaultConfigTOML_MatchesDefaults(t *testing.T) {
	cfg, err := config.Parse(DefaultConfigTOML)
	if err != nil {
		t.Fatalf("Parse embedded defaults: %v", err)
	}
	if !reflect.DeepEqual(cfg, config.DefaultConfig()) {
		t.Fatalf("embedded defaults drifted:\n got %+v\nwant %+v", cfg, config.DefaultConfig())
	}
}
