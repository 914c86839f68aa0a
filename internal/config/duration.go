package config

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// durationHook decodes TOML duration strings ("10m", "500ms") into our
// Duration type via mapstructure, the way viper-based configs in the
// ecosystem commonly add a StringToTimeDurationHookFunc variant.
func durationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(Duration(0)) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(data.(string))
		if err != nil {
			return nil, err
		}
		return Duration(d), nil
	case reflect.Int64, reflect.Int, reflect.Float64:
		return mapstructure.StringToTimeDurationHookFunc()(from, reflect.TypeOf(time.Duration(0)), data)
	default:
		return data, nil
	}
}
