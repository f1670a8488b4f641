package config

// GetString returns a raw settings value by dotted path, for keys the
// Settings struct does not model. The optional default applies when the key is absent.
func (s *Settings) GetString(key string, defaultVal ...string) string {
	if s.k == nil || !s.k.Exists(key) {
		return optionalDefault("", defaultVal...)
	}
	return s.k.String(key)
}

// GetInt returns a raw integer settings value by dotted path.
func (s *Settings) GetInt(key string, defaultVal ...int) int {
	if s.k == nil || !s.k.Exists(key) {
		return optionalDefault(0, defaultVal...)
	}
	return s.k.Int(key)
}

// GetBool returns a raw boolean settings value by dotted path.
func (s *Settings) GetBool(key string, defaultVal ...bool) bool {
	if s.k == nil || !s.k.Exists(key) {
		return optionalDefault(false, defaultVal...)
	}
	return s.k.Bool(key)
}

// Exists reports whether key was set by any source.
func (s *Settings) Exists(key string) bool {
	return s.k != nil && s.k.Exists(key)
}

// All returns a flattened copy of every resolved key.
func (s *Settings) All() map[string]any {
	if s.k == nil {
		return map[string]any{}
	}
	return s.k.All()
}

func optionalDefault[T any](zero T, overrides ...T) T {
	if len(overrides) > 0 {
		return overrides[0]
	}
	return zero
}
