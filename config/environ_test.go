package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnviron(t *testing.T) {
	env := ParseEnviron([]string{"A=1", "B=x=y", "NOEQUALS", "=orphan", "EMPTY="})

	assert.Equal(t, Environ{"A": "1", "B": "x=y", "EMPTY": ""}, env)
}

func TestEnvironPairsRoundTrip(t *testing.T) {
	env := Environ{"HTTPBIN_URL": "http://b", "ENV": "ci"}

	assert.ElementsMatch(t, []string{"HTTPBIN_URL=http://b", "ENV=ci"}, env.Pairs())
	assert.Equal(t, env, ParseEnviron(env.Pairs()))
}

func TestNilEnvironIsEmpty(t *testing.T) {
	var env Environ
	assert.Equal(t, "", env.Get(EnvName))
	assert.Empty(t, env.Pairs())
}

func TestOverrideTransform(t *testing.T) {
	key, value := overrideTransform(EnvHTTPBinURL, "http://b")
	assert.Equal(t, "base_url", key)
	assert.Equal(t, "http://b", value)

	key, _ = overrideTransform(EnvRabbitMQURL, "")
	assert.Empty(t, key, "empty values never override")

	key, _ = overrideTransform("PATH", "/usr/bin")
	assert.Empty(t, key, "unrecognized variables are ignored")
}
