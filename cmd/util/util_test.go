package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestGetClientConfig(t *testing.T) {
	viper.Set("transport-endpoints", "localhost:8080, ,http://other:9090")
	viper.Set("timeout", 7)
	viper.Set("transport-retries", 2)
	t.Cleanup(viper.Reset)

	conf := GetClientConfig()
	assert.Equal(t, []string{"localhost:8080", "http://other:9090"}, conf.Endpoints)
	assert.Equal(t, 7, conf.TimeoutSecond)
	assert.Equal(t, 2, conf.RetryCount)
}

func TestGetSerializerAndTransport(t *testing.T) {
	t.Cleanup(viper.Reset)

	s, err := GetSerializer()
	require.NoError(t, err)
	assert.NotNil(t, s)

	viper.Set("serializer", "xml")
	_, err = GetSerializer()
	assert.Error(t, err)

	_, err = GetTransport()
	require.NoError(t, err)
	viper.Set("transport", "tcp")
	_, err = GetTransport()
	assert.Error(t, err)
	_, err = GetServerTransport()
	assert.Error(t, err)
}

func TestApplySettingsConfig(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		settings.Configure(settings.DefaultConfig())
	})

	viper.Set("delimiter", "/")
	viper.Set("naming", "camel")
	viper.Set("max-changes", 16)
	require.NoError(t, ApplySettingsConfig())

	cfg := settings.CurrentConfig()
	assert.Equal(t, "/", cfg.Delimiter)
	assert.Equal(t, settings.NamingCamelCase, cfg.Naming)
	assert.Equal(t, 16, cfg.MaxChanges)
	assert.Equal(t, settings.DefaultConfig().MaxNesting, cfg.MaxNesting)

	viper.Set("naming", "kebab")
	assert.Error(t, ApplySettingsConfig())
}
