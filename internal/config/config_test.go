package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tomgalvin.uk/catprint/internal/render"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	vals, err := Load(filepath.Join(t.TempDir(), CfgFile))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), vals)
	assert.Equal(t, 200, vals.ChunkSize)
	assert.Equal(t, 15*time.Second, vals.ScanTimeout.Duration)
	assert.Equal(t, "atkinson", vals.Print.Dither)
	assert.Equal(t, 0x60, vals.Print.Energy)
	assert.Equal(t, 100, vals.Print.FeedLines)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, CfgFile, `
listen = ":9000"
transport = "hci"
device_name = "GB02"
scan_timeout = "30s"

[print]
dither = "floyd-steinberg"
energy = 200
`)
	vals, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", vals.Listen)
	assert.Equal(t, TransportHCI, vals.Transport)
	assert.Equal(t, "GB02", vals.DeviceName)
	assert.Equal(t, 30*time.Second, vals.ScanTimeout.Duration)
	assert.Equal(t, 200, vals.Print.Energy)
	// untouched keys keep their defaults
	assert.Equal(t, "catprint.db", vals.Database)
	assert.Equal(t, 100, vals.Print.FeedLines)
	assert.Equal(t, render.FloydSteinberg, vals.Print.RenderOptions().Algorithm)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, CfgFile, `listen = ":9000"`)
	t.Setenv("CATPRINT_LISTEN", ":9100")
	t.Setenv("CATPRINT_CHUNK_SIZE", "120")
	t.Setenv("CATPRINT_DEBUG_LOGGING", "true")
	t.Setenv("CATPRINT_SCAN_TIMEOUT", "5s")
	t.Setenv("CATPRINT_DITHER", "bayer")

	vals, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", vals.Listen)
	assert.Equal(t, 120, vals.ChunkSize)
	assert.True(t, vals.DebugLogging)
	assert.Equal(t, 5*time.Second, vals.ScanTimeout.Duration)
	assert.Equal(t, "bayer", vals.Print.Dither)
}

func TestEnvFile(t *testing.T) {
	t.Setenv("CATPRINT_ENERGY", "")
	os.Unsetenv("CATPRINT_ENERGY")
	path := writeFile(t, ".env", "CATPRINT_ENERGY=77\n")

	require.NoError(t, LoadEnvFile(path))
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))

	vals, err := Load(filepath.Join(t.TempDir(), CfgFile))
	require.NoError(t, err)
	assert.Equal(t, 77, vals.Print.Energy)
}

func TestInvalidValues(t *testing.T) {
	cases := map[string]string{
		"transport":  `transport = "serial"`,
		"chunk size": `chunk_size = 0`,
		"dither":     "[print]\ndither = \"halftone\"",
		"syntax":     `listen = `,
		"timeout":    `scan_timeout = "soon"`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, CfgFile, content))
			assert.Error(t, err)
		})
	}
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("CATPRINT_CHUNK_SIZE", "lots")
	_, err := Load(filepath.Join(t.TempDir(), CfgFile))
	assert.ErrorContains(t, err, "CATPRINT_CHUNK_SIZE")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", CfgFile)
	want := Defaults()
	want.DeviceName = "MX10"
	want.ScanTimeout.Duration = 42 * time.Second

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", CfgFile), Path("dir"))
	t.Setenv(CfgEnv, "/etc/catprint.toml")
	assert.Equal(t, "/etc/catprint.toml", Path("dir"))
}
