package flagx

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invalidateOptions struct {
	Tenant    string        `flag:"tenant,t" usage:"tenant id" required:"true"`
	Namespace string        `flag:"namespace" usage:"cache namespace" default:"summary"`
	Tags      []string      `flag:"tag" usage:"tag to drop"`
	Workers   int           `flag:"workers" default:"8"`
	DryRun    bool          `flag:"dry-run"`
	Timeout   time.Duration `flag:"timeout" default:"2s"`
	Untagged  string
}

func TestBindAndParse(t *testing.T) {
	var opts invalidateOptions
	cmd := &cobra.Command{Use: "invalidate", RunE: func(cmd *cobra.Command, _ []string) error {
		return ParseFlags(cmd, &opts)
	}}
	require.NoError(t, BindFlags(cmd, &opts))

	cmd.SetArgs([]string{"-t", "acme", "--tag", "date:2024-03-01", "--tag", "realtime", "--dry-run", "--timeout", "500ms"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "acme", opts.Tenant)
	assert.Equal(t, "summary", opts.Namespace)
	assert.Equal(t, []string{"date:2024-03-01", "realtime"}, opts.Tags)
	assert.Equal(t, 8, opts.Workers)
	assert.True(t, opts.DryRun)
	assert.Equal(t, 500*time.Millisecond, opts.Timeout)
	assert.Empty(t, opts.Untagged)
}

func TestBindFlags_Required(t *testing.T) {
	var opts invalidateOptions
	cmd := &cobra.Command{Use: "invalidate", RunE: func(*cobra.Command, []string) error { return nil }}
	require.NoError(t, BindFlags(cmd, &opts))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.SetArgs([]string{"--tag", "realtime"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant")
}

func TestBindPersistentFlags_Inherited(t *testing.T) {
	type global struct {
		ConfigDir string `flag:"config-dir,c"`
		Port      int    `flag:"port"`
	}
	var root global
	var got global

	rootCmd := &cobra.Command{Use: "shield"}
	require.NoError(t, BindPersistentFlags(rootCmd, &root))
	rootCmd.AddCommand(&cobra.Command{Use: "stats", RunE: func(cmd *cobra.Command, _ []string) error {
		return ParseFlags(cmd, &got)
	}})

	rootCmd.SetArgs([]string{"stats", "-c", "/etc/shield", "--port", "9090"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/etc/shield", got.ConfigDir)
	assert.Equal(t, 9090, got.Port)
}

func TestParseFlags_NonPointer(t *testing.T) {
	cmd := &cobra.Command{}
	var opts invalidateOptions
	err := ParseFlags(cmd, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pointer to struct")
}

func TestParseFlags_NonStruct(t *testing.T) {
	cmd := &cobra.Command{}
	var s string
	assert.Error(t, ParseFlags(cmd, &s))
	assert.Error(t, BindFlags(cmd, &s))
}

func TestParseFlags_UndefinedFlag(t *testing.T) {
	type opts struct {
		Tenant string `flag:"tenant"`
	}
	cmd := &cobra.Command{}

	var o opts
	err := ParseFlags(cmd, &o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tenant")
}

func TestParseFlags_UintAndFloat(t *testing.T) {
	type opts struct {
		Limit uint    `flag:"limit"`
		Ratio float64 `flag:"ratio"`
	}
	cmd := &cobra.Command{}
	cmd.Flags().Uint("limit", 0, "")
	cmd.Flags().Float64("ratio", 0, "")
	require.NoError(t, cmd.Flags().Set("limit", "100"))
	require.NoError(t, cmd.Flags().Set("ratio", "0.5"))

	var o opts
	require.NoError(t, ParseFlags(cmd, &o))
	assert.Equal(t, uint(100), o.Limit)
	assert.InDelta(t, 0.5, o.Ratio, 1e-9)
}

func TestParseFlags_IntSlice(t *testing.T) {
	type opts struct {
		Status []int `flag:"status"`
	}
	cmd := &cobra.Command{}
	var o opts
	require.NoError(t, BindFlags(cmd, &o))
	require.NoError(t, cmd.Flags().Set("status", "429,503"))

	require.NoError(t, ParseFlags(cmd, &o))
	assert.Equal(t, []int{429, 503}, o.Status)
}

func TestBindFlags_UnsupportedTypes(t *testing.T) {
	type mapOpts struct {
		Labels map[string]string `flag:"labels"`
	}
	type sliceOpts struct {
		Ratios []float64 `flag:"ratios"`
	}

	assert.Error(t, BindFlags(&cobra.Command{}, &mapOpts{}))
	assert.Error(t, BindFlags(&cobra.Command{}, &sliceOpts{}))
}

func TestBindFlags_BadDefault(t *testing.T) {
	type opts struct {
		Workers int `flag:"workers" default:"many"`
	}
	err := BindFlags(&cobra.Command{}, &opts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Workers")
}
