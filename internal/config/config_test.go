package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "loss_minimization", c.Algorithm)
	require.Equal(t, "l2", c.LossFunction)
	require.Equal(t, "date", c.XCol)
	require.Equal(t, "c", c.YCol)
	require.Equal(t, 3, c.MinRectMonthWidth)
	require.Equal(t, 0.8, c.Quantile)
	require.Equal(t, DefaultIndex, c.Index)
	require.Equal(t, filepath.Join(home, ".edsteva", "models"), c.CacheDir)
	require.NoError(t, c.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loss_function: l1\nquantile: 0.5\nindex: [care_site_id]\n"), 0o644))
	t.Setenv("EDSTEVA_QUANTILE", "0.9")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "l1", c.LossFunction)
	require.Equal(t, 0.9, c.Quantile)
	require.Equal(t, []string{"care_site_id"}, c.Index)
}

func TestSetValidates(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)

	require.NoError(t, c.Set("index", "care_site_id, stay_type"))
	require.Equal(t, []string{"care_site_id", "stay_type"}, c.Index)
	require.NoError(t, c.Set("quantile", "0.95"))

	require.Error(t, c.Set("quantile", "1.5"))
	require.Equal(t, 0.95, c.Quantile)
	require.Error(t, c.Set("loss_function", "huber"))
	require.Error(t, c.Set("min_rect_month_width", "0"))
	require.Error(t, c.Set("colour", "blue"))
	require.Error(t, c.Set("end_date", "not-a-date"))

	v, err := c.Get("index")
	require.NoError(t, err)
	require.Equal(t, "care_site_id,stay_type", v)
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Set("algorithm", "quantile"))
	require.NoError(t, Save(c, ""))

	got, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "quantile", got.Algorithm)
}

func TestWindow(t *testing.T) {
	c := &Global{StartDate: "2019-03", EndDate: "2020-06-15"}
	start, end, err := c.Window()
	require.NoError(t, err)
	require.Equal(t, time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), end)
}
