package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	Algorithm         string   `mapstructure:"algorithm" yaml:"algorithm"`
	LossFunction      string   `mapstructure:"loss_function" yaml:"loss_function"`
	XCol              string   `mapstructure:"x_col" yaml:"x_col"`
	YCol              string   `mapstructure:"y_col" yaml:"y_col"`
	MinRectMonthWidth int      `mapstructure:"min_rect_month_width" yaml:"min_rect_month_width"`
	Quantile          float64  `mapstructure:"quantile" yaml:"quantile"`
	NJobs             int      `mapstructure:"n_jobs" yaml:"n_jobs"`
	Index             []string `mapstructure:"index" yaml:"index"`
	CacheDir          string   `mapstructure:"cache_dir" yaml:"cache_dir"`

	// Study window, YYYY-MM or YYYY-MM-DD; empty means unbounded.
	StartDate string `mapstructure:"start_date" yaml:"start_date"`
	EndDate   string `mapstructure:"end_date" yaml:"end_date"`
}

// Keys lists the settable keys in display order.
var Keys = []string{
	"algorithm", "loss_function", "x_col", "y_col", "min_rect_month_width",
	"quantile", "n_jobs", "index", "cache_dir", "start_date", "end_date",
}

// DefaultIndex is the partition index used when none is configured.
var DefaultIndex = []string{"care_site_level", "stay_type", "care_site_id"}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".edsteva"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.edsteva/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("EDSTEVA")
	v.AutomaticEnv()

	v.SetDefault("algorithm", "loss_minimization")
	v.SetDefault("loss_function", "l2")
	v.SetDefault("x_col", "date")
	v.SetDefault("y_col", "c")
	v.SetDefault("min_rect_month_width", 3)
	v.SetDefault("quantile", 0.8)
	v.SetDefault("n_jobs", 0)
	v.SetDefault("index", DefaultIndex)
	v.SetDefault("cache_dir", "")
	v.SetDefault("start_date", "")
	v.SetDefault("end_date", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// EDSTEVA_INDEX arrives as one comma separated string
	c.Index = SplitList(c.Index)
	if c.CacheDir == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		c.CacheDir = filepath.Join(dir, "models")
	}
	return &c, nil
}

// Validate checks value ranges and names.
func (c *Global) Validate() error {
	switch strings.ToLower(c.Algorithm) {
	case "loss_minimization", "quantile":
	default:
		return fmt.Errorf("algorithm must be loss_minimization or quantile, got %q", c.Algorithm)
	}
	switch strings.ToLower(c.LossFunction) {
	case "l1", "l2":
	default:
		return fmt.Errorf("loss_function must be l1 or l2, got %q", c.LossFunction)
	}
	if c.MinRectMonthWidth < 1 {
		return fmt.Errorf("min_rect_month_width must be >= 1, got %d", c.MinRectMonthWidth)
	}
	if c.Quantile <= 0 || c.Quantile > 1 {
		return fmt.Errorf("quantile must be in (0, 1], got %g", c.Quantile)
	}
	if c.NJobs < 0 {
		return fmt.Errorf("n_jobs must be >= 0, got %d", c.NJobs)
	}
	if len(c.Index) == 0 {
		return fmt.Errorf("index must name at least one column")
	}
	if strings.TrimSpace(c.XCol) == "" || strings.TrimSpace(c.YCol) == "" {
		return fmt.Errorf("x_col and y_col must not be empty")
	}
	start, end, err := c.Window()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("end_date %s is before start_date %s", c.EndDate, c.StartDate)
	}
	return nil
}

// Window parses the study window. Zero times mean unbounded.
func (c *Global) Window() (start, end time.Time, err error) {
	if start, err = ParseMonth(c.StartDate); err != nil {
		return start, end, fmt.Errorf("start_date: %w", err)
	}
	if end, err = ParseMonth(c.EndDate); err != nil {
		return start, end, fmt.Errorf("end_date: %w", err)
	}
	return start, end, nil
}

// ParseMonth parses YYYY-MM or YYYY-MM-DD and truncates to the month start.
// An empty string is the zero time.
func ParseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid month %q (use YYYY-MM or YYYY-MM-DD)", s)
}

// Set assigns a key from its string form and validates the result.
func (c *Global) Set(key, value string) error {
	next := *c
	switch strings.ToLower(key) {
	case "algorithm":
		next.Algorithm = strings.ToLower(value)
	case "loss_function":
		next.LossFunction = strings.ToLower(value)
	case "x_col":
		next.XCol = value
	case "y_col":
		next.YCol = value
	case "min_rect_month_width":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("min_rect_month_width: %w", err)
		}
		next.MinRectMonthWidth = n
	case "quantile":
		q, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("quantile: %w", err)
		}
		next.Quantile = q
	case "n_jobs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("n_jobs: %w", err)
		}
		next.NJobs = n
	case "index":
		next.Index = SplitList([]string{value})
	case "cache_dir":
		next.CacheDir = value
	case "start_date":
		next.StartDate = value
	case "end_date":
		next.EndDate = value
	default:
		return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Get returns the string form of a key.
func (c *Global) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "algorithm":
		return c.Algorithm, nil
	case "loss_function":
		return c.LossFunction, nil
	case "x_col":
		return c.XCol, nil
	case "y_col":
		return c.YCol, nil
	case "min_rect_month_width":
		return strconv.Itoa(c.MinRectMonthWidth), nil
	case "quantile":
		return strconv.FormatFloat(c.Quantile, 'g', -1, 64), nil
	case "n_jobs":
		return strconv.Itoa(c.NJobs), nil
	case "index":
		return strings.Join(c.Index, ","), nil
	case "cache_dir":
		return c.CacheDir, nil
	case "start_date":
		return c.StartDate, nil
	case "end_date":
		return c.EndDate, nil
	}
	return "", fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
}

// SplitList flattens comma separated entries and drops blanks.
func SplitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
