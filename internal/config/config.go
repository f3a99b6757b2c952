// =============================
// Pipeline Configuration
// =============================

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/flightfare/flightprice/internal/training"
)

// Config is the full pipeline configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	Data     DataConfig              `mapstructure:"data"`
	Artifact ArtifactConfig          `mapstructure:"artifact"`
	Training *training.TrainerConfig `mapstructure:"training"`
}

// DataConfig locates the scraped listing table.
type DataConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

// ArtifactConfig locates the persisted model bundle.
type ArtifactConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration from the given YAML file (or the default search
// paths when path is empty), with FLIGHTPRICE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := training.DefaultTrainerConfig()
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("data.csv_path", "result/flight_price_history.csv")
	v.SetDefault("artifact.path", "result/flight_price_model.json")
	v.SetDefault("training.test_split", defaults.TestSplit)
	v.SetDefault("training.cv_folds", defaults.CVFolds)
	v.SetDefault("training.seed", defaults.Seed)
	v.SetDefault("training.tree_max_depth", defaults.TreeMaxDepth)
	v.SetDefault("training.tree_min_samples_split", defaults.TreeMinSamplesSplit)
	v.SetDefault("training.tree_min_samples_leaf", defaults.TreeMinSamplesLeaf)
	v.SetDefault("training.forest_trees", defaults.ForestTrees)
	v.SetDefault("training.boosting_rounds", defaults.BoostingRounds)

	v.SetEnvPrefix("FLIGHTPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flightprice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// no config file on the search path: defaults plus env are enough
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Training.TestSplit <= 0 || c.Training.TestSplit >= 1 {
		return fmt.Errorf("training.test_split %.2f outside (0,1)", c.Training.TestSplit)
	}
	if c.Training.CVFolds < 2 {
		return fmt.Errorf("training.cv_folds %d must be at least 2", c.Training.CVFolds)
	}
	if c.Data.CSVPath == "" {
		return fmt.Errorf("data.csv_path is required")
	}
	if c.Artifact.Path == "" {
		return fmt.Errorf("artifact.path is required")
	}
	return nil
}
