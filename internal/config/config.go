package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	BackendSQL      = "sql"
	BackendDynamoDB = "dynamodb"
)

// ProviderConfig describes how to reach the video provider
type ProviderConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	APIKeyParameter string        `yaml:"api_key_ssm_parameter"`
	Timeout         time.Duration `yaml:"timeout"`
	Retries         int           `yaml:"retries"`
}

// ProvisionerConfig replaces the plan-derived defaults that used to be hard-coded.
type ProvisionerConfig struct {
	AutoCreateRoot    bool          `yaml:"auto_create_root"`
	DefaultSubfolders []string      `yaml:"default_subfolders"`
	RootNamePrefix    string        `yaml:"root_name_prefix"`
	RootLease         time.Duration `yaml:"root_lease"`
	ProbeCandidates   bool          `yaml:"probe_candidates"`
}

// Config holds the application configuration
type Config struct {
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
	DatabaseURL       string `yaml:"database_url"`
	AssignmentBackend string `yaml:"assignment_backend"`
	DynamoDBTable     string `yaml:"dynamodb_table"`
	// AwsConfig is only populated when DynamoDB or SSM is in use; see LoadAWSConfig.
	AwsConfig   aws.Config
	Provider    ProviderConfig    `yaml:"provider"`
	RegistryTTL time.Duration     `yaml:"registry_ttl"`
	Provisioner ProvisionerConfig `yaml:"provisioner"`
	HTTPListen  string            `yaml:"http_listen"`
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.AssignmentBackend == BackendDynamoDB || c.Provider.APIKeyParameter != ""
}

// LoadConfig loads configuration from config.yaml, environment variables, or CLI flags
// Priority: CLI flags > Environment variables > config.yaml > defaults
func LoadConfig(configPath string, rootCmd *cobra.Command) (*Config, error) {
	if err := setupViper(configPath, rootCmd); err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:          viper.GetString("log_level"),
		LogFormat:         viper.GetString("log_format"),
		DatabaseURL:       viper.GetString("database_url"),
		AssignmentBackend: strings.ToLower(viper.GetString("assignment_backend")),
		DynamoDBTable:     viper.GetString("dynamodb_table"),
		Provider: ProviderConfig{
			BaseURL:         strings.TrimRight(viper.GetString("provider.base_url"), "/"),
			APIKey:          viper.GetString("provider.api_key"),
			APIKeyParameter: viper.GetString("provider.api_key_ssm_parameter"),
			Timeout:         viper.GetDuration("provider.timeout"),
			Retries:         viper.GetInt("provider.retries"),
		},
		RegistryTTL: viper.GetDuration("registry.ttl"),
		Provisioner: ProvisionerConfig{
			AutoCreateRoot:    viper.GetBool("provisioner.auto_create_root"),
			DefaultSubfolders: viper.GetStringSlice("provisioner.default_subfolders"),
			RootNamePrefix:    viper.GetString("provisioner.root_name_prefix"),
			RootLease:         viper.GetDuration("provisioner.root_lease"),
			ProbeCandidates:   viper.GetBool("provisioner.probe_candidates"),
		},
		HTTPListen: viper.GetString("http.listen"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AssignmentBackend {
	case BackendSQL, BackendDynamoDB:
	default:
		return fmt.Errorf("unsupported assignment_backend: %s", c.AssignmentBackend)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if c.Provider.Retries < 0 {
		return fmt.Errorf("provider.retries cannot be negative")
	}
	if c.RegistryTTL <= 0 {
		return fmt.Errorf("registry.ttl must be positive")
	}
	return nil
}

// setupViper configures Viper with defaults, paths, and bindings
func setupViper(configPath string, rootCmd *cobra.Command) error {
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	setDefaults()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if rootCmd != nil {
		if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("database_url", "vidshard.db")
	viper.SetDefault("assignment_backend", BackendSQL)
	viper.SetDefault("dynamodb_table", "tenant_assignments")
	viper.SetDefault("provider.base_url", "http://localhost:9090")
	viper.SetDefault("provider.timeout", 10*time.Second)
	viper.SetDefault("provider.retries", 2)
	viper.SetDefault("registry.ttl", 2*time.Minute)
	viper.SetDefault("provisioner.auto_create_root", true)
	viper.SetDefault("provisioner.default_subfolders", []string{"Videos", "Livestreams", "Thumbnails", "Archive"})
	viper.SetDefault("provisioner.root_name_prefix", "tenant-")
	viper.SetDefault("provisioner.root_lease", 2*time.Minute)
	viper.SetDefault("provisioner.probe_candidates", true)
	viper.SetDefault("http.listen", ":8080")
}

// LoadAWSConfig loads AWS SDK configuration into cfg.AwsConfig
func LoadAWSConfig(ctx context.Context, cfg *Config) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("unable to load AWS SDK config: %v", err)
	}
	cfg.AwsConfig = awsCfg
	return nil
}

// ResolveProviderAPIKey returns the provider key, reading it from SSM Parameter Store
// when provider.api_key_ssm_parameter is set.
func ResolveProviderAPIKey(ctx context.Context, cfg *Config) (string, error) {
	if cfg.Provider.APIKeyParameter == "" {
		return cfg.Provider.APIKey, nil
	}

	client := ssm.NewFromConfig(cfg.AwsConfig)
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.Provider.APIKeyParameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read %s from SSM: %w", cfg.Provider.APIKeyParameter, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %s has no value", cfg.Provider.APIKeyParameter)
	}

	return *out.Parameter.Value, nil
}

// NewGCSClient creates a Google Cloud Storage client
func NewGCSClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create GCS client: %v", err)
	}
	return client, nil
}

// SetConfigValue sets a configuration value (used for CLI flags)
func SetConfigValue(key string, value interface{}) {
	viper.Set(key, value)
}
