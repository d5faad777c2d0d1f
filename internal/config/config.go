// Package config handles configuration loading from files, environment variables, and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/spf13/viper"
)

const (
	defaultThreads       = 5
	defaultSSHPort       = 22
	defaultSSHUser       = "root"
	defaultSSHTimeout    = 30 * time.Second
	defaultMountPattern  = "storage"
	defaultMySQLPort     = 3306
	defaultMySQLUser     = "cloud"
	defaultMySQLDatabase = "cloud"
	defaultProfile       = "local"
)

// Config holds all configuration for the hvshift CLI.
type Config struct {
	InstanceName    string
	ToCluster       string
	NewBaseTemplate string
	StoragePool     string
	IsProjectVM     bool

	ConfigProfile       string
	ProfileFile         string
	CloudStackURL       string
	CloudStackAPIKey    string
	CloudStackSecretKey string
	CloudStackVerifySSL bool

	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	SourcePlatform      string
	TargetPlatform      string
	DryRun              bool
	Force               bool
	SkipDriverInjection bool
	HelperScripts       string
	MountPattern        string
	Threads             int

	SSHUser       string
	SSHKeyFile    string
	SSHPassword   string
	SSHKnownHosts string
	SSHPort       int
	SSHTimeout    time.Duration

	SlackWebhookURL string

	AzureSubscriptionID string
	AzureResourceGroup  string

	OCIRegion        string
	OCINamespace     string
	OCIBucketName    string
	OCICompartmentID string

	Debug bool
}

// ConnectionConfig is the SSH connection setting shared by every remote host of a job.
// It is passed by value and never mutated after Load.
type ConnectionConfig struct {
	User           string
	Port           int
	KeyFile        string
	Password       string
	KnownHostsFile string
	Timeout        time.Duration
}

// Load initializes configuration from file, environment variables, and flags.
func Load(configFile string) (*Config, error) {
	viper.SetDefault("source_platform", model.PlatformXenServer)
	viper.SetDefault("target_platform", model.PlatformKVM)
	viper.SetDefault("threads", defaultThreads)
	viper.SetDefault("ssh_user", defaultSSHUser)
	viper.SetDefault("ssh_port", defaultSSHPort)
	viper.SetDefault("ssh_timeout", defaultSSHTimeout)
	viper.SetDefault("mount_pattern", defaultMountPattern)
	viper.SetDefault("mysql_port", defaultMySQLPort)
	viper.SetDefault("mysql_user", defaultMySQLUser)
	viper.SetDefault("mysql_database", defaultMySQLDatabase)
	viper.SetDefault("config_profile", defaultProfile)
	viper.SetDefault("cloudstack_verify_ssl", true)

	viper.AutomaticEnv()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		InstanceName:        viper.GetString("instance_name"),
		ToCluster:           viper.GetString("to_cluster"),
		NewBaseTemplate:     viper.GetString("new_base_template"),
		StoragePool:         viper.GetString("storage_pool"),
		IsProjectVM:         viper.GetBool("is_projectvm"),
		ConfigProfile:       viper.GetString("config_profile"),
		ProfileFile:         viper.GetString("profile_file"),
		CloudStackURL:       viper.GetString("cloudstack_url"),
		CloudStackAPIKey:    viper.GetString("cloudstack_api_key"),
		CloudStackSecretKey: viper.GetString("cloudstack_secret_key"),
		CloudStackVerifySSL: viper.GetBool("cloudstack_verify_ssl"),
		MySQLHost:           viper.GetString("mysql_host"),
		MySQLPort:           viper.GetInt("mysql_port"),
		MySQLUser:           viper.GetString("mysql_user"),
		MySQLPassword:       viper.GetString("mysql_password"),
		MySQLDatabase:       viper.GetString("mysql_database"),
		SourcePlatform:      strings.ToLower(viper.GetString("source_platform")),
		TargetPlatform:      strings.ToLower(viper.GetString("target_platform")),
		DryRun:              !viper.GetBool("exec"),
		Force:               viper.GetBool("force"),
		SkipDriverInjection: viper.GetBool("skip_driver_injection"),
		HelperScripts:       viper.GetString("helper_scripts"),
		MountPattern:        viper.GetString("mount_pattern"),
		Threads:             viper.GetInt("threads"),
		SSHUser:             viper.GetString("ssh_user"),
		SSHKeyFile:          viper.GetString("ssh_key_file"),
		SSHPassword:         viper.GetString("ssh_password"),
		SSHKnownHosts:       viper.GetString("ssh_known_hosts"),
		SSHPort:             viper.GetInt("ssh_port"),
		SSHTimeout:          viper.GetDuration("ssh_timeout"),
		SlackWebhookURL:     viper.GetString("slack_webhook_url"),
		AzureSubscriptionID: viper.GetString("azure_subscription_id"),
		AzureResourceGroup:  viper.GetString("azure_resource_group"),
		OCIRegion:           viper.GetString("oci_region"),
		OCINamespace:        viper.GetString("oci_namespace"),
		OCIBucketName:       viper.GetString("oci_bucket_name"),
		OCICompartmentID:    viper.GetString("oci_compartment_id"),
		Debug:               viper.GetBool("debug"),
	}

	if cfg.ProfileFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.ProfileFile = filepath.Join(home, ".hvshift", "profiles.yaml")
		}
	}
	if err := cfg.applyProfile(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyProfile fills missing CloudStack credentials from the named profile.
// A missing profile file is not an error; explicit flags and env always win.
func (c *Config) applyProfile() error {
	if c.ProfileFile == "" {
		return nil
	}
	if _, err := os.Stat(c.ProfileFile); err != nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(c.ProfileFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read profile file %s: %w", c.ProfileFile, err)
	}
	if !v.IsSet(c.ConfigProfile) {
		return fmt.Errorf("profile %q not found in %s", c.ConfigProfile, c.ProfileFile)
	}
	if c.CloudStackURL == "" {
		c.CloudStackURL = v.GetString(c.ConfigProfile + ".url")
	}
	if c.CloudStackAPIKey == "" {
		c.CloudStackAPIKey = v.GetString(c.ConfigProfile + ".apikey")
	}
	if c.CloudStackSecretKey == "" {
		c.CloudStackSecretKey = v.GetString(c.ConfigProfile + ".secretkey")
	}
	return nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	required := []struct {
		value, name string
	}{
		{c.InstanceName, "instance_name"},
		{c.ToCluster, "to_cluster"},
		{c.NewBaseTemplate, "new_base_template"},
		{c.CloudStackURL, "cloudstack_url"},
		{c.CloudStackAPIKey, "cloudstack_api_key"},
		{c.CloudStackSecretKey, "cloudstack_secret_key"},
		{c.MySQLHost, "mysql_host"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.SSHPort < 1 || c.SSHPort > 65535 {
		return fmt.Errorf("ssh_port must be between 1 and 65535, got %d", c.SSHPort)
	}
	if c.SSHTimeout <= 0 {
		return fmt.Errorf("ssh_timeout must be positive")
	}
	if c.TargetPlatform != model.PlatformKVM {
		return fmt.Errorf("unsupported target platform %q", c.TargetPlatform)
	}
	switch c.SourcePlatform {
	case model.PlatformXenServer:
	case model.PlatformAzure:
		if c.AzureSubscriptionID == "" {
			return fmt.Errorf("azure_subscription_id is required for Azure source platform")
		}
		if c.AzureResourceGroup == "" {
			return fmt.Errorf("azure_resource_group is required for Azure source platform")
		}
	case model.PlatformOCI:
		if c.OCIRegion == "" {
			return fmt.Errorf("oci_region is required for OCI source platform")
		}
		if c.OCIBucketName == "" {
			return fmt.Errorf("oci_bucket_name is required for OCI source platform")
		}
	default:
		return fmt.Errorf("unsupported source platform %q", c.SourcePlatform)
	}
	return nil
}

// Connection returns the SSH settings used for every remote host.
func (c *Config) Connection() ConnectionConfig {
	return ConnectionConfig{
		User:           c.SSHUser,
		Port:           c.SSHPort,
		KeyFile:        c.SSHKeyFile,
		Password:       c.SSHPassword,
		KnownHostsFile: c.SSHKnownHosts,
		Timeout:        c.SSHTimeout,
	}
}

// MySQLDSN returns the DSN of the CloudStack database.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.MySQLUser, c.MySQLPassword, c.MySQLHost, c.MySQLPort, c.MySQLDatabase)
}

// LoadConfig loads configuration using the global Viper instance.
func LoadConfig() (*Config, error) {
	return Load("")
}
