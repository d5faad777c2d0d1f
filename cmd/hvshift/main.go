// Package main provides the entry point for the hvshift CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/codebypatrickleung/hvshift/internal/common"
	"github.com/codebypatrickleung/hvshift/internal/config"
	"github.com/codebypatrickleung/hvshift/internal/errs"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "0.3.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, errs.Guidance(err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hvshift",
	Short: "hvshift - Hypervisor Migration Tool",
	Long: `hvshift moves a CloudStack VM from a XenServer cluster to a KVM cluster.
It stops the VM, converts and places every volume on the target storage pool,
records the move in the CloudStack database and starts the VM again.

Nothing is changed unless --exec is given.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./hvshift-config.env)")

	flags := []struct {
		name, shorthand, usage, defaultValue string
	}{
		{"instance-name", "i", "Instance name of the VM to migrate (i-x-y-VM)", ""},
		{"to-cluster", "c", "KVM cluster to migrate the VM to", ""},
		{"new-base-template", "t", "KVM template the VM is linked to after migration", ""},
		{"storage-pool", "", "Target storage pool name (default is the first pool of the cluster)", ""},
		{"config-profile", "p", "CloudStack profile from the profile file", "local"},
		{"profile-file", "", "Profile file (default is ~/.hvshift/profiles.yaml)", ""},
		{"cloudstack-url", "", "CloudStack API endpoint", ""},
		{"cloudstack-api-key", "", "CloudStack API key", ""},
		{"cloudstack-secret-key", "", "CloudStack secret key", ""},
		{"mysql-host", "", "CloudStack database host", ""},
		{"mysql-user", "", "CloudStack database user", "cloud"},
		{"mysql-password", "", "CloudStack database password", ""},
		{"mysql-database", "", "CloudStack database name", "cloud"},
		{"source-platform", "", "Source platform (xenserver, azure, oci)", "xenserver"},
		{"target-platform", "", "Target platform (kvm)", "kvm"},
		{"helper-scripts", "", "Directory with helper scripts to push to the target host", ""},
		{"mount-pattern", "", "Pattern that selects the storage mount on KVM hosts", "storage"},
		{"ssh-user", "", "SSH user for hypervisor hosts", "root"},
		{"ssh-key-file", "", "SSH private key (default is the SSH agent)", ""},
		{"ssh-password", "", "SSH password", ""},
		{"ssh-known-hosts", "", "known_hosts file used to verify host keys", ""},
		{"slack-webhook-url", "", "Slack incoming webhook for notifications", ""},
		{"azure-subscription-id", "", "Azure subscription ID", ""},
		{"azure-resource-group", "", "Azure resource group name", ""},
		{"oci-region", "", "OCI region", ""},
		{"oci-namespace", "", "OCI Object Storage namespace", ""},
		{"oci-bucket-name", "", "OCI Object Storage bucket name", ""},
		{"oci-compartment-id", "", "OCI compartment OCID", ""},
	}
	for _, f := range flags {
		rootCmd.Flags().StringP(f.name, f.shorthand, f.defaultValue, f.usage)
	}

	rootCmd.Flags().Int("threads", 5, "Number of threads (volumes are transferred one at a time)")
	rootCmd.Flags().Int("mysql-port", 3306, "CloudStack database port")
	rootCmd.Flags().Int("ssh-port", 22, "SSH port of hypervisor hosts")
	rootCmd.Flags().Duration("ssh-timeout", 30*time.Second, "SSH connection timeout")
	rootCmd.Flags().Bool("cloudstack-verify-ssl", true, "Verify the CloudStack API certificate")

	boolFlags := []struct {
		name, shorthand, usage string
	}{
		{"exec", "", "Execute the migration (default is a dry-run)"},
		{"force", "f", "Continue when storage tags do not match"},
		{"is-projectvm", "", "The VM belongs to a project"},
		{"skip-driver-injection", "", "Do not inject virtio drivers into root volumes"},
		{"debug", "", "Enable debug logging"},
	}
	for _, f := range boolFlags {
		rootCmd.Flags().BoolP(f.name, f.shorthand, false, f.usage)
	}

	bindings := map[string]string{
		"INSTANCE_NAME":         "instance-name",
		"TO_CLUSTER":            "to-cluster",
		"NEW_BASE_TEMPLATE":     "new-base-template",
		"STORAGE_POOL":          "storage-pool",
		"IS_PROJECTVM":          "is-projectvm",
		"CONFIG_PROFILE":        "config-profile",
		"PROFILE_FILE":          "profile-file",
		"CLOUDSTACK_URL":        "cloudstack-url",
		"CLOUDSTACK_API_KEY":    "cloudstack-api-key",
		"CLOUDSTACK_SECRET_KEY": "cloudstack-secret-key",
		"CLOUDSTACK_VERIFY_SSL": "cloudstack-verify-ssl",
		"MYSQL_HOST":            "mysql-host",
		"MYSQL_PORT":            "mysql-port",
		"MYSQL_USER":            "mysql-user",
		"MYSQL_PASSWORD":        "mysql-password",
		"MYSQL_DATABASE":        "mysql-database",
		"SOURCE_PLATFORM":       "source-platform",
		"TARGET_PLATFORM":       "target-platform",
		"EXEC":                  "exec",
		"FORCE":                 "force",
		"SKIP_DRIVER_INJECTION": "skip-driver-injection",
		"HELPER_SCRIPTS":        "helper-scripts",
		"MOUNT_PATTERN":         "mount-pattern",
		"THREADS":               "threads",
		"SSH_USER":              "ssh-user",
		"SSH_KEY_FILE":          "ssh-key-file",
		"SSH_PASSWORD":          "ssh-password",
		"SSH_KNOWN_HOSTS":       "ssh-known-hosts",
		"SSH_PORT":              "ssh-port",
		"SSH_TIMEOUT":           "ssh-timeout",
		"SLACK_WEBHOOK_URL":     "slack-webhook-url",
		"AZURE_SUBSCRIPTION_ID": "azure-subscription-id",
		"AZURE_RESOURCE_GROUP":  "azure-resource-group",
		"OCI_REGION":            "oci-region",
		"OCI_NAMESPACE":         "oci-namespace",
		"OCI_BUCKET_NAME":       "oci-bucket-name",
		"OCI_COMPARTMENT_ID":    "oci-compartment-id",
		"DEBUG":                 "debug",
	}
	for env, flag := range bindings {
		if err := viper.BindPFlag(env, rootCmd.Flags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bind flag %s to env %s: %v\n", flag, env, err)
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("hvshift-config")
		viper.SetConfigType("env")
	}
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logFileName := fmt.Sprintf("hvshift-%s-%s.log", common.SanitizeName(cfg.InstanceName), logger.GetTimestamp())
	log, err := logger.NewWithFile(cfg.Debug, logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	log.Infof("hvshift version %s", version)
	log.Infof("Log file: %s", logFileName)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx := context.Background()
	mgr, err := workflow.NewManager(cfg, log, version)
	if err != nil {
		return fmt.Errorf("failed to create workflow manager: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warningf("Failed to close connections: %v", err)
		}
	}()

	return mgr.Run(ctx)
}
