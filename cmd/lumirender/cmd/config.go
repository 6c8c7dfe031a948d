package cmd

import (
	"fmt"

	"github.com/psantana5/lumirender/pkg/auth"
	"github.com/psantana5/lumirender/pkg/config"
	tlsutil "github.com/psantana5/lumirender/pkg/tls"
	"github.com/spf13/cobra"
)

var (
	configDefaults bool
	certFile       string
	keyFile        string
	certHosts      []string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Commands for inspecting the effective lumirender configuration.`,
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration as YAML",
	Long: `Prints the configuration after applying the config file and LUMIRENDER_*
environment overrides. The output is a valid config file.`,
	RunE: runConfigPrint,
}

var configAPIKeyCmd = &cobra.Command{
	Use:   "api-key",
	Short: "Generate an API key and its bcrypt hash",
	Long: `Generates a random API key. Give the key to API clients and put the hash
in http.api_key_hash.`,
	RunE: runConfigAPIKey,
}

var configCertCmd = &cobra.Command{
	Use:   "cert",
	Short: "Generate a self-signed certificate for the API",
	RunE:  runConfigCert,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPrintCmd)
	configCmd.AddCommand(configAPIKeyCmd)
	configCmd.AddCommand(configCertCmd)
	configPrintCmd.Flags().BoolVar(&configDefaults, "defaults", false, "print built-in defaults, ignoring file and environment")

	configCertCmd.Flags().StringVar(&certFile, "cert", "lumirender.crt", "certificate output path")
	configCertCmd.Flags().StringVar(&keyFile, "key", "lumirender.key", "private key output path")
	configCertCmd.Flags().StringSliceVar(&certHosts, "host", nil, "additional hostnames or IPs")
}

func runConfigPrint(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if !configDefaults {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
	}

	out, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigAPIKey(cmd *cobra.Command, args []string) error {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}
	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}
	fmt.Printf("API key:      %s\n", key)
	fmt.Printf("api_key_hash: %s\n", hash)
	return nil
}

func runConfigCert(cmd *cobra.Command, args []string) error {
	if err := tlsutil.GenerateSelfSignedCert(certFile, keyFile, "lumirender", certHosts...); err != nil {
		return err
	}
	fmt.Printf("Wrote %s and %s\n", certFile, keyFile)
	fmt.Println("Set http.tls_cert and http.tls_key to serve HTTPS")
	return nil
}
