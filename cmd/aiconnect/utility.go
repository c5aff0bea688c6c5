package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var utilityFlags struct {
	clientConfig
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt [data]",
	Short: "Seal a credential bundle with the gateway key",
	Long: `Seal a credential bundle with the gateway key. The data is read from the
argument or, when absent or "-", from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncrypt,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway version",
	RunE:  runVersion,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the gateway is up",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(encryptCmd, versionCmd, healthCmd)
	for _, c := range []*cobra.Command{encryptCmd, versionCmd, healthCmd} {
		addClientFlags(c, &utilityFlags.clientConfig)
	}
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	data := ""
	if len(args) == 1 && args[0] != "-" {
		data = args[0]
	} else {
		b, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		data = strings.TrimSpace(string(b))
	}
	if data == "" {
		return fmt.Errorf("nothing to encrypt")
	}

	c, err := utilityFlags.newClient()
	if err != nil {
		return err
	}
	sealed, err := c.Encrypt(cmd.Context(), data)
	if err != nil {
		return err
	}
	fmt.Println(sealed)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	c, err := utilityFlags.newClient()
	if err != nil {
		return err
	}
	v, err := c.Version(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Name:     %s\n", v.Name)
	fmt.Printf("Release:  %s\n", v.ReleaseVersion)
	fmt.Printf("Date:     %s\n", v.ReleaseDate)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	c, err := utilityFlags.newClient()
	if err != nil {
		return err
	}
	h, err := c.Health(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d)\n", h.Text, h.Status)
	return nil
}
