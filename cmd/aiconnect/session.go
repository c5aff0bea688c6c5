package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var sessionFlags struct {
	clientConfig
	platform string
	services string
	ua       string
	tenant   string
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Open, end or renew gateway sessions",
}

var sessionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Open a session and print its token",
	Long: `Open a session. --ua is either a sealed credential bundle (see the
encrypt command) or, for the forced platform, a tenant directory key.`,
	RunE: runSessionInit,
}

var sessionEndCmd = &cobra.Command{
	Use:   "end [session-id]",
	Short: "End a session and revoke its token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionEnd,
}

var sessionRenewCmd = &cobra.Command{
	Use:   "renew [session-id]",
	Short: "Exchange a session token for a fresh one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionRenew,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionInitCmd, sessionEndCmd, sessionRenewCmd)

	for _, c := range []*cobra.Command{sessionInitCmd, sessionEndCmd, sessionRenewCmd} {
		addClientFlags(c, &sessionFlags.clientConfig)
	}
	sessionInitCmd.Flags().StringVar(&sessionFlags.platform, "platform", getEnv("AICONNECT_PLATFORM", "openai"), "XPlatformID")
	sessionInitCmd.Flags().StringVar(&sessionFlags.services, "services", "", "comma separated service identifiers (XPlatformSID)")
	sessionInitCmd.Flags().StringVar(&sessionFlags.ua, "ua", os.Getenv("AICONNECT_UA"), "sealed credential bundle or directory key (XPlatformUA)")
	sessionInitCmd.Flags().StringVar(&sessionFlags.tenant, "tenant", os.Getenv("AICONNECT_TENANT"), "tenant code")
	_ = sessionInitCmd.MarkFlagRequired("services")
}

func sessionArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if v := os.Getenv("AICONNECT_SESSION_ID"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("session id required (argument or AICONNECT_SESSION_ID env var)")
}

func runSessionInit(cmd *cobra.Command, args []string) error {
	if sessionFlags.ua == "" {
		return fmt.Errorf("--ua required (or AICONNECT_UA env var)")
	}
	c, err := sessionFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.SessionInit(cmd.Context(), sessionFlags.platform, sessionFlags.services, sessionFlags.ua, sessionFlags.tenant)
	if err != nil {
		return err
	}
	printSession(resp.SessionID, resp.ExpiresIn)
	return nil
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	sid, err := sessionArg(args)
	if err != nil {
		return err
	}
	c, err := sessionFlags.newClient()
	if err != nil {
		return err
	}
	if err := c.SessionEnd(cmd.Context(), sid); err != nil {
		return err
	}
	fmt.Println("Session ended.")
	return nil
}

func runSessionRenew(cmd *cobra.Command, args []string) error {
	sid, err := sessionArg(args)
	if err != nil {
		return err
	}
	c, err := sessionFlags.newClient()
	if err != nil {
		return err
	}
	resp, err := c.SessionRenew(cmd.Context(), sid)
	if err != nil {
		return err
	}
	printSession(resp.SessionID, resp.ExpiresIn)
	return nil
}

func printSession(id string, expiresAt int64) {
	fmt.Printf("Session: %s\n", id)
	fmt.Printf("Expires: %s\n", time.Unix(expiresAt, 0).Format("2006-01-02 15:04:05"))
}
