package main

import (
	"fmt"
	"os"

	"github.com/MikeDev101/roomlink/pkg/constants"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roomlink",
	Short: "Join a roomlink room and connect to its members peer to peer",
	Long: `roomlink joins a room on a signaling relay, announces a display name and
opens a WebRTC connection to every other member. Lines typed on stdin are sent
as room chat.`,
	Version: constants.Version,
}

// Execute runs the root command.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
