// Package cli implements the fulcio-verify command line interface.
package cli

import (
	"code.cloudfoundry.org/clock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootOptions carries state shared by all subcommands.
type rootOptions struct {
	debug bool
	clock clock.Clock
}

// New returns the root command, reading the real clock.
func New() *cobra.Command {
	return NewWithClock(clock.NewClock())
}

// NewWithClock returns the root command with an explicit clock source. The
// conformance harness uses this to dispatch commands under a fixed clock;
// nothing in the verification core consults the clock itself.
func NewWithClock(clk clock.Clock) *cobra.Command {
	ro := &rootOptions{clock: clk}

	cmd := &cobra.Command{
		Use:           "fulcio-verify",
		Short:         "Verify Fulcio signing certificates and produce ECDSA signatures",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if ro.debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&ro.debug, "debug", false, "enable debug output")

	cmd.AddCommand(
		verifyCertificateCommand(ro),
		signBlobCommand(ro),
		trimChainCommand(ro),
		conformanceCommand(),
	)
	return cmd
}
