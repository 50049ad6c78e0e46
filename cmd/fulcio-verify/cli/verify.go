package cli

import (
	"fmt"
	"os"

	"github.com/containers/fulcio-verify/certpath"
	"github.com/containers/fulcio-verify/trustroot"
	"github.com/containers/fulcio-verify/verify"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func verifyCertificateCommand(ro *rootOptions) *cobra.Command {
	var (
		certificatePath string
		trustRootPath   string
		sctQuorum       int
		oidcIssuer      string
		email           string
	)
	cmd := &cobra.Command{
		Use:   "verify-certificate",
		Short: "Verify a Fulcio signing certificate against a trust root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := loadCertPath(certificatePath)
			if err != nil {
				return err
			}
			verifier, err := newVerifier(trustRootPath, sctQuorum, oidcIssuer, email)
			if err != nil {
				return err
			}
			logrus.Debugf("Verifying certificate at %s", ro.clock.Now().UTC())
			if err := verifier.VerifySigningCertificate(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Verified OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&certificatePath, "certificate", "", "path to the PEM certificate chain, leaf first")
	cmd.Flags().StringVar(&trustRootPath, "trust-root", "", "path to the YAML trust root")
	cmd.Flags().IntVar(&sctQuorum, "sct-quorum", 1, "how many valid SCTs are required")
	cmd.Flags().StringVar(&oidcIssuer, "certificate-oidc-issuer", "", "require this Fulcio OIDC issuer")
	cmd.Flags().StringVar(&email, "certificate-email", "", "require this subject email")
	_ = cmd.MarkFlagRequired("certificate")
	_ = cmd.MarkFlagRequired("trust-root")
	return cmd
}

func trimChainCommand(ro *rootOptions) *cobra.Command {
	var (
		certificatePath string
		trustRootPath   string
	)
	cmd := &cobra.Command{
		Use:   "trim-chain",
		Short: "Remove the trusted CA suffix from a certificate chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := loadCertPath(certificatePath)
			if err != nil {
				return err
			}
			verifier, err := newVerifier(trustRootPath, 1, "", "")
			if err != nil {
				return err
			}
			trimmed, err := verifier.TrimTrustedParent(path)
			if err != nil {
				return err
			}
			pemBytes, err := cryptoutils.MarshalCertificatesToPEM(trimmed)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(pemBytes)
			return err
		},
	}
	cmd.Flags().StringVar(&certificatePath, "certificate", "", "path to the PEM certificate chain, leaf first")
	cmd.Flags().StringVar(&trustRootPath, "trust-root", "", "path to the YAML trust root")
	_ = cmd.MarkFlagRequired("certificate")
	_ = cmd.MarkFlagRequired("trust-root")
	return cmd
}

func loadCertPath(path string) (certpath.CertPath, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	certs, err := cryptoutils.UnmarshalCertificatesFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return certpath.CertPath(certs), nil
}

func newVerifier(trustRootPath string, sctQuorum int, oidcIssuer, email string) (*verify.FulcioVerifier, error) {
	tr, err := trustroot.NewTrustRootFromFile(trustRootPath)
	if err != nil {
		return nil, err
	}
	opts := []verify.Option{verify.WithSCTQuorum(sctQuorum)}
	if oidcIssuer != "" || email != "" {
		opts = append(opts, verify.WithIdentityPolicy(oidcIssuer, email))
	}
	return verify.NewFulcioVerifier(tr, opts...)
}
