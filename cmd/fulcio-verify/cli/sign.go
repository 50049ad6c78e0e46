package cli

import (
	"crypto"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/containers/fulcio-verify/signer"
	digest "github.com/opencontainers/go-digest"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/spf13/cobra"
)

var hashAlgorithms = map[string]crypto.Hash{
	"sha256": crypto.SHA256,
	"sha384": crypto.SHA384,
	"sha512": crypto.SHA512,
}

var digestAlgorithms = map[digest.Algorithm]crypto.Hash{
	digest.SHA256: crypto.SHA256,
	digest.SHA384: crypto.SHA384,
	digest.SHA512: crypto.SHA512,
}

func signBlobCommand(ro *rootOptions) *cobra.Command {
	var (
		keyPath   string
		hashName  string
		digestStr string
	)
	cmd := &cobra.Command{
		Use:   "sign-blob [ARTIFACT]",
		Short: "Produce an ECDSA signature over an artifact or a pre-computed digest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, ok := hashAlgorithms[hashName]
			if !ok {
				return fmt.Errorf("unsupported hash algorithm %q", hashName)
			}
			s, err := loadSigner(keyPath, hash)
			if err != nil {
				return err
			}

			var sig []byte
			switch {
			case digestStr != "":
				if len(args) != 0 {
					return errors.New("an artifact and --digest cannot both be specified")
				}
				dgst, err := digest.Parse(digestStr)
				if err != nil {
					return err
				}
				if digestAlgorithms[dgst.Algorithm()] != hash {
					return fmt.Errorf("digest algorithm %s does not match --hash %s", dgst.Algorithm(), hashName)
				}
				raw, err := hex.DecodeString(dgst.Encoded())
				if err != nil {
					return err
				}
				sig, err = s.SignDigest(raw)
				if err != nil {
					return err
				}
			case len(args) == 1:
				artifact, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				sig, err = s.Sign(artifact)
				if err != nil {
					return err
				}
			default:
				return errors.New("either an artifact or --digest is required")
			}

			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(sig))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "path to the PEM EC private key")
	cmd.Flags().StringVar(&hashName, "hash", "sha256", "hash algorithm: sha256, sha384 or sha512")
	cmd.Flags().StringVar(&digestStr, "digest", "", "pre-computed digest to sign, e.g. sha256:<hex>")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func loadSigner(keyPath string, hash crypto.Hash) (*signer.ECDSASigner, error) {
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	key, err := cryptoutils.UnmarshalPEMToPrivateKey(keyBytes, cryptoutils.SkipPassword)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", keyPath, err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s is not an EC private key", keyPath)
	}
	return signer.NewECDSASigner(ecKey, hash)
}
