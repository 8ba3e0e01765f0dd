package cli

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/hpke"
	"github.com/divviup/divviup-console/internal/models"
	"github.com/divviup/divviup-console/internal/store"
)

func (a *app) collectorCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collector-credential",
		Aliases: []string{"collector-credentials", "credential"},
		Short:   "Manage collector credentials of the current account",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List collector credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			creds, err := c.CollectorCredentials(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(creds, func(w io.Writer) error {
				rows := make([][]string, 0, len(creds))
				for _, cred := range creds {
					rows = append(rows, []string{
						cred.ID.String(), cred.DisplayName(), fmt.Sprint(cred.HpkeConfig.ID),
						cred.HpkeConfig.KemID, formatTime(cred.CreatedAt),
					})
				}
				return table(w, []string{"ID", "NAME", "CONFIG ID", "KEM", "CREATED"}, rows)
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <credential-id>",
		Short: "Show a collector credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("collector credential", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			cred, err := c.CollectorCredential(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printCredential(*cred)
		},
	}

	var (
		file       string
		hpkeConfig string
		name       string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Upload an existing HPKE config",
		Long: `Upload an HPKE config generated elsewhere, either as a file holding
its DAP encoding (--file) or as standard base64 of that encoding
(--hpke-config). The name defaults to the file name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			newCred, err := readCredential(file, hpkeConfig, name)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			cred, err := unwrap(c.CreateCollectorCredential(cmd.Context(), id, newCred))
			if err != nil {
				return err
			}
			return a.printCredential(cred)
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "File holding the DAP encoded HPKE config")
	create.Flags().StringVar(&hpkeConfig, "hpke-config", "", "Base64 of the DAP encoded HPKE config")
	create.Flags().StringVar(&name, "name", "", "Credential name")
	create.MarkFlagsMutuallyExclusive("file", "hpke-config")
	create.MarkFlagsOneRequired("file", "hpke-config")

	rename := &cobra.Command{
		Use:   "rename <credential-id> <name>",
		Short: "Rename a collector credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("collector credential", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			cred, err := unwrap(c.UpdateCollectorCredential(cmd.Context(), id, models.UpdateCollectorCredential{Name: args[1]}))
			if err != nil {
				return err
			}
			return a.printCredential(cred)
		},
	}

	remove := &cobra.Command{
		Use:     "delete <credential-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a collector credential and its local private key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("collector credential", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteCollectorCredential(cmd.Context(), id); err != nil {
				return err
			}
			if keys, err := a.keystore(); err == nil {
				if err := keys.DeleteKey(id); err != nil && !errors.Is(err, store.ErrKeyNotFound) {
					a.logger.Warn("failed to delete local private key", "credential_id", id.String(), "error", err.Error())
				}
			}
			return a.deleted("collector credential", id.String())
		},
	}

	cmd.AddCommand(list, get, create, a.generateCredentialCmd(), a.collectorKeysCmd(), rename, remove)
	return cmd
}

// GeneratedCredential is a created credential together with the private
// key generated for it.
type GeneratedCredential struct {
	Credential models.CollectorCredential `json:"credential"`
	PrivateKey string                     `json:"private_key"`
	Stored     bool                       `json:"stored"`
}

func (a *app) generateCredentialCmd() *cobra.Command {
	var (
		name     string
		configID int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an HPKE key pair and upload its public half",
		Long: `Generate an X25519 HPKE key pair, upload the public config as a new
collector credential and keep the private key in the local key store.

The private key is printed once; collectors need it to decrypt
aggregate shares.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var id *uint8
			if cmd.Flags().Changed("config-id") {
				if configID < 0 || configID > 255 {
					return fmt.Errorf("config id must be between 0 and 255")
				}
				v := uint8(configID)
				id = &v
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			accountID, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}

			pair, err := hpke.GenerateKeyPair(id)
			if err != nil {
				return err
			}
			upload, err := pair.UploadForm()
			if err != nil {
				return err
			}
			newCred := models.NewCollectorCredential{HpkeConfig: upload}
			if name != "" {
				newCred.Name = &name
			}
			cred, err := unwrap(c.CreateCollectorCredential(cmd.Context(), accountID, newCred))
			if err != nil {
				return err
			}

			saveErr := a.saveKey(cred, pair)
			generated := GeneratedCredential{
				Credential: cred,
				PrivateKey: pair.EncodedPrivateKey(),
				Stored:     saveErr == nil,
			}
			if err := a.print(generated, func(w io.Writer) error {
				if err := fields(w,
					"ID", cred.ID.String(),
					"Name", cred.DisplayName(),
					"Config ID", fmt.Sprint(cred.HpkeConfig.ID),
					"Private key", generated.PrivateKey,
					"Collector token", orDash(cred.Token),
				); err != nil {
					return err
				}
				return done(w, "Store the private key and token now, they cannot be shown again.")
			}); err != nil {
				return err
			}
			if saveErr != nil {
				return fmt.Errorf("credential created but the private key was not stored: %w", saveErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Credential name")
	cmd.Flags().IntVar(&configID, "config-id", 0, "HPKE config id (default random)")
	return cmd
}

func (a *app) saveKey(cred models.CollectorCredential, pair *hpke.KeyPair) error {
	keys, err := a.keystore()
	if err != nil {
		return err
	}
	return keys.SaveKey(&store.CollectorKey{
		CredentialID: cred.ID,
		AccountID:    cred.AccountID,
		Name:         cred.DisplayName(),
		Config:       cred.HpkeConfig,
		PrivateKey:   pair.EncodedPrivateKey(),
		CreatedAt:    time.Now().UTC(),
	})
}

func (a *app) collectorKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List private keys kept in the local key store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			keys, err := a.keystore()
			if err != nil {
				return err
			}
			stored, err := keys.ListKeys(accountID)
			if err != nil {
				return err
			}
			return a.print(stored, func(w io.Writer) error {
				rows := make([][]string, 0, len(stored))
				for _, key := range stored {
					rows = append(rows, []string{key.CredentialID.String(), key.Name, fmt.Sprint(key.Config.ID), formatTime(key.CreatedAt)})
				}
				return table(w, []string{"CREDENTIAL", "NAME", "CONFIG ID", "CREATED"}, rows)
			})
		},
	}
}

func (a *app) printCredential(cred models.CollectorCredential) error {
	return a.print(cred, func(w io.Writer) error {
		return fields(w,
			"ID", cred.ID.String(),
			"Name", cred.DisplayName(),
			"Config ID", fmt.Sprint(cred.HpkeConfig.ID),
			"KEM", cred.HpkeConfig.KemID,
			"KDF", cred.HpkeConfig.KdfID,
			"AEAD", cred.HpkeConfig.AeadID,
			"Public key", cred.HpkeConfig.PublicKey,
			"Collector token", orDash(cred.Token),
			"Created", formatTime(cred.CreatedAt),
		)
	})
}

// readCredential builds the upload from a file holding the DAP encoding,
// or base64 of it, or from base64 given directly. The config is decoded
// locally so malformed input fails before any request.
func readCredential(file, encoded, name string) (models.NewCollectorCredential, error) {
	var cred models.NewCollectorCredential

	var raw []byte
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return cred, fmt.Errorf("failed to read hpke config: %w", err)
		}
		raw = data
		if _, err := hpke.Decode(data); err != nil {
			if decoded, b64Err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data))); b64Err == nil {
				raw = decoded
			}
		}
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
	default:
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return cred, fmt.Errorf("hpke config is not standard base64: %w", err)
		}
		raw = decoded
	}

	if _, err := hpke.Decode(raw); err != nil {
		return cred, fmt.Errorf("invalid hpke config: %w", err)
	}
	cred.HpkeConfig = base64.StdEncoding.EncodeToString(raw)
	if name != "" {
		cred.Name = &name
	}
	return cred, nil
}
