package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goMormot "github.com/MrEthical07/goMormot"
	"github.com/MrEthical07/goMormot/digest"
	"github.com/MrEthical07/goMormot/signature"
	"github.com/spf13/cobra"
)

func newHashCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <password>",
		Short: "Print the salted password digest",
		Long: `Print SHA-256(salt + password) as lowercase hex.

The digest can be stored instead of the password and passed to
'login --hashed'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			hashFn := digest.SHA256
			if cfg.Latin1Digest {
				hashFn = digest.SHA256Latin1
			}
			sum := hashFn(cfg.Salt + args[0])
			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), map[string]string{"digest": sum})
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var (
		password string
		hashed   bool
	)
	cmd := &cobra.Command{
		Use:   "login <user>",
		Short: "Authenticate and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("MORMOT_PASSWORD")
			}
			if password == "" {
				return errors.New("password required (--password or MORMOT_PASSWORD)")
			}

			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.Login(cmd.Context(), args[0], password, hashed)
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), info)
			}
			printSession(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password, or its digest with --hashed")
	cmd.Flags().BoolVar(&hashed, "hashed", false, "Password is already SHA-256(salt + password)")
	return cmd
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.Resume(cmd.Context())
			if err != nil && !errors.Is(err, goMormot.ErrSessionNotFound) {
				return err
			}
			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), info)
			}
			printSession(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func newSignCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <url>",
		Short: "Append session_signature to a root-relative URL",
		Example: `  mormotctl sign 'root/People?select=*'
  curl "http://localhost:8888/$(mormotctl sign root/People)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resumed(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			signed := client.Sign(args[0])
			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), map[string]string{"url": signed})
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
}

func newCallCmd(opts *globalOptions) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "call <service>",
		Short: "Invoke a method-based service with the persisted session",
		Long: `Invoke a method-based service with the persisted session.

Parameters are sent as a JSON object. A value that parses as JSON is sent
as is, anything else as a string.`,
		Example: `  mormotctl call Sum -P a=1 -P b=2
  mormotctl call Greeter.Hello -P name=Ada`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			client, err := resumed(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			var in any
			if p != nil {
				in = p
			}
			result, err := client.InvokeService(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), map[string]json.RawMessage{"result": result})
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "P", nil, "Query parameter name=value, repeatable")
	return cmd
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if _, err := client.Resume(cmd.Context()); err != nil {
				if errors.Is(err, goMormot.ErrSessionNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s no session\n", warnFmt("●"))
					return nil
				}
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s server logout failed: %v\n", warnFmt("!"), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s logged out\n", okFmt("●"))
			return nil
		},
	}
}

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	var keyHex string
	cmd := &cobra.Command{
		Use:   "verify <signed-url>",
		Short: "Check a session_signature against a private key",
		Long: `Recompute the checksum of a signed URL with the session private key
given as 8 hex digits, the way a mORMot server validates it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(keyHex)
			if err != nil {
				return err
			}
			path, _, err := signature.Parse(args[0])
			if err != nil {
				return err
			}
			tok, verr := signature.Verify(args[0], key)
			if verr != nil && !errors.Is(verr, signature.ErrChecksumMismatch) {
				return verr
			}
			ok := verr == nil

			if opts.jsonOutput() {
				if err := opts.printJSON(cmd.OutOrStdout(), map[string]any{
					"valid":      ok,
					"session_id": tok.SessionID,
					"nonce":      tok.Nonce,
					"path":       path,
				}); err != nil {
					return err
				}
				return verr
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "  path:     %s\n", path)
			fmt.Fprintf(w, "  session:  %d\n", tok.SessionID)
			fmt.Fprintf(w, "  nonce:    %s\n", tok.Nonce)
			if !ok {
				fmt.Fprintf(w, "%s signature mismatch\n", errFmt("✗"))
				return verr
			}
			fmt.Fprintf(w, "%s signature valid\n", okFmt("✓"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyHex, "key", "k", "", "Session private key as 8 hex digits")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the MORMOT_* environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return goMormot.ConfigUsage(cmd.OutOrStdout())
		},
	}
}

func resumed(cmd *cobra.Command, opts *globalOptions) (*goMormot.Client, error) {
	client, err := opts.openClient(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := client.Resume(cmd.Context()); err != nil {
		client.Close()
		if errors.Is(err, goMormot.ErrSessionNotFound) {
			return nil, errors.New("no session, run 'mormotctl login' first")
		}
		return nil, err
	}
	return client, nil
}

// parseParams turns name=value pairs into a JSON object body.
func parseParams(pairs []string) (map[string]json.RawMessage, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	body := make(map[string]json.RawMessage, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid param %q, want name=value", pair)
		}
		if json.Valid([]byte(value)) {
			body[name] = json.RawMessage(value)
			continue
		}
		quoted, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		body[name] = quoted
	}
	return body, nil
}

func parseKey(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 8 {
		return 0, fmt.Errorf("key must be 8 hex digits, got %q", s)
	}
	k, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse key: %w", err)
	}
	return uint32(k), nil
}
