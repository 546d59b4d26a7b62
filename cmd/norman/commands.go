package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/norman-ai/norman-sdk-go/pkg/config"
	"github.com/norman-ai/norman-sdk-go/pkg/grpc"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"github.com/norman-ai/norman-sdk-go/pkg/sdk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newUploadCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload-model <model.yaml>",
		Short: "Create a model version and upload its assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadModelConfig(args[0])
			if err != nil {
				return err
			}
			norman, err := g.client(cmd.Context())
			if err != nil {
				return err
			}
			defer norman.Close()

			m, err := norman.UploadModel(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model %s uploaded: id=%s version=%s\n", m.Name, m.ID, m.VersionID)
			return nil
		},
	}
}

func newInvokeCmd(g *globalFlags) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "invoke <invocation.yaml>",
		Short: "Invoke a model and print or save its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadInvocationConfig(args[0])
			if err != nil {
				return err
			}
			norman, err := g.client(cmd.Context())
			if err != nil {
				return err
			}
			defer norman.Close()

			res, err := norman.Invoke(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer res.Close()
			return writeOutputs(cmd.OutOrStdout(), outDir, res)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write each output to <dir>/<title> instead of stdout")
	return cmd
}

// writeOutputs prints every output in title order, or saves one file per
// output under dir. Titles that are not plain file names are rejected before
// anything is written.
func writeOutputs(w io.Writer, dir string, res *sdk.Result) error {
	titles := make([]string, 0, len(res.Outputs))
	for title := range res.Outputs {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	if dir != "" {
		for _, title := range titles {
			if !isFileName(title) {
				return fmt.Errorf("output %q: title is not a valid file name", title)
			}
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	for _, title := range titles {
		out := res.Outputs[title]
		var r io.Reader = out.Stream
		if out.Stream == nil {
			r = bytes.NewReader(out.Bytes)
		}

		if dir == "" {
			fmt.Fprintf(w, "%s: ", title)
			if _, err := io.Copy(w, r); err != nil {
				return fmt.Errorf("output %s: %w", title, err)
			}
			fmt.Fprintln(w)
			continue
		}

		path := filepath.Join(dir, title)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		n, err := io.Copy(f, r)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("output %s: %w", title, err)
		}
		fmt.Fprintf(w, "%s: %d bytes -> %s\n", title, n, path)
	}
	return nil
}

func isFileName(title string) bool {
	if title == "" || title == "." || title == ".." || strings.ContainsAny(title, "/\\\x00") {
		return false
	}
	return filepath.Base(title) == title
}

func newSignupCmd(g *globalFlags) *cobra.Command {
	var (
		name     string
		password string
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and register an API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			res, err := sdk.Signup(cmd.Context(), cfg, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s created\napi key: %s\n", res.Account.ID, res.APIKey)

			if save {
				cfg.APIKey = res.APIKey
				if err := config.SaveProfile(g.credentials, g.profile, cfg); err != nil {
					return fmt.Errorf("save profile: %w", err)
				}
				zap.L().Info("profile saved", zap.String("path", g.credentials))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "account name")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&save, "save", false, "store the new key in the credentials file")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the platform API and the push transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			// fail fast when the push transport is unreachable
			conn, err := grpc.DialEndpoint(cmd.Context(), cfg.FilePushAddr, cfg.Timeouts.Dial)
			if err != nil {
				return fmt.Errorf("transport: %w", err)
			}
			push, err := grpc.NewClientFromConn(conn, nil)
			if err != nil {
				_ = conn.Close()
				return err
			}
			norman, err := sdk.New(cmd.Context(), cfg, sdk.WithPushClient(push))
			if err != nil {
				_ = push.Close()
				return err
			}
			defer norman.Close()

			report, err := norman.Health(cmd.Context())
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "api: %v\n", report.API)
			fmt.Fprintf(w, "transport: %s\n", report.Transport)
			fmt.Fprintf(w, "took: %s\n", report.Took.Round(time.Millisecond))
			return err
		},
	}
}
