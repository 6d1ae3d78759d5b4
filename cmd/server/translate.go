package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dasmlab/neurotranslate/pkg/language"
	"github.com/dasmlab/neurotranslate/pkg/service"
)

func newTranslateCommand(load loadFunc) *cobra.Command {
	var (
		source string
		target string
		file   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text or a .txt file once and exit",
		Long: `Translate text given as arguments, or a .txt file given with --file.

Text mode is limited to 1024 characters. File mode translates the whole file
in 1024-character chunks and writes translated_<name> next to the input
unless --output is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			// Keep stdout for the translation.
			logger.SetOutput(cmd.ErrOrStderr())

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req := service.TranslationRequest{
				SourceCode: source,
				TargetCode: target,
				Mode:       service.ModeText,
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read file: %w", err)
				}
				if !utf8.Valid(data) {
					return errors.New("file is not valid UTF-8")
				}
				req.Text = string(data)
				req.Mode = service.ModeFile
				req.FileName = filepath.Base(file)
			} else {
				req.Text = strings.Join(args, " ")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := a.orchestrator.Handle(ctx, req)
			if err != nil {
				if reqErr, ok := service.AsRequestError(err); ok {
					return errors.New(reqErr.UserMessage())
				}
				return err
			}

			logger.WithFields(logrus.Fields{
				"source":   res.SourceCode,
				"target":   res.TargetCode,
				"model_id": res.ModelID,
				"fallback": res.Fallback,
			}).Info("Translation completed")

			if req.Mode == service.ModeFile {
				dest := output
				if dest == "" {
					dest = filepath.Join(filepath.Dir(file), res.FileName)
				}
				if err := os.WriteFile(dest, []byte(res.OutputText), 0o644); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), dest)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.OutputText)
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", language.Auto, "Source language code or name")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language code or name")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to a .txt file to translate")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path for file translations")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func newLanguagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, e := range language.DefaultCatalog().Entries() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", e.Code, e.Name)
			}
			return nil
		},
	}
}
