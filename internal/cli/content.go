package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cmstory/internal/content"
)

// ContentResult reports a validated content document.
type ContentResult struct {
	Source   string `json:"source"`
	Valid    bool   `json:"valid"`
	Products int    `json:"products"`
	Notices  int    `json:"notices"`
	FAQs     int    `json:"faqs"`
}

func (r ContentResult) String() string {
	return fmt.Sprintf("%s: valid (%d products, %d notices, %d faqs)\n", r.Source, r.Products, r.Notices, r.FAQs)
}

// NewContentCommand creates the content command group.
func NewContentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Work with site content documents",
	}
	cmd.AddCommand(newContentValidateCommand(rootOpts))
	return cmd
}

func newContentValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a content document against the schema",
		Long: `Validate a YAML site content document against the content schema.

Without a file the built-in content is validated. Use "-" to read stdin.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			source := "built-in"
			var site *content.Site
			var err error
			if len(args) == 0 {
				site = content.Default()
			} else {
				source = args[0]
				var data []byte
				data, err = readInput(cmd, args[0])
				if err != nil {
					return formatter.Fail(ExitCommandError, "failed to read content", err)
				}
				formatter.VerboseLog("Validating %d bytes from %s", len(data), source)
				site, err = content.Load(bytes.NewReader(data))
			}

			var invalid *content.ValidationError
			if errors.As(err, &invalid) {
				_ = formatter.Error(ErrCodeInvalidContent, invalid.Error(), map[string]string{"path": invalid.Path})
				return &ExitError{Code: ExitFailure, Message: "invalid content", Err: err, Reported: true}
			}
			if err != nil {
				return formatter.Fail(ExitFailure, "failed to parse content", err)
			}

			return formatter.Success(ContentResult{
				Source:   source,
				Valid:    true,
				Products: len(site.Products),
				Notices:  len(site.Notices),
				FAQs:     len(site.FAQs),
			})
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
