package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cmstory/internal/bgremove"
	"github.com/roach88/cmstory/internal/imaging"
	"github.com/roach88/cmstory/internal/store"
)

// ImageInfo describes one stored image.
type ImageInfo struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Bytes       int       `json:"bytes"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
	Output      string    `json:"output,omitempty"`
}

func (i ImageInfo) String() string {
	s := fmt.Sprintf("%s: %s, %d bytes", i.Key, i.ContentType, i.Bytes)
	if !i.UpdatedAt.IsZero() {
		s += ", updated " + i.UpdatedAt.Format(time.RFC3339)
	}
	if i.Output != "" {
		s += ", written to " + i.Output
	}
	return s + "\n"
}

// ImageList is the result of image list.
type ImageList struct {
	Images  []ImageInfo `json:"images"`
	Missing []string    `json:"missing"`
}

func (l ImageList) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE\tBYTES\tUPDATED")
	for _, i := range l.Images {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", i.Key, i.ContentType, i.Bytes, i.UpdatedAt.Format(time.RFC3339))
	}
	for _, k := range l.Missing {
		fmt.Fprintf(w, "%s\t(default)\t-\t-\n", k)
	}
	w.Flush()
	return b.String()
}

// NewImageCommand creates the image command group.
func NewImageCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Inspect and replace stored images",
		Long: `Operate the image store directly.

Keys: logo, patent, boxing, football.`,
	}

	cmd.AddCommand(newImageListCommand(rootOpts))
	cmd.AddCommand(newImageGetCommand(rootOpts))
	cmd.AddCommand(newImagePutCommand(rootOpts))

	return cmd
}

func newImageListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored images",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			st := rootOpts.openStore(rootOpts.logger(cmd.ErrOrStderr()))
			defer st.Close()

			records, err := st.List(commandContext(cmd))
			if err != nil {
				return formatter.Fail(ExitFailure, "failed to list images", err)
			}

			result := ImageList{Images: []ImageInfo{}, Missing: []string{}}
			stored := make(map[store.Key]bool, len(records))
			for _, rec := range records {
				stored[rec.Key] = true
				result.Images = append(result.Images, describe(rec))
			}
			for _, key := range store.Keys() {
				if !stored[key] {
					result.Missing = append(result.Missing, string(key))
				}
			}
			return formatter.Success(result)
		},
	}
}

func newImageGetCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a stored image, optionally writing it to a file",
		Example: `  cmstory image get logo
  cmstory image get patent -o patent.png`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			key, err := store.ParseKey(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, "invalid key", err)
			}

			st := rootOpts.openStore(rootOpts.logger(cmd.ErrOrStderr()))
			defer st.Close()

			rec, ok, err := st.Lookup(commandContext(cmd), key)
			if err != nil {
				return formatter.Fail(ExitFailure, "failed to read image", err)
			}
			if !ok {
				_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no custom image for %s", key), nil)
				return &ExitError{Code: ExitFailure, Message: "image not found", Reported: true}
			}

			info := describe(rec)
			if output != "" {
				img, err := imaging.Decode(rec.Value)
				if err != nil {
					return formatter.Fail(ExitFailure, "stored image is not decodable", err)
				}
				if err := os.WriteFile(output, img.Data, 0o644); err != nil {
					return formatter.Fail(ExitCommandError, "failed to write output", err)
				}
				info.Output = output
			}
			return formatter.Success(info)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the decoded image to this file")

	return cmd
}

func newImagePutCommand(rootOpts *RootOptions) *cobra.Command {
	var removeBackground bool

	cmd := &cobra.Command{
		Use:   "put <key> <file>",
		Short: "Replace a stored image",
		Long: `Replace the stored image for a key with the contents of a file.

With --remove-background the logo is sent through background removal first
(requires OPENAI_API_KEY). If removal fails the original is stored.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			key, err := store.ParseKey(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, "invalid key", err)
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return formatter.Fail(ExitCommandError, "failed to read file", err)
			}
			uri, err := imaging.Encode(data, mime.TypeByExtension(filepath.Ext(args[1])))
			if err != nil {
				return formatter.Fail(ExitCommandError, "not an image", err)
			}

			logger := rootOpts.logger(cmd.ErrOrStderr())
			ctx := commandContext(cmd)
			if removeBackground {
				if key != store.KeyLogo {
					return formatter.Fail(ExitCommandError, "invalid flag", errors.New("--remove-background applies to the logo only"))
				}
				formatter.VerboseLog("Removing background from %s", args[1])
				refine := bgremove.BestEffort(bgremove.New(rootOpts.Config.OpenAIAPIKey, logger), logger)
				uri = refine(ctx, uri)
			}

			if err := rootOpts.ensureDataDir(); err != nil {
				return formatter.Fail(ExitCommandError, "failed to create data directory", err)
			}
			st := rootOpts.openStore(logger)
			defer st.Close()

			if err := st.Put(ctx, key, uri); err != nil {
				return formatter.Fail(ExitFailure, "failed to store image", err)
			}

			rec, _, err := st.Lookup(ctx, key)
			if err != nil {
				return formatter.Fail(ExitFailure, "failed to read back image", err)
			}
			return formatter.Success(describe(rec))
		},
	}

	cmd.Flags().BoolVar(&removeBackground, "remove-background", false, "remove the logo background before storing")

	return cmd
}

func describe(rec store.Record) ImageInfo {
	info := ImageInfo{Key: string(rec.Key), UpdatedAt: rec.UpdatedAt}
	img, err := imaging.Decode(rec.Value)
	if err != nil {
		info.ContentType = "invalid"
		info.Bytes = len(rec.Value)
		return info
	}
	info.ContentType = img.ContentType
	info.Bytes = len(img.Data)
	return info
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
