package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cmstory/internal/inquiry"
)

// InquiryList is the result of inquiries list.
type InquiryList struct {
	Inquiries []inquiry.Inquiry `json:"inquiries"`
}

func (l InquiryList) String() string {
	if len(l.Inquiries) == 0 {
		return "No inquiries.\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECEIVED\tTYPE\tNAME\tPHONE\tEMAIL")
	for _, inq := range l.Inquiries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", inq.CreatedAt.Local().Format(time.DateTime), inq.Type, inq.Name, inq.Phone, inq.Email)
	}
	w.Flush()
	return b.String()
}

// NewInquiriesCommand creates the inquiries command group.
func NewInquiriesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inquiries",
		Short: "Read contact form submissions",
	}
	cmd.AddCommand(newInquiriesListCommand(rootOpts))
	return cmd
}

func newInquiriesListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List inquiries, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			ctx := commandContext(cmd)

			site, err := loadSite(rootOpts.Config.ContentFile)
			if err != nil {
				return formatter.Fail(ExitCommandError, "failed to load content", err)
			}
			log, err := inquiry.Open(ctx, rootOpts.Config.InquiriesPath(), site)
			if err != nil {
				return formatter.Fail(ExitFailure, "failed to open inquiry log", err)
			}
			defer log.Close()

			inquiries, err := log.List(ctx, limit)
			if err != nil {
				return formatter.Fail(ExitFailure, "failed to list inquiries", err)
			}
			if inquiries == nil {
				inquiries = []inquiry.Inquiry{}
			}
			return formatter.Success(InquiryList{Inquiries: inquiries})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of inquiries (0 for all)")

	return cmd
}
