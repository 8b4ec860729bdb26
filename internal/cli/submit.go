package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/NgigiN/finsync/internal/app"
	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/offline"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Type          string
	Value         string
	Description   string
	Date          string
	Category      string
	PaymentMethod string
	Installments  int
	Email         string
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a transaction, queueing it locally when offline",
		Long: `Submit one transaction to the backend.

Transient failures are retried with backoff. When every attempt fails the
transaction is saved in the local queue and the command still succeeds.

Examples:
  finsync submit --type expense --value 25.50 --description Lunch --category food
  finsync submit --type income --value 3000 --description Salary --date 2024-03-05`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "income or expense (required)")
	cmd.Flags().StringVarP(&opts.Value, "value", "v", "", "amount, greater than zero (required)")
	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "description (required)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "date as YYYY-MM-DD or DD/MM/YYYY (default today)")
	cmd.Flags().StringVarP(&opts.Category, "category", "c", "", "category")
	cmd.Flags().StringVarP(&opts.PaymentMethod, "payment-method", "p", "", "payment method")
	cmd.Flags().IntVarP(&opts.Installments, "installments", "i", 0, "number of installments")
	cmd.Flags().StringVar(&opts.Email, "email", "", "owner email (default OWNER_EMAIL)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func (o *SubmitOptions) payload(now time.Time) (model.Payload, error) {
	typ, err := model.ParseTxType(o.Type)
	if err != nil {
		return model.Payload{}, apperr.NewValidation(err.Error(), 0)
	}
	value, err := decimal.NewFromString(o.Value)
	if err != nil {
		return model.Payload{}, apperr.NewValidation(fmt.Sprintf("invalid value %q", o.Value), 0)
	}

	date := now.Format(model.DateLayout)
	if o.Date != "" {
		if date, err = model.NormalizeDate(o.Date); err != nil {
			return model.Payload{}, apperr.NewValidation(err.Error(), 0)
		}
	}

	return model.Payload{
		Owner:         o.Email,
		Type:          typ,
		Description:   o.Description,
		Value:         value,
		Date:          date,
		Category:      o.Category,
		PaymentMethod: o.PaymentMethod,
		Installments:  o.Installments,
	}, nil
}

func runSubmit(cmd *cobra.Command, opts *SubmitOptions) error {
	p, err := opts.payload(time.Now())
	if err != nil {
		return err
	}

	return opts.withApp(func(a *app.App) error {
		if p.Owner == "" {
			p.Owner = a.Config().OwnerEmail
		}

		res, err := a.Submitter().Submit(cmd.Context(), p)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), opts.Format, res, func(w io.Writer) {
			printResult(w, res)
		})
	})
}

func printResult(w io.Writer, res offline.Result) {
	if res.UsedOffline {
		fmt.Fprintf(w, "Saved offline as %s\n%s\n", res.LocalID, res.Message)
		return
	}
	fmt.Fprintln(w, res.Message)
}
