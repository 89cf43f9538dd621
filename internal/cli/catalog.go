package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/domain"
)

// NewCatalogCmd prints the voucher catalog.
func NewCatalogCmd() *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List redeemable vouchers",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates := app.DefaultCatalog().ByProvider(domain.Provider(provider))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFACE VALUE\tCOST")
			for _, t := range templates {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, domain.FormatVND(t.FaceValue), domain.FormatPoints(t.PointsCost))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "all", "filter by provider (momo, vnpay, all)")
	return cmd
}
