package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/namaznow/timings-import/internal/strapi"
	"github.com/spf13/cobra"
)

func newLocationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List the locations timings can be imported into",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := strapi.NewClient(strapi.Config{
				BaseURL:   cfg.Strapi.BaseURL,
				AuthToken: cfg.Strapi.AuthToken,
				Timeout:   cfg.Strapi.RequestTimeout,
			})
			if err != nil {
				return err
			}

			locations, err := client.FetchLocations(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, l := range locations {
				fmt.Fprintf(w, "%d\t%s\n", l.ID, l.Name)
			}
			return w.Flush()
		},
	}
}
