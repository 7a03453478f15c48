package cmd

import (
	"fmt"
	"log"
	"net/http"
	neturl "net/url"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Print the blocks whose transactions contain the term.",
	Args:  cobra.ExactArgs(1),
	Run:   searchRun,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func searchRun(cmd *cobra.Command, args []string) {
	var views []blockView
	if err := send(http.MethodGet, fmt.Sprintf("%s/v1/tx/search?term=%s", url, neturl.QueryEscape(args[0])), nil, &views); err != nil {
		log.Fatal(err)
	}

	if err := printJSON(views); err != nil {
		log.Fatal(err)
	}
}
