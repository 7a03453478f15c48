package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/blockvault/foundation/blockchain/peer"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of the node.",
	Run:   statusRun,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command, args []string) {
	var status peer.Status
	if err := send(http.MethodGet, fmt.Sprintf("%s/v1/node/status", privateURL), nil, &status); err != nil {
		log.Fatal(err)
	}

	if err := printJSON(status); err != nil {
		log.Fatal(err)
	}
}
