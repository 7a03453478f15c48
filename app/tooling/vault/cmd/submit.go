package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <transaction>",
	Short: "Submit a transaction to the node.",
	Args:  cobra.ExactArgs(1),
	Run:   submitRun,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func submitRun(cmd *cobra.Command, args []string) {
	tx := struct {
		Transaction string `json:"transaction"`
	}{
		Transaction: args[0],
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := send(http.MethodPost, fmt.Sprintf("%s/v1/tx/submit", url), tx, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Status)
}
