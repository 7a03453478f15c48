package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

type blockView struct {
	Hash         string  `json:"hash"`
	TimeStamp    float64 `json:"timestamp"`
	Transactions string  `json:"transactions"`
}

var blockCmd = &cobra.Command{
	Use:   "block <hash>",
	Short: "Print the decrypted transactions of a block.",
	Args:  cobra.ExactArgs(1),
	Run:   blockRun,
}

func init() {
	rootCmd.AddCommand(blockCmd)
}

func blockRun(cmd *cobra.Command, args []string) {
	var view blockView
	if err := send(http.MethodGet, fmt.Sprintf("%s/v1/block/%s", url, args[0]), nil, &view); err != nil {
		log.Fatal(err)
	}

	if err := printJSON(view); err != nil {
		log.Fatal(err)
	}
}
