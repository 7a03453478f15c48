package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ardanlabs/blockvault/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var keyPath string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new node key pair.",
	Run:   keygenRun,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keyPath, "key", "k", "zblock/node.ecdsa", "Path to write the private key.")
}

func keygenRun(cmd *cobra.Command, args []string) {
	if _, err := os.Stat(keyPath); err == nil {
		log.Fatalf("key %s already exists", keyPath)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		log.Fatal(err)
	}

	if err := crypto.SaveECDSA(keyPath, privateKey); err != nil {
		log.Fatal(err)
	}

	fmt.Println("node address:", signature.Address(privateKey))
}
