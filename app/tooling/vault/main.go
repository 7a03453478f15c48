// Package main is the client for talking to a blockvault node.
package main

import "github.com/ardanlabs/blockvault/app/tooling/vault/cmd"

func main() {
	cmd.Execute()
}
