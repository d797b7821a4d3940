// This program performs operator tasks against a node and its chain storage.
package main

import "github.com/darendal/powchain/app/tooling/chainctl/cmd"

func main() {
	cmd.Execute()
}
