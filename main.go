package main

import "github.com/dce-cluster/dce/cmd"

func main() {
	cmd.Execute()
}
