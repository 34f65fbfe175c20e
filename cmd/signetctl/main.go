package main

import "signet/cmd/signetctl/cmd"

func main() {
	cmd.Execute()
}
