package main

import "github.com/bpepple/clu-comics-sub001/cmd"

func main() {
	cmd.Execute()
}
