package main

import "github.com/feaforge/lrdb/cmd"

func main() {
	cmd.Execute()
}
