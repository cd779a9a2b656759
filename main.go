package main

import "github.com/julianfbeck/panopto-relink-cli/cmd"

func main() {
	cmd.Execute()
}
