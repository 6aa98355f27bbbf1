package main

import "github.com/iksnae/screen-session/cmd"

func main() {
	cmd.Execute()
}
