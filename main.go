package main

import "github.com/ValentinKolb/dSettings/cmd"

func main() {
	cmd.Execute()
}
