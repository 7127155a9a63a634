package main

import "lifeline/cmd/ll/root"

func main() {
	root.Execute()
}
