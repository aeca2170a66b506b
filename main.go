package main

import "basecamp/cmd"

func main() {
	cmd.Execute()
}
