package main

import "github.com/oshokin/smart-office/cmd/office-store/cmd"

func main() {
	cmd.Execute()
}
