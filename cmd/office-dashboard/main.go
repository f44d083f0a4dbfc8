package main

import "github.com/oshokin/smart-office/cmd/office-dashboard/cmd"

func main() {
	cmd.Execute()
}
